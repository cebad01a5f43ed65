package techniques

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/promptenhancer/types"
)

// TreeOfThoughts presents N divergent approaches with evaluation
// criteria, then asks for a selection among them.
type TreeOfThoughts struct{}

func NewTreeOfThoughts() *TreeOfThoughts { return &TreeOfThoughts{} }

func (t *TreeOfThoughts) Apply(_ context.Context, text string, tctx types.TechniqueContext) (string, error) {
	if !nonEmpty(text) {
		return "", nil
	}

	approaches := tctx.StringSlice("approaches")
	if len(approaches) == 0 {
		n := tctx.Int("num_branches", 3)
		approaches = make([]string, n)
		for i := range approaches {
			approaches[i] = fmt.Sprintf("A distinct strategy for addressing the task (approach %s)", numbered(i))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nLet's explore different approaches to this:\n", text)
	for i, a := range approaches {
		fmt.Fprintf(&b, "Approach %s: %s\n", numbered(i), a)
	}
	b.WriteString("\nEvaluate each approach against the goal, then select and develop the strongest one.")
	return b.String(), nil
}

func (t *TreeOfThoughts) ValidateInput(text string, _ types.TechniqueContext) bool {
	return nonEmpty(text)
}

func (t *TreeOfThoughts) EstimateTokens(text string) int { return estimateTokensChar(text) }

func (t *TreeOfThoughts) Metrics(generated string) map[string]float64 {
	score := 0.75
	if strings.Contains(generated, "Approach 1") {
		score = 0.9
	}
	return map[string]float64{"tree_of_thoughts": score}
}
