package techniques

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/promptenhancer/types"
)

// SelfConsistency requests N independent solution paths, a consistency
// analysis across them, and a final selected answer.
type SelfConsistency struct{}

func NewSelfConsistency() *SelfConsistency { return &SelfConsistency{} }

func (t *SelfConsistency) Apply(_ context.Context, text string, tctx types.TechniqueContext) (string, error) {
	if !nonEmpty(text) {
		return "", nil
	}
	numPaths := tctx.Int("num_paths", 3)
	if numPaths < 1 {
		numPaths = 1
	}
	showConfidence := tctx.Bool("show_confidence", false)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nSolve this independently %d times, then reconcile the results:\n\n", text, numPaths)
	for i := 0; i < numPaths; i++ {
		fmt.Fprintf(&b, "Approach %s: work through the problem from scratch.\n", numbered(i))
		if showConfidence {
			b.WriteString("Confidence Level: <low|medium|high>\n")
		}
	}
	b.WriteString("\nConsistency Analysis: compare the approaches and note where they agree or diverge.\n")
	b.WriteString("Final Answer: state the answer the majority of approaches support.")
	return b.String(), nil
}

func (t *SelfConsistency) ValidateInput(text string, _ types.TechniqueContext) bool {
	return validateReasoningInput(text)
}

func (t *SelfConsistency) EstimateTokens(text string) int { return estimateTokensChar(text) }

func (t *SelfConsistency) Metrics(generated string) map[string]float64 {
	score := 0.75
	if strings.Contains(generated, "Consistency Analysis") {
		score = 0.9
	}
	return map[string]float64{"self_consistency": score}
}
