package techniques

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/promptenhancer/types"
)

// Constraints renders must/should constraints from a list, falling
// back to a sensible derived default when none are supplied.
type Constraints struct{}

func NewConstraints() *Constraints { return &Constraints{} }

func (t *Constraints) Apply(_ context.Context, text string, tctx types.TechniqueContext) (string, error) {
	if !nonEmpty(text) {
		return "", nil
	}
	list := tctx.StringSlice("constraints")
	if len(list) == 0 {
		list = []string{
			"the response must directly address the request",
			"the response should be concise and free of filler",
		}
	}

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\nConstraints:\n")
	for _, c := range list {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (t *Constraints) ValidateInput(text string, _ types.TechniqueContext) bool {
	return nonEmpty(text)
}

func (t *Constraints) EstimateTokens(text string) int { return estimateTokensChar(text) }

func (t *Constraints) Metrics(generated string) map[string]float64 {
	score := 0.75
	if containsAny(strings.ToLower(generated), "must", "constraint") {
		score = 0.85
	}
	return map[string]float64{"constraints": score}
}
