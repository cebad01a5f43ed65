package techniques

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/promptenhancer/types"
)

// ChainOfThought prefixes a step-wise reasoning scaffold, optionally
// tuned for a detected domain (mathematical/algorithmic/debugging) with
// a step count that scales with estimated complexity.
type ChainOfThought struct{}

func NewChainOfThought() *ChainOfThought { return &ChainOfThought{} }

func (t *ChainOfThought) Apply(_ context.Context, text string, tctx types.TechniqueContext) (string, error) {
	if !nonEmpty(text) {
		return "", nil
	}

	steps := tctx.StringSlice("reasoning_steps")
	if len(steps) == 0 {
		domain := tctx.String("domain", detectDomain(text))
		complexity := types.Complexity(tctx.String("complexity", string(types.ComplexityModerate)))
		want := stepCountForComplexity(complexity)
		base := defaultSteps(domain)
		for len(base) < want {
			base = append(base, fmt.Sprintf("Continue reasoning toward the final answer (step %d)", len(base)+1))
		}
		steps = base[:want]
	}

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\nLet's think through this step-by-step:\n")
	for i, step := range steps {
		fmt.Fprintf(&b, "%s. %s\n", numbered(i), step)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (t *ChainOfThought) ValidateInput(text string, _ types.TechniqueContext) bool {
	return validateReasoningInput(text)
}

func (t *ChainOfThought) EstimateTokens(text string) int { return estimateTokensChar(text) }

func (t *ChainOfThought) Metrics(generated string) map[string]float64 {
	score := 0.75
	if strings.Contains(strings.ToLower(generated), "step-by-step") || strings.Contains(strings.ToLower(generated), "step by step") {
		score = 0.9
	}
	return map[string]float64{"chain_of_thought": score}
}
