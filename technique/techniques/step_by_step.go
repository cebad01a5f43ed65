package techniques

import (
	"context"
	"fmt"

	"github.com/BaSui01/promptenhancer/types"
)

// StepByStep wraps the request as an imperative "do X step by step"
// instruction.
type StepByStep struct{}

func NewStepByStep() *StepByStep { return &StepByStep{} }

func (t *StepByStep) Apply(_ context.Context, text string, _ types.TechniqueContext) (string, error) {
	if !nonEmpty(text) {
		return "", nil
	}
	return fmt.Sprintf("%s\n\nPlease complete this step by step, explaining each step as you go.", text), nil
}

func (t *StepByStep) ValidateInput(text string, _ types.TechniqueContext) bool {
	return nonEmpty(text)
}

func (t *StepByStep) EstimateTokens(text string) int { return estimateTokensChar(text) }

func (t *StepByStep) Metrics(generated string) map[string]float64 {
	return map[string]float64{"step_by_step": 0.8}
}
