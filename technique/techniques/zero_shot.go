package techniques

import (
	"context"
	"fmt"

	"github.com/BaSui01/promptenhancer/types"
)

// ZeroShot clarifies the task with explicit instructions and no
// exemplars.
type ZeroShot struct{}

func NewZeroShot() *ZeroShot { return &ZeroShot{} }

func (t *ZeroShot) Apply(_ context.Context, text string, _ types.TechniqueContext) (string, error) {
	if !nonEmpty(text) {
		return "", nil
	}
	return fmt.Sprintf("Task: %s\n\nProvide a direct, complete response following clear instructions without relying on examples.", text), nil
}

func (t *ZeroShot) ValidateInput(text string, _ types.TechniqueContext) bool {
	return nonEmpty(text)
}

func (t *ZeroShot) EstimateTokens(text string) int { return estimateTokensChar(text) }

func (t *ZeroShot) Metrics(generated string) map[string]float64 {
	return map[string]float64{"zero_shot": 0.8}
}
