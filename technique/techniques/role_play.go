package techniques

import (
	"context"
	"fmt"

	"github.com/BaSui01/promptenhancer/types"
)

// RolePlay prefixes a persona directive.
type RolePlay struct{}

func NewRolePlay() *RolePlay { return &RolePlay{} }

func (t *RolePlay) Apply(_ context.Context, text string, tctx types.TechniqueContext) (string, error) {
	if !nonEmpty(text) {
		return "", nil
	}
	role := tctx.String("role", "a knowledgeable, helpful assistant")
	return fmt.Sprintf("Take on the role of %s.\n\n%s", role, text), nil
}

func (t *RolePlay) ValidateInput(text string, _ types.TechniqueContext) bool {
	return nonEmpty(text)
}

func (t *RolePlay) EstimateTokens(text string) int { return estimateTokensChar(text) }

func (t *RolePlay) Metrics(generated string) map[string]float64 {
	return map[string]float64{"role_play": 0.8}
}
