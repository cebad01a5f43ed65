package technique

import (
	"context"
	"strings"
	"testing"

	"github.com/BaSui01/promptenhancer/types"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// idempotentTechnique collapses repeated spaces, so running it twice must
// equal running it once.
type idempotentTechnique struct{}

func (idempotentTechnique) Apply(_ context.Context, text string, _ types.TechniqueContext) (string, error) {
	return strings.Join(strings.Fields(text), " "), nil
}
func (idempotentTechnique) ValidateInput(text string, _ types.TechniqueContext) bool { return true }
func (idempotentTechnique) EstimateTokens(text string) int                          { return len(text) / 4 }

func TestProperty_EngineApply_OrderMatchesRequestedIDs(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ids := rapid.SliceOfNDistinct(rapid.StringMatching("[a-z]{3,8}"), 1, 6, func(s string) string { return s }).Draw(rt, "ids")

		r := NewRegistry(nil)
		for i, id := range ids {
			require.NoError(rt, r.Register(
				types.TechniqueDescriptor{ID: id, Priority: i, Enabled: true},
				echoTechnique{label: id},
			))
		}

		e := NewEngine(r, testEngineConfig(), nil)
		result, err := e.Apply(context.Background(), "base", ids, types.NewTechniqueContext(nil), 0)
		require.NoError(rt, err)
		require.Equal(rt, ids, result.TechniquesApplied)
	})
}

func TestProperty_EngineApply_IdempotentTechniqueStabilizes(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		words := rapid.SliceOfN(rapid.StringMatching("[a-zA-Z]{1,10}"), 1, 20).Draw(rt, "words")
		text := strings.Join(words, strings.Repeat(" ", rapid.IntRange(1, 4).Draw(rt, "gap")))

		r := NewRegistry(nil)
		require.NoError(rt, r.Register(types.TechniqueDescriptor{ID: "collapse", Priority: 0, Enabled: true}, idempotentTechnique{}))
		e := NewEngine(r, testEngineConfig(), nil)

		first, err := e.Apply(context.Background(), text, []string{"collapse"}, types.NewTechniqueContext(nil), 0)
		require.NoError(rt, err)
		second, err := e.Apply(context.Background(), first.EnhancedText, []string{"collapse"}, types.NewTechniqueContext(nil), 0)
		require.NoError(rt, err)

		require.Equal(rt, first.EnhancedText, second.EnhancedText)
	})
}

func TestProperty_EngineApply_MetricsAlwaysInUnitRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.StringMatching("[a-zA-Z0-9 .,!?]{1,200}").Draw(rt, "text")
		if strings.TrimSpace(text) == "" {
			return
		}

		r := NewDefaultRegistry(nil)
		e := NewEngine(r, testEngineConfig(), nil)
		result, err := e.Apply(context.Background(), text, nil, types.NewTechniqueContext(nil), 0)
		require.NoError(rt, err)

		require.GreaterOrEqual(rt, result.Metrics.Clarity, 0.0)
		require.LessOrEqual(rt, result.Metrics.Clarity, 1.0)
		require.GreaterOrEqual(rt, result.Metrics.OverallQuality, 0.0)
		require.LessOrEqual(rt, result.Metrics.OverallQuality, 1.0)
	})
}
