package technique

import (
	"context"
	"errors"
	"testing"

	"github.com/BaSui01/promptenhancer/config"
	"github.com/BaSui01/promptenhancer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoTechnique struct {
	label     string
	failApply bool
	reject    bool
}

func (e echoTechnique) Apply(_ context.Context, text string, _ types.TechniqueContext) (string, error) {
	if e.failApply {
		return "", errors.New("boom")
	}
	return text + " [" + e.label + "]", nil
}
func (e echoTechnique) ValidateInput(text string, _ types.TechniqueContext) bool { return !e.reject }
func (e echoTechnique) EstimateTokens(text string) int                          { return len(text) / 4 }

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{CharsPerToken: 4.0, TruncationMarker: "...", UseTiktoken: false}
}

func TestEngine_AppliesInPriorityOrder(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(types.TechniqueDescriptor{ID: "second", Priority: 2, Enabled: true}, echoTechnique{label: "second"}))
	require.NoError(t, r.Register(types.TechniqueDescriptor{ID: "first", Priority: 1, Enabled: true}, echoTechnique{label: "first"}))

	e := NewEngine(r, testEngineConfig(), nil)
	result, err := e.Apply(context.Background(), "base", []string{"second", "first"}, types.NewTechniqueContext(nil), 0)
	require.NoError(t, err)
	assert.Equal(t, "base [first] [second]", result.EnhancedText)
	assert.Equal(t, []string{"first", "second"}, result.TechniquesApplied)
}

func TestEngine_RejectsUnknownID(t *testing.T) {
	r := NewRegistry(nil)
	e := NewEngine(r, testEngineConfig(), nil)
	_, err := e.Apply(context.Background(), "base", []string{"nope"}, types.NewTechniqueContext(nil), 0)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrValidation))
}

func TestEngine_RejectsEmptyText(t *testing.T) {
	r := NewRegistry(nil)
	e := NewEngine(r, testEngineConfig(), nil)
	_, err := e.Apply(context.Background(), "   ", nil, types.NewTechniqueContext(nil), 0)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrValidation))
}

func TestEngine_SkipsFailingTechniqueAndWarns(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(types.TechniqueDescriptor{ID: "bad", Priority: 1, Enabled: true}, echoTechnique{label: "bad", failApply: true}))
	require.NoError(t, r.Register(types.TechniqueDescriptor{ID: "good", Priority: 2, Enabled: true}, echoTechnique{label: "good"}))

	e := NewEngine(r, testEngineConfig(), nil)
	result, err := e.Apply(context.Background(), "base", []string{"bad", "good"}, types.NewTechniqueContext(nil), 0)
	require.NoError(t, err)
	assert.Equal(t, "base [good]", result.EnhancedText)
	assert.Equal(t, []string{"good"}, result.TechniquesApplied)
	assert.NotEmpty(t, result.Warnings)
}

func TestEngine_SkipsTechniqueThatRejectsInput(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(types.TechniqueDescriptor{ID: "picky", Priority: 1, Enabled: true}, echoTechnique{label: "picky", reject: true}))

	e := NewEngine(r, testEngineConfig(), nil)
	result, err := e.Apply(context.Background(), "base", []string{"picky"}, types.NewTechniqueContext(nil), 0)
	require.NoError(t, err)
	assert.Equal(t, "base", result.EnhancedText)
	assert.Empty(t, result.TechniquesApplied)
	assert.NotEmpty(t, result.Warnings)
}

func TestEngine_CollapsesWhitespace(t *testing.T) {
	r := NewRegistry(nil)
	e := NewEngine(r, testEngineConfig(), nil)
	result, err := e.Apply(context.Background(), "This   has   extra    spaces", nil, types.NewTechniqueContext(nil), 0)
	require.NoError(t, err)
	assert.Equal(t, "This has extra spaces", result.EnhancedText)
}

func TestEngine_TruncatesToMaxTokens(t *testing.T) {
	r := NewRegistry(nil)
	e := NewEngine(r, testEngineConfig(), nil)
	long := "This is a very long prompt that should be truncated because it exceeds the configured token budget by quite a lot of words"
	result, err := e.Apply(context.Background(), long, nil, types.NewTechniqueContext(nil), 5)
	require.NoError(t, err)
	assert.Contains(t, result.EnhancedText, "...")
	assert.Contains(t, result.Warnings, "output truncated to fit max_tokens")
}

func TestEngine_MetricsInRange(t *testing.T) {
	r := NewDefaultRegistry(nil)
	e := NewEngine(r, testEngineConfig(), nil)
	result, err := e.Apply(context.Background(), "Solve this complex machine learning optimization problem", []string{"chain_of_thought"}, types.NewTechniqueContext(nil), 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Metrics.Clarity, 0.0)
	assert.LessOrEqual(t, result.Metrics.Clarity, 1.0)
	assert.GreaterOrEqual(t, result.Metrics.OverallQuality, 0.0)
	assert.LessOrEqual(t, result.Metrics.OverallQuality, 1.0)
	assert.Contains(t, result.Metrics.PerTechnique, "chain_of_thought")
}
