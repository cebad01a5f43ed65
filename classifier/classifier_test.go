package classifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/promptenhancer/config"
	"github.com/BaSui01/promptenhancer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeML is a scriptable InferenceClassifier.
type fakeML struct {
	result *types.IntentResult
	err    error
	calls  int
}

func (f *fakeML) Classify(ctx context.Context, text string) (*types.IntentResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.result
	return &cp, nil
}

// fakeCache is an in-memory stand-in for internal/cache.Manager.
type fakeCache struct {
	mu    sync.Mutex
	store map[string]*types.IntentResult
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: map[string]*types.IntentResult{}}
}

func (f *fakeCache) GetJSON(ctx context.Context, namespace, key string, dest any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.store[namespace+":"+key]
	if !ok {
		return types.NewError("CACHE_MISS", "miss")
	}
	out := dest.(*types.IntentResult)
	*out = *v
	return nil
}

func (f *fakeCache) SetJSON(ctx context.Context, namespace, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := value.(*types.IntentResult)
	cp := *v
	f.store[namespace+":"+key] = &cp
	return nil
}

// fakePatternStore records calls for assertions.
type fakePatternStore struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakePatternStore) SaveIntentPattern(ctx context.Context, fingerprint, intent string, confidence float64, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, intent)
	return nil
}

func testClassifierConfig() config.ClassifierConfig {
	cfg := config.DefaultClassifierConfig()
	return cfg
}

func TestClassifier_PerformanceMode_HighConfidenceRulesOnly(t *testing.T) {
	cfg := testClassifierConfig()
	cfg.Mode = "performance_mode"
	ml := &fakeML{}
	c := New(cfg, ml, nil, nil, nil, nil)

	result, err := c.Classify(context.Background(), "Write a Python function to sort a list")
	require.NoError(t, err)
	assert.Equal(t, types.SourceRules, result.Source)
	assert.Equal(t, 0, ml.calls, "ML must not be consulted when rules confidence is already high")
}

func TestClassifier_PerformanceMode_LowConfidenceConsultsML(t *testing.T) {
	cfg := testClassifierConfig()
	cfg.Mode = "performance_mode"
	cfg.LowConfidenceThreshold = 0.9 // force ML consultation even for a decent rules hit
	ml := &fakeML{result: &types.IntentResult{Intent: types.IntentCodeGeneration, Confidence: 0.95, Source: types.SourceML, ModelVersion: "v1"}}
	c := New(cfg, ml, nil, nil, nil, nil)

	result, err := c.Classify(context.Background(), "Write a Python function to sort a list")
	require.NoError(t, err)
	assert.Equal(t, 1, ml.calls)
	assert.Equal(t, types.SourceML, result.Source)
	assert.Equal(t, "v1", result.ModelVersion)
}

func TestClassifier_AdaptiveMode_AcceptsHighConfidenceRules(t *testing.T) {
	cfg := testClassifierConfig()
	cfg.Mode = "adaptive"
	cfg.HighConfidenceThreshold = 0.8 // rules score this prompt 0.81 (phrase + two keywords)
	ml := &fakeML{}
	c := New(cfg, ml, nil, nil, nil, nil)

	result, err := c.Classify(context.Background(), "Write a Python function to sort a list")
	require.NoError(t, err)
	assert.Equal(t, types.SourceRules, result.Source)
	assert.Equal(t, 0, ml.calls)
}

func TestClassifier_AdaptiveMode_LowConfidenceCallsML(t *testing.T) {
	cfg := testClassifierConfig()
	cfg.Mode = "adaptive"
	ml := &fakeML{result: &types.IntentResult{Intent: types.IntentConversation, Confidence: 0.6, Source: types.SourceML}}
	c := New(cfg, ml, nil, nil, nil, nil)

	result, err := c.Classify(context.Background(), "Help me with this")
	require.NoError(t, err)
	assert.Equal(t, 1, ml.calls)
	assert.Equal(t, types.SourceML, result.Source)
}

func TestClassifier_AdaptiveMode_FallsBackToRulesWhenMLFails(t *testing.T) {
	cfg := testClassifierConfig()
	cfg.Mode = "adaptive"
	ml := &fakeML{err: assertError{"ml down"}}
	c := New(cfg, ml, nil, nil, nil, nil)

	result, err := c.Classify(context.Background(), "Help me with this")
	require.NoError(t, err)
	assert.Equal(t, types.SourceRules, result.Source)
	assert.Contains(t, result.Warnings, "ml_unavailable")
}

func TestClassifier_QualityMode_PrefersMLWhenConfident(t *testing.T) {
	cfg := testClassifierConfig()
	cfg.Mode = "quality_mode"
	ml := &fakeML{result: &types.IntentResult{Intent: types.IntentCodeGeneration, Confidence: 0.9, Source: types.SourceML}}
	c := New(cfg, ml, nil, nil, nil, nil)

	result, err := c.Classify(context.Background(), "write some code")
	require.NoError(t, err)
	assert.Equal(t, types.SourceML, result.Source)
}

func TestClassifier_QualityMode_FallsBackOnLowMLConfidence(t *testing.T) {
	cfg := testClassifierConfig()
	cfg.Mode = "quality_mode"
	ml := &fakeML{result: &types.IntentResult{Intent: types.IntentConversation, Confidence: 0.1, Source: types.SourceML}}
	c := New(cfg, ml, nil, nil, nil, nil)

	result, err := c.Classify(context.Background(), "Write a Python function to sort a list")
	require.NoError(t, err)
	assert.Equal(t, types.SourceRules, result.Source)
	assert.Contains(t, result.Warnings, "ml_unavailable")
}

func TestClassifier_LowConfidenceInvariant(t *testing.T) {
	cfg := testClassifierConfig()
	cfg.Mode = "performance_mode"
	cfg.MinConfidence = 0.9
	c := New(cfg, nil, nil, nil, nil, nil)

	result, err := c.Classify(context.Background(), "Write a Python function to sort a list")
	require.NoError(t, err)
	assert.Contains(t, result.Warnings, "low_confidence")
	assert.NotEmpty(t, result.Intent, "must still return a best guess")
}

func TestClassifier_CacheHitMarksSourceCache(t *testing.T) {
	cfg := testClassifierConfig()
	cfg.Mode = "performance_mode"
	cache := newFakeCache()
	c := New(cfg, nil, cache, nil, nil, nil)

	first, err := c.Classify(context.Background(), "Write a Python function to sort a list")
	require.NoError(t, err)
	assert.Equal(t, types.SourceRules, first.Source)

	second, err := c.Classify(context.Background(), "Write a Python function to sort a list")
	require.NoError(t, err)
	assert.Equal(t, types.SourceCache, second.Source)
	assert.Equal(t, first.Intent, second.Intent)
}

func TestClassifier_MLResultTriggersLearnedPatternSave(t *testing.T) {
	cfg := testClassifierConfig()
	cfg.Mode = "quality_mode"
	ml := &fakeML{result: &types.IntentResult{Intent: types.IntentCodeGeneration, Confidence: 0.95, Source: types.SourceML}}
	patterns := &fakePatternStore{}
	c := New(cfg, ml, nil, patterns, nil, nil)

	_, err := c.Classify(context.Background(), "write some code")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		patterns.mu.Lock()
		defer patterns.mu.Unlock()
		return len(patterns.calls) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestClassifier_SuggestedTechniquesFilteredByRegistry(t *testing.T) {
	cfg := testClassifierConfig()
	cfg.Mode = "performance_mode"
	registry := &fakeRegistry{enabled: map[string]bool{"few_shot": true}, priority: map[string]int{"few_shot": 1}}
	c := New(cfg, nil, nil, nil, registry, nil)

	result, err := c.Classify(context.Background(), "Translate this to Spanish")
	require.NoError(t, err)
	assert.Equal(t, []string{"few_shot"}, result.SuggestedTechniques)
}

func TestClassifier_RejectsInvalidText(t *testing.T) {
	c := New(testClassifierConfig(), nil, nil, nil, nil, nil)
	_, err := c.Classify(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrValidation))
}

type fakeRegistry struct {
	enabled  map[string]bool
	priority map[string]int
}

func (f *fakeRegistry) IsEnabled(id string) bool { return f.enabled[id] }
func (f *fakeRegistry) Priority(id string) (int, bool) {
	p, ok := f.priority[id]
	return p, ok
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
