package classifier

import (
	"context"
	"sort"
	"time"

	"github.com/BaSui01/promptenhancer/config"
	"github.com/BaSui01/promptenhancer/internal/fingerprint"
	"github.com/BaSui01/promptenhancer/types"
	"go.uber.org/zap"
)

// InferenceClassifier is the C1 contract this classifier consumes.
// Satisfied by *inference.Client; defined locally so classifier tests
// don't need a real HTTP server.
type InferenceClassifier interface {
	Classify(ctx context.Context, text string) (*types.IntentResult, error)
}

// Cache is the subset of internal/cache.Manager the classifier needs.
type Cache interface {
	GetJSON(ctx context.Context, namespace, key string, dest any) error
	SetJSON(ctx context.Context, namespace, key string, value any, ttl time.Duration) error
}

// PatternStore records fingerprint -> intent memos learned from ML
// classifications (spec §6 persistence: save_intent_pattern).
type PatternStore interface {
	SaveIntentPattern(ctx context.Context, fingerprint, intent string, confidence float64, source string) error
}

// TechniqueRanker exposes just enough of the C4 registry for suggested
// technique filtering/ranking without importing the technique package.
type TechniqueRanker interface {
	IsEnabled(id string) bool
	Priority(id string) (int, bool)
}

// Classifier is the intent classifier (C3): rules-first, ML-assisted,
// adaptive by confidence.
type Classifier struct {
	rules    *RuleEngine
	ml       InferenceClassifier
	cache    Cache
	patterns PatternStore
	registry TechniqueRanker
	cfg      config.ClassifierConfig
	logger   *zap.Logger
}

// New builds a classifier. ml, cache, patterns, and registry are all
// optional (nil-safe): a classifier with none of them behaves as a
// pure rule engine with no caching or learned-pattern feedback.
func New(cfg config.ClassifierConfig, ml InferenceClassifier, cache Cache, patterns PatternStore, registry TechniqueRanker, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		rules:    NewRuleEngine(),
		ml:       ml,
		cache:    cache,
		patterns: patterns,
		registry: registry,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "classifier")),
	}
}

// Classify routes text through the mode-specific policy, consulting
// the cache first and populating it afterward.
func (c *Classifier) Classify(ctx context.Context, text string) (*types.IntentResult, error) {
	text = types.NormalizeText(text)
	if err := types.ValidatePromptText(text); err != nil {
		return nil, err
	}

	fp := fingerprint.Of(text, c.cfg.Mode)

	if c.cache != nil {
		var cached types.IntentResult
		if err := c.cache.GetJSON(ctx, "intent", fp, &cached); err == nil {
			hit := cached
			hit.Source = types.SourceCache
			return &hit, nil
		}
	}

	result, err := c.route(ctx, text)
	if err != nil {
		return nil, err
	}

	result.SuggestedTechniques = c.suggestTechniques(result.Intent)

	if result.Confidence < c.cfg.MinConfidence {
		result.Warnings = appendUnique(result.Warnings, "low_confidence")
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, "intent", fp, result, c.cfg.CacheTTL); err != nil {
			c.logger.Warn("failed to populate intent cache", zap.Error(err))
		}
	}

	if c.patterns != nil && result.Source == types.SourceML {
		go c.recordLearnedPattern(fp, result)
	}

	return result, nil
}

func (c *Classifier) recordLearnedPattern(fp string, result *types.IntentResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.patterns.SaveIntentPattern(ctx, fp, string(result.Intent), result.Confidence, string(result.Source)); err != nil {
		c.logger.Warn("failed to save learned intent pattern", zap.Error(err))
	}
}

func (c *Classifier) route(ctx context.Context, text string) (*types.IntentResult, error) {
	switch c.cfg.Mode {
	case "performance_mode":
		return c.performanceMode(ctx, text), nil
	case "quality_mode":
		return c.qualityMode(ctx, text), nil
	default:
		return c.adaptiveMode(ctx, text), nil
	}
}

// performanceMode: rules-only; ML only consulted if the top rules
// score is below low_confidence_threshold.
func (c *Classifier) performanceMode(ctx context.Context, text string) *types.IntentResult {
	result := c.buildRuleResult(text)
	if result.Confidence >= c.cfg.LowConfidenceThreshold || c.ml == nil {
		return result
	}

	mlResult, err := c.ml.Classify(ctx, text)
	if err != nil {
		c.logger.Debug("ML consultation failed in performance_mode, keeping rules result", zap.Error(err))
		result.Warnings = appendUnique(result.Warnings, "ml_unavailable")
		return result
	}
	mlResult.Audience = result.Audience
	return mlResult
}

// qualityMode: ML first; rules as fallback on circuit-open, any other
// ML failure, or low ML confidence.
func (c *Classifier) qualityMode(ctx context.Context, text string) *types.IntentResult {
	if c.ml != nil {
		mlResult, err := c.ml.Classify(ctx, text)
		if err == nil && mlResult.Confidence >= c.cfg.LowConfidenceThreshold {
			mlResult.Audience = DetectAudience(text)
			return mlResult
		}
		if err != nil {
			c.logger.Debug("ML call failed in quality_mode, falling back to rules", zap.Error(err))
		}
	}

	result := c.buildRuleResult(text)
	result.Warnings = appendUnique(result.Warnings, "ml_unavailable")
	return result
}

// adaptiveMode (default): run rules; accept immediately on high
// confidence; otherwise call ML, falling back to the rules result
// (even if low confidence) when ML fails.
func (c *Classifier) adaptiveMode(ctx context.Context, text string) *types.IntentResult {
	result := c.buildRuleResult(text)
	if result.Confidence >= c.cfg.HighConfidenceThreshold {
		return result
	}
	if c.ml == nil {
		result.Warnings = appendUnique(result.Warnings, "ml_unavailable")
		return result
	}

	mlResult, err := c.ml.Classify(ctx, text)
	if err != nil {
		c.logger.Debug("ML call failed in adaptive mode, falling back to rules", zap.Error(err))
		result.Warnings = appendUnique(result.Warnings, "ml_unavailable")
		return result
	}
	mlResult.Audience = result.Audience
	return mlResult
}

func (c *Classifier) buildRuleResult(text string) *types.IntentResult {
	matches := c.rules.Classify(text)
	audience := DetectAudience(text)
	complexity, complexityScore := DetectComplexity(text, audience)

	if len(matches) == 0 {
		return &types.IntentResult{
			Intent:          types.IntentConversation,
			Confidence:      0.3,
			Complexity:      complexity,
			ComplexityScore: complexityScore,
			Audience:        audience,
			Source:          types.SourceRules,
		}
	}

	top := matches[0]
	return &types.IntentResult{
		Intent:          top.Intent,
		Confidence:      top.Score,
		Complexity:      complexity,
		ComplexityScore: complexityScore,
		Audience:        audience,
		Source:          types.SourceRules,
		MatchedPatterns: top.MatchedPatterns,
	}
}

// suggestTechniques resolves the glossary's intent -> technique
// default map, filters disabled/unknown ids through the registry when
// one is wired, and stable-sorts by registry priority so the final
// order is (priority, intent-specific weight) as spec §4.3 requires.
func (c *Classifier) suggestTechniques(intent types.Intent) []string {
	defaults := types.DefaultTechniquesForIntent[intent]
	if len(defaults) == 0 {
		return nil
	}

	ids := make([]string, 0, len(defaults))
	for _, id := range defaults {
		if c.registry != nil && !c.registry.IsEnabled(id) {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}

	if c.registry != nil {
		sort.SliceStable(ids, func(i, j int) bool {
			pi, _ := c.registry.Priority(ids[i])
			pj, _ := c.registry.Priority(ids[j])
			return pi < pj
		})
	}
	return ids
}

func appendUnique(warnings []string, warning string) []string {
	for _, w := range warnings {
		if w == warning {
			return warnings
		}
	}
	return append(warnings, warning)
}
