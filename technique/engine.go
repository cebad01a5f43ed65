package technique

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/BaSui01/promptenhancer/config"
	"github.com/BaSui01/promptenhancer/types"
	"go.uber.org/zap"
)

// Engine is the technique application loop (spec §4.4 Engine
// application loop): validates a requested id set against the
// registry, stable-sorts by priority ascending, and folds each
// technique's Apply over the running text, isolating per-technique
// failures as warnings rather than aborting the whole enhancement.
type Engine struct {
	registry  *Registry
	estimator TokenEstimator
	cfg       config.EngineConfig
	logger    *zap.Logger
}

// NewEngine builds an engine bound to registry, using cfg to select
// the token estimator and truncation marker.
func NewEngine(registry *Registry, cfg config.EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry:  registry,
		estimator: NewTokenEstimator(cfg.UseTiktoken, cfg.TiktokenEncoding, cfg.CharsPerToken),
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "technique_engine")),
	}
}

// Apply runs the engine loop for text against orderedIDs, honoring
// maxTokens (0 means unbounded).
func (e *Engine) Apply(ctx context.Context, text string, orderedIDs []string, tctx types.TechniqueContext, maxTokens int) (*types.EnhancementResult, error) {
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		return nil, types.NewValidationError("text must not be empty")
	}
	if unknown := e.registry.Validate(orderedIDs); len(unknown) > 0 {
		return nil, types.NewValidationError(fmt.Sprintf("unknown or disabled technique ids: %s", strings.Join(unknown, ", ")))
	}

	ids := e.sortByPriority(orderedIDs)

	original := text
	textSoFar := text
	applied := make([]string, 0, len(ids))
	var warnings []string

	for _, id := range ids {
		_, impl, ok := e.registry.Get(id)
		if !ok {
			continue // already validated above; defensive only
		}

		if !impl.ValidateInput(textSoFar, tctx) {
			warnings = append(warnings, fmt.Sprintf("%s: input rejected by validate_input, skipped", id))
			continue
		}

		result, err := e.applyGuarded(ctx, impl, textSoFar, tctx)
		if err != nil {
			e.logger.Warn("technique application failed, skipping", zap.String("id", id), zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("%s: %v", id, err))
			continue
		}

		textSoFar = result
		applied = append(applied, id)
	}

	textSoFar = collapseWhitespace(textSoFar)
	if strings.TrimSpace(textSoFar) == "" {
		textSoFar = original
		warnings = append(warnings, "post_process_empty")
	}

	tokenEstimate := e.estimator.EstimateTokens(textSoFar)
	if maxTokens > 0 && tokenEstimate > maxTokens {
		textSoFar, tokenEstimate = e.truncateToBudget(textSoFar, maxTokens)
		warnings = append(warnings, "output truncated to fit max_tokens")
	}

	metrics := e.calculateMetrics(original, textSoFar, applied)

	return &types.EnhancementResult{
		EnhancedText:      textSoFar,
		TechniquesApplied: applied,
		Confidence:        metrics.OverallQuality,
		GenerationTimeMs:  time.Since(start).Milliseconds(),
		TokenEstimate:     tokenEstimate,
		Warnings:          warnings,
		Metrics:           metrics,
	}, nil
}

// applyGuarded calls impl.Apply, converting a panic into an error so
// one misbehaving technique never aborts the whole enhancement (spec
// §4.4 step 3b: "call apply(...) inside a guard that captures
// exceptions").
func (e *Engine) applyGuarded(ctx context.Context, impl Technique, text string, tctx types.TechniqueContext) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return impl.Apply(ctx, text, tctx)
}

func (e *Engine) sortByPriority(ids []string) []string {
	type scored struct {
		id       string
		priority int
	}
	withPriority := make([]scored, 0, len(ids))
	for _, id := range ids {
		p, _ := e.registry.Priority(id)
		withPriority = append(withPriority, scored{id: id, priority: p})
	}
	// insertion sort by priority ascending; ties are ordered by id, so
	// caller order does not decide between equal priorities.
	for i := 1; i < len(withPriority); i++ {
		for j := i; j > 0; j-- {
			a, b := withPriority[j-1], withPriority[j]
			if a.priority < b.priority || (a.priority == b.priority && a.id <= b.id) {
				break
			}
			withPriority[j-1], withPriority[j] = withPriority[j], withPriority[j-1]
		}
	}
	out := make([]string, len(withPriority))
	for i, s := range withPriority {
		out[i] = s.id
	}
	return out
}

func (e *Engine) truncateToBudget(text string, maxTokens int) (string, int) {
	marker := e.cfg.TruncationMarker
	if marker == "" {
		marker = "..."
	}
	// binary-search-free approximation: shrink proportionally, then trim
	// by one estimator call at a time until it fits.
	charsPerToken := e.cfg.CharsPerToken
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	budgetChars := int(float64(maxTokens) * charsPerToken)
	if budgetChars < len(marker) {
		budgetChars = len(marker)
	}
	if budgetChars >= len(text) {
		return text, e.estimator.EstimateTokens(text)
	}
	truncated := strings.TrimSpace(text[:budgetChars]) + marker
	for e.estimator.EstimateTokens(truncated) > maxTokens && len(truncated) > len(marker) {
		cut := len(truncated) - len(marker) - 1
		if cut <= 0 {
			break
		}
		truncated = strings.TrimSpace(truncated[:cut]) + marker
	}
	return truncated, e.estimator.EstimateTokens(truncated)
}

var whitespaceRun = regexp.MustCompile(`[ \t]+`)
var blankLineRun = regexp.MustCompile(`\n{3,}`)

// collapseWhitespace is the engine's post-process step: runs of
// horizontal whitespace collapse to one space, runs of 3+ newlines
// collapse to a paragraph break.
func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(whitespaceRun.ReplaceAllString(line, " "))
	}
	joined := strings.Join(lines, "\n")
	joined = blankLineRun.ReplaceAllString(joined, "\n\n")
	return strings.TrimSpace(joined)
}
