// Package orchestrator implements the enhancement orchestrator (C5): the
// single entry point that ties the intent classifier, the technique
// engine, the cache layer and the persistence adapter into the
// enhance/enhance_batch pipeline (spec §4.5).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/promptenhancer/config"
	"github.com/BaSui01/promptenhancer/internal/fingerprint"
	"github.com/BaSui01/promptenhancer/internal/pool"
	"github.com/BaSui01/promptenhancer/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// =============================================================================
// 🔌 collaborator contracts
// =============================================================================

// Classifier is the C3 contract consumed by the orchestrator. Satisfied
// by *classifier.Classifier; defined locally so orchestrator tests don't
// need the real rule engine or an ML backend.
type Classifier interface {
	Classify(ctx context.Context, text string) (*types.IntentResult, error)
}

// Engine is the C4 contract consumed by the orchestrator. Satisfied by
// *technique.Engine.
type Engine interface {
	Apply(ctx context.Context, text string, orderedIDs []string, tctx types.TechniqueContext, maxTokens int) (*types.EnhancementResult, error)
}

// Cache is the subset of internal/cache.Manager the orchestrator needs
// for the "enhancement" namespace (spec §4.5 step 2/7).
type Cache interface {
	GetJSON(ctx context.Context, namespace, key string, dest any) error
	SetJSON(ctx context.Context, namespace, key string, value any, ttl time.Duration) error
}

// HistoryRecord is the orchestrator's persistence-agnostic view of one
// completed enhancement (spec §6 persistence: save_history). Kept
// separate from internal/database.EnhancementHistory so this package
// never imports gorm.
type HistoryRecord struct {
	RequestID         string
	OriginalText      string
	EnhancedText      string
	Intent            string
	Complexity        string
	TechniquesApplied []string
	Confidence        float64
	GenerationTimeMs  int64
	TokenEstimate     int
	Cached            bool
}

// HistoryWriter persists a HistoryRecord. Enqueue failures are logged,
// never surfaced to the caller (spec §4.5 step 6).
type HistoryWriter interface {
	SaveHistory(ctx context.Context, record HistoryRecord) error
}

// =============================================================================
// 🎛️ orchestrator
// =============================================================================

// Orchestrator is the enhancement pipeline (C5).
type Orchestrator struct {
	classifier  Classifier
	engine      Engine
	cache       Cache
	history     HistoryWriter
	rateLimiter RateLimiter
	cfg         config.OrchestratorConfig
	logger      *zap.Logger

	historyPool  *pool.GoroutinePool
	localLimiter *rate.Limiter
}

// New builds an orchestrator. cache, history, and rateLimiter are all
// optional (nil-safe): without a cache every request misses; without a
// history writer no async enqueue happens; without a rateLimiter the
// in-process fallback bucket is the only backpressure applied.
func New(classifier Classifier, engine Engine, cache Cache, history HistoryWriter, rateLimiter RateLimiter, cfg config.OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.HistoryWorkers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.HistoryQueueSize
	if queueSize <= 0 {
		queueSize = 100
	}

	return &Orchestrator{
		classifier:  classifier,
		engine:      engine,
		cache:       cache,
		history:     history,
		rateLimiter: rateLimiter,
		cfg:         cfg,
		logger:      logger.With(zap.String("component", "orchestrator")),
		historyPool: pool.NewGoroutinePool(pool.GoroutinePoolConfig{
			MaxWorkers: workers,
			QueueSize:  queueSize,
		}),
		localLimiter: newLocalLimiter(cfg.RateLimitPerMin),
	}
}

// Shutdown drains the async history queue and waits for in-flight
// writes to finish (spec §6 "shutdown(): drain in-flight tasks, flush
// async history queue"). Idempotent.
func (o *Orchestrator) Shutdown() {
	o.historyPool.Close()
}

// Enhance runs the full C5 pipeline for a single request.
func (o *Orchestrator) Enhance(ctx context.Context, req types.EnhanceRequest) (*types.EnhanceResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, canceledErr(err)
	}

	req.Normalize()
	overallStart := time.Now()
	if err := req.Validate(); err != nil {
		observeOutcome("validation_error", overallStart)
		return nil, err
	}
	if err := o.checkRateLimit(ctx, req); err != nil {
		observeOutcome("rate_limited", overallStart)
		return nil, err
	}

	timings := map[string]any{}

	fp := o.fingerprintFor(req)
	if o.cache != nil {
		var cached types.EnhanceResponse
		if err := o.cache.GetJSON(ctx, "enhancement", fp, &cached); err == nil {
			observeCacheResult(true)
			observeOutcome("cache_hit", overallStart)
			cached.Metadata.Cached = true
			return &cached, nil
		}
		observeCacheResult(false)
	}

	classifyStart := time.Now()
	intent, err := o.classify(ctx, req)
	timings["classify_ms"] = time.Since(classifyStart).Milliseconds()
	if err != nil {
		observeOutcome("classify_error", overallStart)
		return nil, err
	}

	techniqueIDs := resolveTechniques(req.Techniques, intent.SuggestedTechniques)

	if err := ctx.Err(); err != nil {
		observeOutcome("canceled", overallStart)
		return nil, canceledErr(err)
	}

	engineStart := time.Now()
	result, err := o.engine.Apply(ctx, req.Text, techniqueIDs, types.NewTechniqueContext(req.Context), req.MaxTokens)
	timings["engine_ms"] = time.Since(engineStart).Milliseconds()
	if err != nil {
		observeOutcome("engine_error", overallStart)
		return nil, err
	}

	resp := &types.EnhanceResponse{
		EnhancedText:      result.EnhancedText,
		TechniquesApplied: result.TechniquesApplied,
		GenerationTimeMs:  time.Since(overallStart).Milliseconds(),
		TokenEstimate:     result.TokenEstimate,
		Confidence:        result.Confidence,
		Warnings:          result.Warnings,
		Metadata: types.ResponseMetadata{
			Intent:     intent.Intent,
			Complexity: intent.Complexity,
			Cached:     false,
			Metrics:    &result.Metrics,
			Context:    map[string]any{"timings": timings},
		},
	}

	persistStart := time.Now()
	o.enqueueHistory(req, resp, intent)
	timings["persist_enqueue_ms"] = time.Since(persistStart).Milliseconds()

	if o.cache != nil {
		if err := o.cache.SetJSON(ctx, "enhancement", fp, resp, o.cfg.CacheTTL); err != nil {
			o.logger.Warn("failed to populate enhancement cache", zap.Error(err))
		}
	}

	observeOutcome("success", overallStart)
	return resp, nil
}

// classify asks C3 for an intent, honoring an explicit request override
// and tolerating classifier failure when the caller already supplied
// techniques (spec §4.5 step 3).
func (o *Orchestrator) classify(ctx context.Context, req types.EnhanceRequest) (*types.IntentResult, error) {
	if req.Intent != "" {
		return &types.IntentResult{
			Intent:     req.Intent,
			Confidence: 1.0,
			Complexity: req.Complexity,
			Source:     types.SourceRules,
		}, nil
	}

	if o.classifier == nil {
		if len(req.Techniques) > 0 {
			return &types.IntentResult{Intent: types.IntentConversation, Source: types.SourceRules}, nil
		}
		return nil, types.NewError(types.ErrServiceUnavailable, "no classifier configured and no techniques supplied")
	}

	result, err := o.classifier.Classify(ctx, req.Text)
	if err != nil {
		if len(req.Techniques) > 0 {
			o.logger.Debug("classifier failed but caller supplied explicit techniques, continuing", zap.Error(err))
			return &types.IntentResult{Intent: types.IntentConversation, Source: types.SourceRules, Warnings: []string{"classifier_unavailable"}}, nil
		}
		return nil, types.NewError(types.ErrServiceUnavailable, "intent classification unavailable and no techniques supplied").WithCause(err)
	}
	return result, nil
}

// resolveTechniques unions the caller-supplied ids with the
// classifier-suggested ones, deduplicating while preserving caller
// order first (spec §4.5 step 4).
func resolveTechniques(caller, suggested []string) []string {
	seen := make(map[string]bool, len(caller)+len(suggested))
	out := make([]string, 0, len(caller)+len(suggested))
	for _, id := range caller {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, id := range suggested {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// fingerprintFor derives the enhancement cache key from
// (normalized_text, techniques, target_model), per the glossary.
func (o *Orchestrator) fingerprintFor(req types.EnhanceRequest) string {
	return fingerprint.Of(req.Text, fingerprint.SortedIDs(req.Techniques), req.TargetModel)
}

// enqueueHistory submits an async, best-effort history write. Submission
// failure (pool closed/full) is logged, never surfaced, matching spec
// §4.5 step 6's "enqueue failure is logged, never surfaced".
func (o *Orchestrator) enqueueHistory(req types.EnhanceRequest, resp *types.EnhanceResponse, intent *types.IntentResult) {
	if o.history == nil {
		return
	}

	record := HistoryRecord{
		RequestID:         uuid.NewString(),
		OriginalText:      req.Text,
		EnhancedText:      resp.EnhancedText,
		Intent:            string(intent.Intent),
		Complexity:        string(intent.Complexity),
		TechniquesApplied: resp.TechniquesApplied,
		Confidence:        resp.Confidence,
		GenerationTimeMs:  resp.GenerationTimeMs,
		TokenEstimate:     resp.TokenEstimate,
		Cached:            resp.Metadata.Cached,
	}

	err := o.historyPool.Submit(context.Background(), func(ctx context.Context) error {
		return o.history.SaveHistory(ctx, record)
	})
	if err != nil {
		o.logger.Warn("failed to enqueue history write", zap.Error(err))
	}
}

func canceledErr(cause error) error {
	return types.NewError(types.ErrCanceled, "request canceled").WithCause(cause)
}

// =============================================================================
// 📦 batch
// =============================================================================

// EnhanceBatch processes every prompt in req independently: one item's
// failure never aborts its peers (spec §4.5 Contract (batch)). Fan-out
// concurrency is bounded by cfg.BatchConcurrency via errgroup.SetLimit.
func (o *Orchestrator) EnhanceBatch(ctx context.Context, req types.BatchRequest) ([]types.BatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	batchSize.Observe(float64(len(req.Prompts)))

	results := make([]types.BatchResult, len(req.Prompts))

	g, gctx := errgroup.WithContext(ctx)
	limit := o.cfg.BatchConcurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, prompt := range req.Prompts {
		i, prompt := i, prompt
		g.Go(func() error {
			resp, err := o.safeEnhance(gctx, prompt)
			if err != nil {
				results[i] = types.BatchResult{Index: i, Err: err}
				return nil // one item's failure never aborts its peers
			}
			results[i] = types.BatchResult{Index: i, Response: resp}
			return nil
		})
	}

	// safeEnhance recovers per-item panics, so g.Wait() never returns a
	// non-nil error here; the batch's own errors live in results[i].Err.
	_ = g.Wait()

	return results, nil
}

// safeEnhance recovers a panicking Enhance call into a per-item error so
// one malformed prompt never takes down the whole batch.
func (o *Orchestrator) safeEnhance(ctx context.Context, req types.EnhanceRequest) (resp *types.EnhanceResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.NewError(types.ErrInternal, fmt.Sprintf("enhancement panicked: %v", r))
		}
	}()
	return o.Enhance(ctx, req)
}
