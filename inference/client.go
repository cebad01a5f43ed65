// Package inference implements the ML classification client (C1): a
// timeout-bounded, retrying, circuit-broken HTTP client around the
// remote intent model described in spec §6.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/promptenhancer/config"
	"github.com/BaSui01/promptenhancer/inference/circuitbreaker"
	"github.com/BaSui01/promptenhancer/inference/retry"
	"github.com/BaSui01/promptenhancer/internal/fingerprint"
	"github.com/BaSui01/promptenhancer/internal/tlsutil"
	"github.com/BaSui01/promptenhancer/types"
	"go.uber.org/zap"
)

// PredictionCache is the subset of internal/cache.Manager's prediction
// sugar (CachePrediction/GetCachedPrediction) the client needs to skip
// a network round-trip on identical input, defined locally so this
// package never imports internal/cache.
type PredictionCache interface {
	CachePrediction(ctx context.Context, modelName, inputHash string, prediction any, ttl time.Duration) error
	GetCachedPrediction(ctx context.Context, modelName, inputHash string, dest any) error
}

// Client talks to the remote ML intent classifier.
type Client struct {
	cfg    config.InferenceConfig
	http   *http.Client
	logger *zap.Logger

	breaker circuitbreaker.CircuitBreaker
	retryer retry.Retryer

	cache     PredictionCache
	modelName string

	healthMu            sync.Mutex
	healthCheckedAt     time.Time
	healthCachedHealthy bool
}

// NewClient builds a ready-to-use inference client from cfg. cfg is
// expected to already carry validated defaults (config.DefaultInferenceConfig).
func NewClient(cfg config.InferenceConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "inference.client"))

	breaker := circuitbreaker.NewCircuitBreaker(&circuitbreaker.Config{
		Threshold:        cfg.BreakerThreshold,
		Timeout:          cfg.Timeout,
		ResetTimeout:     cfg.BreakerRecoveryTimeout,
		HalfOpenMaxCalls: cfg.BreakerHalfOpenMaxCalls,
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}, logger)

	retryer := retry.NewBackoffRetryer(&retry.RetryPolicy{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialBackoff,
		MaxDelay:     cfg.MaxBackoff,
		Multiplier:   2.0,
		Jitter:       cfg.BackoffJitter,
		RetryableErrors: []error{
			types.NewError(types.ErrConnect, ""),
			types.NewError(types.ErrTimeout, ""),
		},
	}, logger)

	return &Client{
		cfg:     cfg,
		http:    tlsutil.SecureHTTPClient(cfg.Timeout),
		logger:  logger,
		breaker: breaker,
		retryer: retryer,
	}
}

// WithPredictionCache enables the cache_prediction/get_cached_prediction
// shortcut: Classify consults cache under modelName before calling the
// remote model, and populates it afterward. Optional; a client with no
// cache configured always calls through.
func (c *Client) WithPredictionCache(cache PredictionCache, modelName string) *Client {
	c.cache = cache
	c.modelName = modelName
	return c
}

// =============================================================================
// wire shapes (spec §6 "ML service (consumed)")
// =============================================================================

type classifyRequest struct {
	Text string `json:"text"`
}

type batchClassifyRequest struct {
	Text []string `json:"text"`
}

type batchClassifyResponse struct {
	Results []mlIntentItem `json:"results"`
}

type mlComplexity struct {
	Level string  `json:"level"`
	Score float64 `json:"score"`
}

type mlTechnique struct {
	Name  string  `json:"name"`
	Score float64 `json:"score,omitempty"`
}

type mlMetadata struct {
	ModelVersion    string `json:"model_version"`
	InferenceTimeMs int64  `json:"inference_time_ms"`
}

type mlAltIntent struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

type mlIntentItem struct {
	Intent     string        `json:"intent"`
	Confidence float64       `json:"confidence"`
	Complexity mlComplexity  `json:"complexity"`
	Techniques []mlTechnique `json:"techniques"`
	AllIntents []mlAltIntent `json:"all_intents,omitempty"`
	Metadata   mlMetadata    `json:"metadata"`
}

func toIntentResult(item mlIntentItem) *types.IntentResult {
	complexity := types.Complexity(item.Complexity.Level)
	switch complexity {
	case types.ComplexitySimple, types.ComplexityModerate, types.ComplexityComplex:
	default:
		complexity = types.ComplexityModerate
	}

	techniques := make([]string, 0, len(item.Techniques))
	for _, t := range item.Techniques {
		techniques = append(techniques, t.Name)
	}

	return &types.IntentResult{
		Intent:              types.Intent(item.Intent),
		Confidence:          item.Confidence,
		Complexity:          complexity,
		ComplexityScore:     item.Complexity.Score,
		Audience:            types.AudienceGeneral, // the ML model carries no audience signal; rules fill this in
		SuggestedTechniques: techniques,
		Source:              types.SourceML,
		ModelVersion:        item.Metadata.ModelVersion,
	}
}

// =============================================================================
// 🔌 classify / batch_classify
// =============================================================================

// Classify sends one prompt to the model and returns its intent.
func (c *Client) Classify(ctx context.Context, text string) (*types.IntentResult, error) {
	text = types.NormalizeText(text)
	if text == "" {
		return nil, types.NewValidationError("classify requires non-empty text")
	}

	truncated := false
	if c.cfg.MaxLen > 0 {
		if runes := []rune(text); len(runes) > c.cfg.MaxLen {
			text = string(runes[:c.cfg.MaxLen])
			truncated = true
		}
	}

	inputHash := fingerprint.Of(text)
	if c.cache != nil {
		var cached types.IntentResult
		if err := c.cache.GetCachedPrediction(ctx, c.modelName, inputHash, &cached); err == nil {
			hit := cached
			if truncated {
				hit.Warnings = append(hit.Warnings, "input_truncated")
			}
			return &hit, nil
		}
	}

	start := time.Now()
	attempts := 0
	result, err := retry.DoWithResultTyped[*types.IntentResult](c.retryer, ctx, func() (*types.IntentResult, error) {
		attempts++
		return c.classifyOnce(ctx, text)
	})
	if err != nil {
		return nil, err
	}

	result.InferenceTimeMs = time.Since(start).Milliseconds()
	result.RetryAttempts = attempts - 1

	if c.cache != nil {
		if cacheErr := c.cache.CachePrediction(ctx, c.modelName, inputHash, result, c.cfg.PredictionCacheTTL); cacheErr != nil {
			c.logger.Warn("failed to populate prediction cache", zap.Error(cacheErr))
		}
	}

	if truncated {
		result.Warnings = append(result.Warnings, "input_truncated")
	}
	return result, nil
}

func (c *Client) classifyOnce(ctx context.Context, text string) (*types.IntentResult, error) {
	result, err := circuitbreaker.CallWithResultTyped[*types.IntentResult](c.breaker, ctx, func() (*types.IntentResult, error) {
		item, err := c.postClassify(ctx, text)
		if err != nil {
			return nil, err
		}
		return toIntentResult(item), nil
	})
	return result, wrapBreakerError(err)
}

// BatchClassify sends multiple prompts in a single network call. Input
// beyond max_batch_size is dropped and every returned item carries a
// "batch_truncated" warning, per spec §4.1's batch semantics.
func (c *Client) BatchClassify(ctx context.Context, texts []string) ([]*types.IntentResult, error) {
	trimmed := make([]string, 0, len(texts))
	for _, t := range texts {
		t = types.NormalizeText(t)
		if t == "" {
			continue
		}
		if c.cfg.MaxLen > 0 {
			if runes := []rune(t); len(runes) > c.cfg.MaxLen {
				t = string(runes[:c.cfg.MaxLen])
			}
		}
		trimmed = append(trimmed, t)
	}
	if len(trimmed) == 0 {
		return nil, types.NewValidationError("batch_classify requires at least one non-empty text")
	}

	batchTruncated := false
	if c.cfg.MaxBatchSize > 0 && len(trimmed) > c.cfg.MaxBatchSize {
		trimmed = trimmed[:c.cfg.MaxBatchSize]
		batchTruncated = true
	}

	start := time.Now()
	attempts := 0
	items, err := retry.DoWithResultTyped[[]mlIntentItem](c.retryer, ctx, func() ([]mlIntentItem, error) {
		attempts++
		return c.batchClassifyOnce(ctx, trimmed)
	})
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start).Milliseconds()
	results := make([]*types.IntentResult, 0, len(items))
	for _, item := range items {
		r := toIntentResult(item)
		r.InferenceTimeMs = elapsed
		r.RetryAttempts = attempts - 1
		if batchTruncated {
			r.Warnings = append(r.Warnings, "batch_truncated")
		}
		results = append(results, r)
	}
	return results, nil
}

func (c *Client) batchClassifyOnce(ctx context.Context, texts []string) ([]mlIntentItem, error) {
	items, err := circuitbreaker.CallWithResultTyped[[]mlIntentItem](c.breaker, ctx, func() ([]mlIntentItem, error) {
		return c.postBatchClassify(ctx, texts)
	})
	return items, wrapBreakerError(err)
}

// wrapBreakerError normalizes the breaker's sentinel errors into the
// shared *types.Error taxonomy so callers can use types.IsCode
// uniformly regardless of which layer failed.
func wrapBreakerError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyCallsInHalfOpen) {
		return types.NewError(types.ErrCircuitOpen, "inference circuit breaker is open").WithCause(err).WithRetryable(false)
	}
	return err
}

// =============================================================================
// 🌐 transport
// =============================================================================

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s%s", strings.TrimRight(c.cfg.BaseURL, "/"), path)
}

func (c *Client) buildHeaders(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func (c *Client) postClassify(ctx context.Context, text string) (mlIntentItem, error) {
	payload, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return mlIntentItem{}, types.NewError(types.ErrInternal, "failed to marshal classify request").WithCause(err)
	}

	var item mlIntentItem
	err = c.doJSON(ctx, http.MethodPost, c.endpoint("/classify"), payload, &item)
	return item, err
}

func (c *Client) postBatchClassify(ctx context.Context, texts []string) ([]mlIntentItem, error) {
	payload, err := json.Marshal(batchClassifyRequest{Text: texts})
	if err != nil {
		return nil, types.NewError(types.ErrInternal, "failed to marshal batch_classify request").WithCause(err)
	}

	var resp batchClassifyResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("/classify/batch"), payload, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// doJSON performs one request/response round trip and maps transport
// and status-level failures onto the §4.1 failure taxonomy.
func (c *Client) doJSON(ctx context.Context, method, url string, body []byte, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return types.NewError(types.ErrInternal, "failed to build request").WithCause(err)
	}
	c.buildHeaders(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return types.NewError(types.ErrTimeout, "inference request deadline exceeded").WithCause(err).WithRetryable(true)
		}
		return types.NewError(types.ErrConnect, "inference transport failure").WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrorBody(resp.Body)
		return types.NewError(types.ErrInference, fmt.Sprintf("model service returned status %d: %s", resp.StatusCode, msg)).
			WithHTTPStatus(resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewError(types.ErrInference, "malformed model response body").WithCause(err)
	}
	return nil
}

func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return "<empty body>"
	}
	return strings.TrimSpace(string(data))
}

// =============================================================================
// 🏥 health
// =============================================================================

// Health reports whether the inference service is reachable. Results
// are cached for cfg.HealthCacheTTL to avoid synchronous floods.
func (c *Client) Health(ctx context.Context) (bool, error) {
	c.healthMu.Lock()
	if !c.healthCheckedAt.IsZero() && time.Since(c.healthCheckedAt) < c.cfg.HealthCacheTTL {
		healthy := c.healthCachedHealthy
		c.healthMu.Unlock()
		return healthy, nil
	}
	c.healthMu.Unlock()

	healthy, err := c.probeHealth(ctx)

	c.healthMu.Lock()
	c.healthCheckedAt = time.Now()
	c.healthCachedHealthy = healthy
	c.healthMu.Unlock()

	return healthy, err
}

// ResetHealthCache discards the cached health result so the next
// Health call always probes the service.
func (c *Client) ResetHealthCache() {
	c.healthMu.Lock()
	c.healthCheckedAt = time.Time{}
	c.healthMu.Unlock()
}

func (c *Client) probeHealth(ctx context.Context) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/health"), nil)
	if err != nil {
		return false, types.NewError(types.ErrInternal, "failed to build health request").WithCause(err)
	}
	c.buildHeaders(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return false, types.NewError(types.ErrConnect, "inference health probe failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := readErrorBody(resp.Body)
		return false, types.NewError(types.ErrInference, fmt.Sprintf("health check failed: status=%d msg=%s", resp.StatusCode, msg)).
			WithHTTPStatus(resp.StatusCode)
	}
	return true, nil
}

// State exposes the circuit breaker's current state, mostly for
// orchestrator-level logging and the classifier's quality_mode fallback.
func (c *Client) State() circuitbreaker.State {
	return c.breaker.State()
}

// IsCircuitOpen reports whether err represents a fast-fail breaker trip,
// which the classifier treats as "ML unavailable" rather than a
// retryable or fatal failure.
func IsCircuitOpen(err error) bool {
	return types.IsCode(err, types.ErrCircuitOpen) ||
		errors.Is(err, circuitbreaker.ErrCircuitOpen) ||
		errors.Is(err, circuitbreaker.ErrTooManyCallsInHalfOpen)
}
