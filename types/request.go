package types

// MaxBatchSize bounds an enhance_batch request (spec §6).
const MaxBatchSize = 100

// DefaultMaxTokens and MaxAllowedTokens bound EnhanceRequest.MaxTokens.
const (
	DefaultMaxTokens = 2048
	MaxAllowedTokens = 8192
)

// DefaultTemperature is used when EnhanceRequest.Temperature is unset.
const DefaultTemperature = 0.7

// EnhanceRequest is the inbound request to the orchestrator (C5).
type EnhanceRequest struct {
	Text        string         `json:"text"`
	Intent      Intent         `json:"intent,omitempty"`
	Complexity  Complexity     `json:"complexity,omitempty"`
	Techniques  []string       `json:"techniques,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	TargetModel string         `json:"target_model,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
}

// Normalize fills in the documented defaults for unset optional fields.
// It does not mutate Text beyond trimming; callers are expected to have
// already trimmed it, per spec §3.
func (r *EnhanceRequest) Normalize() {
	r.Text = NormalizeText(r.Text)
	if r.MaxTokens == 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	if r.Temperature == 0 {
		r.Temperature = DefaultTemperature
	}
}

// Validate enforces the structural invariants of §6/§7: trimmed text
// length, max_tokens bound, temperature range.
func (r *EnhanceRequest) Validate() error {
	if err := ValidatePromptText(r.Text); err != nil {
		return err
	}
	if r.MaxTokens < 0 || r.MaxTokens > MaxAllowedTokens {
		return NewValidationError("max_tokens must be between 0 and 8192")
	}
	if r.Temperature < 0.0 || r.Temperature > 2.0 {
		return NewValidationError("temperature must be between 0.0 and 2.0")
	}
	if r.Intent != "" && !IsValidIntent(r.Intent) {
		return NewValidationError("unknown intent override: " + string(r.Intent))
	}
	return nil
}

// BatchRequest is the inbound batch request (spec §6).
type BatchRequest struct {
	Prompts  []EnhanceRequest `json:"prompts"`
	BatchID  string           `json:"batch_id,omitempty"`
	Priority int              `json:"priority,omitempty"`
}

// Validate enforces the 1..100 size bound. Per-item validation happens
// independently in the orchestrator so a single bad item never aborts
// its peers.
func (b *BatchRequest) Validate() error {
	if len(b.Prompts) == 0 {
		return NewValidationError("batch must contain at least one prompt")
	}
	if len(b.Prompts) > MaxBatchSize {
		return NewValidationError("batch exceeds maximum size of 100 prompts")
	}
	return nil
}

// ResponseMetadata carries the non-text-result parts of an
// EnhanceResponse.
type ResponseMetadata struct {
	Intent       Intent          `json:"intent,omitempty"`
	Complexity   Complexity      `json:"complexity,omitempty"`
	Cached       bool            `json:"cached,omitempty"`
	ModelVersion string          `json:"model_version,omitempty"`
	Metrics      *QualityMetrics `json:"metrics,omitempty"`
	Context      map[string]any  `json:"context,omitempty"`
}

// EnhanceResponse is the outbound response (C5 contract).
type EnhanceResponse struct {
	EnhancedText      string           `json:"enhanced_text"`
	TechniquesApplied []string         `json:"techniques_applied"`
	GenerationTimeMs  int64            `json:"generation_time_ms"`
	TokenEstimate     int              `json:"token_estimate"`
	Confidence        float64          `json:"confidence"`
	Warnings          []string         `json:"warnings,omitempty"`
	Metadata          ResponseMetadata `json:"metadata"`
}

// BatchResult pairs one batch item's outcome with its original index so
// callers can reassemble order-preserving results even though failures
// don't abort peers (spec §4.5 Contract (batch)).
type BatchResult struct {
	Index    int              `json:"index"`
	Response *EnhanceResponse `json:"response,omitempty"`
	Err      error            `json:"-"`
}
