// Package technique implements the technique registry and application
// engine (C4): a catalog of prompt-transformation operators plus the
// priority-ordered loop that composes a selected subset of them.
package technique

import (
	"context"

	"github.com/BaSui01/promptenhancer/types"
)

// Technique is the contract every prompt-transformation operator
// implements (spec §4.4's "Technique contract").
type Technique interface {
	// Apply is a pure transformation: deterministic given (text, ctx).
	// The engine passes ctx through as given; it does not merge the
	// descriptor's DefaultParameters into it.
	Apply(ctx context.Context, text string, tctx types.TechniqueContext) (string, error)
	// ValidateInput is a quick gate; a false return causes the engine
	// to skip this technique and record a warning rather than fail.
	ValidateInput(text string, tctx types.TechniqueContext) bool
	// EstimateTokens is a rough, char-based token count.
	EstimateTokens(text string) int
}

// MetricsProvider is an optional technique capability: a closed-form
// per-technique quality estimator over its own characteristic markers.
// Techniques that don't implement it default to a 0.75 metric score.
type MetricsProvider interface {
	Metrics(generatedText string) map[string]float64
}

// OutputValidator is an optional technique capability for techniques
// whose output has a checkable shape (structured_output's format
// contract in spec §4.4). format and schema are the same parameters
// the technique was invoked with, not inferred from payload.
type OutputValidator interface {
	ValidateOutput(payload, format string, schema map[string]any) (valid bool, errs []string, parsed map[string]any)
}
