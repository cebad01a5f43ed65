package techniques

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/promptenhancer/types"
)

// Analogical injects an analogy drawn from a chosen target domain to
// ground an abstract request in something familiar.
type Analogical struct{}

func NewAnalogical() *Analogical { return &Analogical{} }

func (t *Analogical) Apply(_ context.Context, text string, tctx types.TechniqueContext) (string, error) {
	if !nonEmpty(text) {
		return "", nil
	}
	domain := tctx.String("target_domain", "everyday life")
	n := tctx.Int("num_analogies", 1)
	if n < 1 {
		n = 1
	}

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Explain this using an analogy from %s.\n", domain)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (t *Analogical) ValidateInput(text string, _ types.TechniqueContext) bool {
	return nonEmpty(text)
}

func (t *Analogical) EstimateTokens(text string) int { return estimateTokensChar(text) }

func (t *Analogical) Metrics(generated string) map[string]float64 {
	score := 0.75
	if containsAny(strings.ToLower(generated), "analogy", "like", "similar to") {
		score = 0.85
	}
	return map[string]float64{"analogical": score}
}
