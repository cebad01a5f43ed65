package technique

import (
	"github.com/BaSui01/promptenhancer/technique/techniques"
	"github.com/BaSui01/promptenhancer/types"
	"go.uber.org/zap"
)

// defaultPriorities is the canonical (id, priority) pairing for the
// built-in technique library (spec §4.4's minimum set). Priority
// ascending order roughly follows the pipeline a well-formed prompt
// wants applied in: framing (role/emotion) before reasoning scaffolds,
// reasoning before output-shape constraints.
var defaultPriorities = []struct {
	id       string
	priority int
}{
	{"role_play", 10},
	{"emotional_appeal", 15},
	{"zero_shot", 20},
	{"few_shot", 25},
	{"analogical", 30},
	{"chain_of_thought", 40},
	{"tree_of_thoughts", 45},
	{"self_consistency", 50},
	{"react", 55},
	{"step_by_step", 60},
	{"constraints", 70},
	{"structured_output", 80},
}

// NewDefaultRegistry builds a registry with the full built-in technique
// library registered and enabled.
func NewDefaultRegistry(logger *zap.Logger) *Registry {
	registry := NewRegistry(logger)
	impls := map[string]Technique{
		"chain_of_thought":  techniques.NewChainOfThought(),
		"tree_of_thoughts":  techniques.NewTreeOfThoughts(),
		"few_shot":          techniques.NewFewShot(),
		"zero_shot":         techniques.NewZeroShot(),
		"role_play":         techniques.NewRolePlay(),
		"step_by_step":      techniques.NewStepByStep(),
		"structured_output": techniques.NewStructuredOutput(),
		"emotional_appeal":  techniques.NewEmotionalAppeal(),
		"constraints":       techniques.NewConstraints(),
		"analogical":        techniques.NewAnalogical(),
		"self_consistency":  techniques.NewSelfConsistency(),
		"react":             techniques.NewReact(),
	}

	for _, p := range defaultPriorities {
		impl, ok := impls[p.id]
		if !ok {
			continue
		}
		_ = registry.Register(types.TechniqueDescriptor{
			ID:       p.id,
			Name:     p.id,
			Priority: p.priority,
			Enabled:  true,
		}, impl)
	}
	return registry
}
