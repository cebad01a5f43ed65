package techniques

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/promptenhancer/types"
)

// React scaffolds Thought/Action/Observation iterations over an
// allowed tool set (the ReAct prompting pattern).
type React struct{}

func NewReact() *React { return &React{} }

func (t *React) Apply(_ context.Context, text string, tctx types.TechniqueContext) (string, error) {
	if !nonEmpty(text) {
		return "", nil
	}
	numSteps := tctx.Int("num_steps", 3)
	if numSteps < 1 {
		numSteps = 1
	}
	tools := tctx.StringSlice("available_tools")
	allowIterations := tctx.Bool("allow_iterations", false)
	includeReflection := tctx.Bool("include_reflection", false)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nReAct Process: alternate Thought, Action, and Observation until the task is solved.\n", text)
	if len(tools) > 0 {
		fmt.Fprintf(&b, "Available tools: %s\n", strings.Join(tools, ", "))
	}
	b.WriteString("\n")
	for i := 1; i <= numSteps; i++ {
		fmt.Fprintf(&b, "Step %d:\n", i)
		fmt.Fprintf(&b, "Thought %d: reason about what to do next.\n", i)
		fmt.Fprintf(&b, "Action %d: take the next concrete action.\n", i)
		fmt.Fprintf(&b, "Observation %d: record what resulted.\n", i)
		if allowIterations {
			fmt.Fprintf(&b, "Iteration Check: if the task isn't solved, continue to the next step.\n")
		}
	}
	if includeReflection {
		b.WriteString("Reflection: summarize what worked and what to do differently if retrying.\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (t *React) ValidateInput(text string, _ types.TechniqueContext) bool {
	return validateMultiStepInput(text)
}

func (t *React) EstimateTokens(text string) int { return estimateTokensChar(text) }

func (t *React) Metrics(generated string) map[string]float64 {
	score := 0.75
	if strings.Contains(generated, "Thought 1:") {
		score = 0.9
	}
	return map[string]float64{"react": score}
}
