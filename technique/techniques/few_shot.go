package techniques

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/promptenhancer/types"
)

// FewShot prepends K input/output exemplars in the chosen format
// (input_output, xml, delimiter). Custom examples always win; without
// them a small generic default set is used.
type FewShot struct{}

func NewFewShot() *FewShot { return &FewShot{} }

type fewShotExample struct{ input, output string }

func (t *FewShot) Apply(_ context.Context, text string, tctx types.TechniqueContext) (string, error) {
	if !nonEmpty(text) {
		return "", nil
	}

	examples := customExamples(tctx)
	if len(examples) == 0 {
		examples = defaultExamples(tctx.Int("num_examples", 3))
	}

	style := tctx.String("format_style", "input_output")
	delimiter := tctx.String("delimiter", "---")

	var b strings.Builder
	b.WriteString("Here are some examples:\n\n")
	for i, ex := range examples {
		switch style {
		case "xml":
			fmt.Fprintf(&b, "<example><input>%s</input><output>%s</output></example>\n", ex.input, ex.output)
		case "delimiter":
			fmt.Fprintf(&b, "%s\n%s\n%s\n%s\n", ex.input, delimiter, ex.output, delimiter)
		default:
			fmt.Fprintf(&b, "Example %s:\nINPUT: %s\nOUTPUT: %s\n\n", numbered(i), ex.input, ex.output)
		}
	}
	b.WriteString(text)
	return b.String(), nil
}

func customExamples(tctx types.TechniqueContext) []fewShotExample {
	raw, ok := tctx["examples"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		if typed, ok := raw.([]map[string]any); ok {
			out := make([]fewShotExample, 0, len(typed))
			for _, m := range typed {
				out = append(out, fewShotExample{input: fmt.Sprint(m["input"]), output: fmt.Sprint(m["output"])})
			}
			return out
		}
		return nil
	}
	out := make([]fewShotExample, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, fewShotExample{input: fmt.Sprint(m["input"]), output: fmt.Sprint(m["output"])})
	}
	return out
}

func defaultExamples(n int) []fewShotExample {
	pool := []fewShotExample{
		{input: "2 + 2", output: "4"},
		{input: "The sky is blue.", output: "Affirmative statement about the sky's color."},
		{input: "Paris", output: "Capital of France."},
		{input: "Hello", output: "Hola"},
		{input: "Good morning", output: "Buenos dias"},
	}
	if n <= 0 || n > len(pool) {
		n = min(3, len(pool))
	}
	return pool[:n]
}

func (t *FewShot) ValidateInput(text string, _ types.TechniqueContext) bool {
	return nonEmpty(text)
}

func (t *FewShot) EstimateTokens(text string) int { return estimateTokensChar(text) }

func (t *FewShot) Metrics(generated string) map[string]float64 {
	lower := strings.ToLower(generated)
	score := 0.75
	if containsAny(lower, "example") && containsAny(lower, "input") && containsAny(lower, "output") {
		score = 0.9
	}
	return map[string]float64{"few_shot": score}
}
