package techniques

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/promptenhancer/types"
)

// StructuredOutput demands output in a named format, optionally backed
// by a schema, prefill hints, and an explicit/implicit error-reporting
// convention. It also validates a generated payload against the
// requested format via ValidateOutput.
type StructuredOutput struct{}

func NewStructuredOutput() *StructuredOutput { return &StructuredOutput{} }

func (t *StructuredOutput) Apply(_ context.Context, text string, tctx types.TechniqueContext) (string, error) {
	if !nonEmpty(text) {
		return "", nil
	}

	format := tctx.String("output_format", "json")
	errorHandling := tctx.String("error_handling", "explicit")

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n")

	switch format {
	case "xml":
		b.WriteString("Respond in valid XML format. Start with <?xml version=\"1.0\"?> and a root <response> element.\n")
		b.WriteString("Escape reserved characters (&lt; &gt; &amp;) inside text content.\n")
		b.WriteString("<response>\n  ...\n</response>\n")
	case "yaml":
		b.WriteString("Respond in valid YAML format (YAML 1.2). Use 2 spaces for indentation, no tabs.\n")
		b.WriteString("```yaml\nkey: value\n```\n")
	case "csv":
		cfg, _ := tctx["csv_config"].(map[string]any)
		delim := stringOr(cfg, "delimiter", ",")
		quote := stringOr(cfg, "quote_char", "\"")
		fmt.Fprintf(&b, "Respond in CSV format. Delimiter: %s Quote character: %s\n", delim, quote)
		b.WriteString("Include column headers on the first line.\n")
	case "table":
		style := tctx.String("table_style", "plain")
		fmt.Fprintf(&b, "Respond as a formatted table (table style: %s) with consistent column widths.\n", style)
	case "markdown":
		b.WriteString("Respond in Markdown format.\n")
		for _, feature := range tctx.StringSlice("markdown_features") {
			fmt.Fprintf(&b, "- %s\n", feature)
		}
		b.WriteString("Use heading levels as needed (# ## ###).\n")
	case "custom":
		custom := tctx.String("custom_format", "the specified custom format")
		fmt.Fprintf(&b, "Respond using this custom format: %s\n", custom)
		if req := tctx.String("custom_requirements", ""); req != "" {
			fmt.Fprintf(&b, "Requirements: %s\n", req)
		}
	default: // json
		b.WriteString("Respond with valid JSON only, parseable with json.loads(). No prose outside the JSON object.\n")
		b.WriteString("```json\n{\n  ...\n}\n```\n")
		taskType := tctx.String("task_type", "")
		switch taskType {
		case "analysis":
			b.WriteString(`{"response_type": "analysis", "key_metrics": {}}` + "\n")
		case "classification":
			b.WriteString(`{"response_type": "classification", "confidence_scores": {}}` + "\n")
		}
		if schema, ok := tctx["schema"].(map[string]any); ok {
			if encoded, err := json.MarshalIndent(schema, "", "  "); err == nil {
				b.WriteString("Required JSON Schema:\n")
				b.Write(encoded)
				b.WriteString("\n")
			}
		}
	}

	if errorHandling == "explicit" {
		b.WriteString(`On failure, respond with {"error": true, "reason": "<why>"} instead.` + "\n")
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

func stringOr(m map[string]any, key, fallback string) string {
	if m == nil {
		return fallback
	}
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func (t *StructuredOutput) ValidateInput(text string, _ types.TechniqueContext) bool {
	return nonEmpty(text)
}

func (t *StructuredOutput) EstimateTokens(text string) int { return estimateTokensChar(text) }

func (t *StructuredOutput) Metrics(generated string) map[string]float64 {
	score := 0.75
	if strings.Contains(strings.ToLower(generated), "format") {
		score = 0.85
	}
	return map[string]float64{"structured_output": score}
}

// ValidateOutput checks payload against format and, for json, schema's
// required fields (spec §4.4 "validate a generated payload against the
// requested format").
func (t *StructuredOutput) ValidateOutput(payload, format string, schema map[string]any) (bool, []string, map[string]any) {
	switch format {
	case "", "json":
		return validateJSONPayload(payload, schema)
	default:
		if !nonEmpty(payload) {
			return false, []string{"payload is empty"}, nil
		}
		return true, nil, nil
	}
}

func validateJSONPayload(payload string, schema map[string]any) (bool, []string, map[string]any) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return false, []string{err.Error()}, nil
	}
	var errs []string
	for _, field := range requiredFields(schema) {
		if _, ok := parsed[field]; !ok {
			errs = append(errs, fmt.Sprintf("missing required field %q", field))
		}
	}
	return len(errs) == 0, errs, parsed
}

func requiredFields(schema map[string]any) []string {
	raw, ok := schema["required"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
