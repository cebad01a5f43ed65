// Package techniques holds the concrete implementations of the
// technique.Technique contract: one file per technique, each a pure,
// deterministic text transformation plus its validation and token
// estimation.
package techniques

import (
	"strconv"
	"strings"

	"github.com/BaSui01/promptenhancer/types"
)

// estimateTokensChar is the shared char-based heuristic every technique
// uses for its own estimate_tokens (spec §4.4 allows this explicitly).
func estimateTokensChar(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

func nonEmpty(text string) bool {
	return strings.TrimSpace(text) != ""
}

func containsAny(lower string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

var reasoningMarkers = []string{
	"solve", "analyz", "complex", "implicat", "evaluate", "reason",
	"calculate", "compare", "determine", "optimiz", "equation", "problem",
}

// validateReasoningInput gates techniques that scaffold multi-step
// reasoning: short greetings and trivia questions don't warrant it.
func validateReasoningInput(text string) bool {
	if !nonEmpty(text) {
		return false
	}
	return containsAny(strings.ToLower(text), reasoningMarkers...)
}

var actionVerbs = []string{
	"implement", "debug", "fix", "research", "analyz", "build", "creat",
	"design", "develop", "optimiz", "troubleshoot", "plan", "investigat",
}

// validateMultiStepInput gates techniques that scaffold tool-using,
// multi-step workflows.
func validateMultiStepInput(text string) bool {
	if !nonEmpty(text) {
		return false
	}
	return containsAny(strings.ToLower(text), actionVerbs...)
}

func numbered(i int) string {
	return strconv.Itoa(i + 1)
}

// detectDomain guesses a reasoning domain from characteristic
// vocabulary, used when chain_of_thought isn't told one explicitly.
func detectDomain(text string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "equation", "sum", "calculate", "arithmetic", "number", "compound interest"):
		return "mathematical"
	case containsAny(lower, "algorithm", "sort", "search", "code", "function", "complexity"):
		return "algorithmic"
	case containsAny(lower, "bug", "error", "crash", "debug", "exception", "failing"):
		return "debugging"
	default:
		return "general"
	}
}

func defaultSteps(domain string) []string {
	switch domain {
	case "mathematical":
		return []string{
			"Identify the known quantities and what is being asked",
			"Determine which formula or method applies",
			"Carry out the calculation carefully",
			"Check the result against the original question",
		}
	case "algorithmic":
		return []string{
			"Clarify the input, output, and constraints",
			"Consider candidate approaches and their complexity",
			"Work through the chosen approach on a small example",
			"Verify correctness and edge cases",
		}
	case "debugging":
		return []string{
			"Reproduce the problem and gather evidence",
			"Form a hypothesis about the root cause",
			"Test the hypothesis with a targeted change",
			"Confirm the fix and check for regressions",
		}
	default:
		return []string{
			"Break the problem into smaller parts",
			"Address each part in order",
			"Combine the partial results",
			"Review the overall answer for consistency",
		}
	}
}

func stepCountForComplexity(complexity types.Complexity) int {
	switch complexity {
	case types.ComplexityComplex:
		return 6
	case types.ComplexityModerate:
		return 5
	default:
		return 4
	}
}
