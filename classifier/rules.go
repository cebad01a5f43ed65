// Package classifier implements the intent classifier (C3): a
// rule-engine-first, ML-assisted hybrid router.
package classifier

import (
	"regexp"
	"sort"
	"strings"

	"github.com/BaSui01/promptenhancer/types"
)

// weightPhrase and weightKeyword are added per phrase and keyword hit
// (phrase hits outrank keyword hits). weightAudience ranks below both
// but is not added to any intent's score: audience cues feed only
// DetectAudience/DetectComplexity.
const (
	weightPhrase   = 0.45
	weightKeyword  = 0.18
	weightAudience = 0.10
)

type intentRule struct {
	intent   types.Intent
	phrases  []string
	keywords []string
}

// intentRules is the fixed per-intent pattern inventory. Order does not
// matter for scoring; candidates are ranked by accumulated score.
var intentRules = []intentRule{
	{
		intent: types.IntentQuestionAnswering,
		phrases: []string{
			"what is", "what are", "how does", "how do", "can you explain",
			"tell me about", "explain to me", "walk me through", "why does",
			"why is", "could you explain",
		},
		keywords: []string{"explain", "what", "why", "how", "describe", "define"},
	},
	{
		intent: types.IntentCreativeWriting,
		phrases: []string{
			"write a story", "write a poem", "write an essay", "draft a blog",
			"compose a", "creative story", "write a novel", "write a script",
		},
		keywords: []string{"story", "poem", "essay", "blog", "narrative", "creative", "compose", "novel"},
	},
	{
		intent: types.IntentCodeGeneration,
		phrases: []string{
			"write a function", "write code", "implement a", "create a function",
			"write a python", "write a javascript", "write sql", "code for",
			"debug this", "fix this bug", "create an api", "create a rest api",
		},
		keywords: []string{"code", "function", "python", "javascript", "java", "sql", "algorithm", "debug", "api", "script", "program"},
	},
	{
		intent: types.IntentDataAnalysis,
		phrases: []string{
			"analyze the data", "analyze this data", "find patterns",
			"statistical analysis", "generate insights", "examine the correlation",
			"create a chart",
		},
		keywords: []string{"analyze", "analysis", "dataset", "data", "statistics", "correlation", "trend", "chart", "insight"},
	},
	{
		intent: types.IntentReasoning,
		phrases: []string{
			"why does", "why is", "think through", "reason about", "walk through the logic",
		},
		keywords: []string{"reason", "logic", "because", "therefore", "infer", "deduce"},
	},
	{
		intent: types.IntentSummarization,
		phrases: []string{
			"summarize this", "give me a summary", "tl;dr", "condense this",
		},
		keywords: []string{"summarize", "summary", "condense", "shorten", "recap"},
	},
	{
		intent: types.IntentTranslation,
		phrases: []string{
			"translate this", "translate to", "how do you say", "what's this in",
			"convert this text from",
		},
		keywords: []string{"translate", "translation", "spanish", "french", "german", "japanese", "italian", "language"},
	},
	{
		intent: types.IntentConversation,
		phrases: []string{
			"let's chat", "let's talk", "how are you", "just chatting",
		},
		keywords: []string{"chat", "talk", "hi", "hello", "hey"},
	},
	{
		intent: types.IntentTaskPlanning,
		phrases: []string{
			"create a plan", "create a project plan", "plan out", "make a schedule",
			"organize a", "project roadmap",
		},
		keywords: []string{"plan", "schedule", "roadmap", "organize", "timeline", "milestones"},
	},
	{
		intent: types.IntentProblemSolving,
		phrases: []string{
			"help me solve", "solve this problem", "how to solve", "figure out how to",
			"troubleshoot this",
		},
		keywords: []string{"solve", "problem", "troubleshoot", "fix", "resolve"},
	},
}

// audience cues (spec §4.3): "5 year old" etc. force child audience
// (and, downstream, simple complexity).
var (
	childCues = []string{
		"5 year old", "five year old", "for kids", "like i'm 5", "like i am 5",
		"for children", "to a kid", "simple terms for kids", "children's",
	}
	beginnerCues = []string{
		"i'm a beginner", "i am a beginner", "beginner", "new to this",
		"i'm new to", "just starting", "just getting started",
	}
	expertCues = []string{
		"advanced explanation", "technical deep-dive", "expert level",
		"in depth technical", "for an expert", "advanced level",
	}
)

var clauseSplitter = regexp.MustCompile(`[,;:]|\b(and|but|which|that|because)\b`)

// RuleEngine matches text against the fixed pattern inventory and
// derives audience/complexity.
type RuleEngine struct{}

// NewRuleEngine constructs a stateless rule engine.
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

// RuleMatch is one candidate intent's accumulated score and trace.
type RuleMatch struct {
	Intent          types.Intent
	Score           float64
	MatchedPatterns []string
}

// Classify scores every intent rule against text and returns matches
// sorted by descending score. The caller picks matches[0] as the top
// candidate; the full slice backs metadata.all_matches-style tracing.
func (e *RuleEngine) Classify(text string) []RuleMatch {
	lower := strings.ToLower(text)

	matches := make([]RuleMatch, 0, len(intentRules))
	for _, rule := range intentRules {
		var score float64
		var trace []string

		for _, phrase := range rule.phrases {
			if strings.Contains(lower, phrase) {
				score += weightPhrase
				trace = append(trace, "phrase:"+phrase)
			}
		}
		for _, kw := range rule.keywords {
			if containsWord(lower, kw) {
				score += weightKeyword
				trace = append(trace, "keyword:"+kw)
			}
		}

		if score == 0 {
			continue
		}
		if score > 1.0 {
			score = 1.0
		}
		matches = append(matches, RuleMatch{Intent: rule.intent, Score: score, MatchedPatterns: trace})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	return matches
}

// containsWord does a loose word-boundary substring match: cheap
// enough for the rule engine's scale and avoids pulling in a full
// tokenizer for single-word keyword checks.
func containsWord(haystack, word string) bool {
	idx := strings.Index(haystack, word)
	for idx != -1 {
		start := idx
		end := idx + len(word)
		leftOK := start == 0 || !isWordChar(haystack[start-1])
		rightOK := end == len(haystack) || !isWordChar(haystack[end])
		if leftOK && rightOK {
			return true
		}
		next := strings.Index(haystack[idx+1:], word)
		if next == -1 {
			return false
		}
		idx = idx + 1 + next
	}
	return false
}

func isWordChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_'
}

// DetectAudience applies the child/beginner/expert cue lists, falling
// back to "general".
func DetectAudience(text string) types.Audience {
	lower := strings.ToLower(text)
	for _, cue := range childCues {
		if strings.Contains(lower, cue) {
			return types.AudienceChild
		}
	}
	for _, cue := range expertCues {
		if strings.Contains(lower, cue) {
			return types.AudienceExpert
		}
	}
	for _, cue := range beginnerCues {
		if strings.Contains(lower, cue) {
			return types.AudienceBeginner
		}
	}
	return types.AudienceGeneral
}

// DetectComplexity scores length and clause count into a bucket. A
// child audience always forces "simple" regardless of length (spec
// §4.3: "5 year old" -> child -> force simple).
func DetectComplexity(text string, audience types.Audience) (types.Complexity, float64) {
	if audience == types.AudienceChild {
		return types.ComplexitySimple, 0.1
	}

	words := strings.Fields(text)
	clauses := len(clauseSplitter.FindAllString(text, -1)) + 1

	score := float64(len(words))/40.0 + float64(clauses-1)*0.15
	if score > 1.0 {
		score = 1.0
	}

	switch {
	case score < 0.25:
		return types.ComplexitySimple, score
	case score < 0.6:
		return types.ComplexityModerate, score
	default:
		return types.ComplexityComplex, score
	}
}
