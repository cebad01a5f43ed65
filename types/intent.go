package types

// Intent is one of the closed set of ten labels the classifier can
// produce.
type Intent string

const (
	IntentQuestionAnswering Intent = "question_answering"
	IntentCreativeWriting   Intent = "creative_writing"
	IntentCodeGeneration    Intent = "code_generation"
	IntentDataAnalysis      Intent = "data_analysis"
	IntentReasoning         Intent = "reasoning"
	IntentSummarization     Intent = "summarization"
	IntentTranslation       Intent = "translation"
	IntentConversation      Intent = "conversation"
	IntentTaskPlanning      Intent = "task_planning"
	IntentProblemSolving    Intent = "problem_solving"
)

// AllIntents lists the closed intent set in a stable order.
var AllIntents = []Intent{
	IntentQuestionAnswering,
	IntentCreativeWriting,
	IntentCodeGeneration,
	IntentDataAnalysis,
	IntentReasoning,
	IntentSummarization,
	IntentTranslation,
	IntentConversation,
	IntentTaskPlanning,
	IntentProblemSolving,
}

// IsValidIntent reports whether i belongs to the closed intent set.
func IsValidIntent(i Intent) bool {
	for _, v := range AllIntents {
		if v == i {
			return true
		}
	}
	return false
}

// DefaultTechniquesForIntent is the intent -> technique default map
// from the glossary. Order matters: it is the preferred application
// order before priority/weight ranking is applied.
var DefaultTechniquesForIntent = map[Intent][]string{
	IntentQuestionAnswering: {"chain_of_thought", "few_shot"},
	IntentCreativeWriting:   {"few_shot", "role_play"},
	IntentCodeGeneration:    {"structured_output", "step_by_step", "few_shot"},
	IntentDataAnalysis:      {"chain_of_thought", "structured_output"},
	IntentReasoning:         {"chain_of_thought", "tree_of_thoughts", "self_consistency"},
	IntentSummarization:     {"structured_output"},
	IntentTranslation:       {"few_shot"},
	IntentConversation:      {"role_play"},
	IntentTaskPlanning:      {"step_by_step", "structured_output"},
	IntentProblemSolving:    {"chain_of_thought", "react", "self_consistency"},
}

// Complexity is the coarse complexity bucket assigned to a prompt.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Audience is the inferred target audience of a prompt.
type Audience string

const (
	AudienceChild        Audience = "child"
	AudienceBeginner     Audience = "beginner"
	AudienceIntermediate Audience = "intermediate"
	AudienceExpert       Audience = "expert"
	AudienceGeneral      Audience = "general"
)

// IntentSource records which subsystem produced an IntentResult.
type IntentSource string

const (
	SourceRules  IntentSource = "rules"
	SourceML     IntentSource = "ml"
	SourceCache  IntentSource = "cache"
	SourceHybrid IntentSource = "hybrid"
)

// IntentResult is the output of the intent classifier (C3).
type IntentResult struct {
	Intent              Intent       `json:"intent"`
	Confidence          float64      `json:"confidence"`
	Complexity          Complexity   `json:"complexity"`
	ComplexityScore     float64      `json:"complexity_score,omitempty"`
	Audience            Audience     `json:"audience"`
	SuggestedTechniques []string     `json:"suggested_techniques"`
	Source              IntentSource `json:"source"`

	// ModelVersion is set when Source == SourceML.
	ModelVersion string `json:"model_version,omitempty"`
	// MatchedPatterns is set when Source == SourceRules.
	MatchedPatterns []string `json:"matched_patterns,omitempty"`

	Warnings []string `json:"warnings,omitempty"`

	// InferenceTimeMs and RetryAttempts are populated when an ML call
	// participated in producing this result.
	InferenceTimeMs int64 `json:"inference_time_ms,omitempty"`
	RetryAttempts   int   `json:"retry_attempts,omitempty"`
}
