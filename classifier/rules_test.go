package classifier

import (
	"testing"

	"github.com/BaSui01/promptenhancer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleEngine_Classify_CodeGeneration(t *testing.T) {
	e := NewRuleEngine()
	matches := e.Classify("Write a Python function to calculate fibonacci numbers")
	require.NotEmpty(t, matches)
	assert.Equal(t, types.IntentCodeGeneration, matches[0].Intent)
	assert.Greater(t, matches[0].Score, 0.5)
}

func TestRuleEngine_Classify_Translation(t *testing.T) {
	e := NewRuleEngine()
	matches := e.Classify("Translate this to Spanish")
	require.NotEmpty(t, matches)
	assert.Equal(t, types.IntentTranslation, matches[0].Intent)
}

func TestRuleEngine_Classify_NoMatch(t *testing.T) {
	e := NewRuleEngine()
	matches := e.Classify("asdkjf qweoiu")
	assert.Empty(t, matches)
}

func TestRuleEngine_MatchedPatternsTraced(t *testing.T) {
	e := NewRuleEngine()
	matches := e.Classify("Can you explain machine learning to me?")
	require.NotEmpty(t, matches)
	assert.Contains(t, matches[0].MatchedPatterns, "phrase:can you explain")
}

func TestDetectAudience_Child(t *testing.T) {
	assert.Equal(t, types.AudienceChild, DetectAudience("Explain gravity to a 5 year old"))
	assert.Equal(t, types.AudienceChild, DetectAudience("Tell me about dinosaurs for kids"))
}

func TestDetectAudience_Beginner(t *testing.T) {
	assert.Equal(t, types.AudienceBeginner, DetectAudience("I'm a beginner, how does coding work?"))
}

func TestDetectAudience_Expert(t *testing.T) {
	assert.Equal(t, types.AudienceExpert, DetectAudience("Give me an advanced explanation of neural networks"))
}

func TestDetectAudience_GeneralFallback(t *testing.T) {
	assert.Equal(t, types.AudienceGeneral, DetectAudience("Just a regular explanation please"))
}

func TestDetectComplexity_ChildForcesSimple(t *testing.T) {
	complexity, score := DetectComplexity("Explain quantum computing to a 5 year old in great detail with many clauses, examples, and context", types.AudienceChild)
	assert.Equal(t, types.ComplexitySimple, complexity)
	assert.Less(t, score, 0.25)
}

func TestDetectComplexity_ShortTextIsSimple(t *testing.T) {
	complexity, _ := DetectComplexity("What is water?", types.AudienceGeneral)
	assert.Equal(t, types.ComplexitySimple, complexity)
}

func TestDetectComplexity_LongMultiClauseIsComplex(t *testing.T) {
	text := "Analyze the economic implications of monetary policy on emerging markets, considering inflation, trade balances, and currency valuation, and explain how central banks typically respond because these dynamics interact in ways that are not always intuitive"
	complexity, _ := DetectComplexity(text, types.AudienceGeneral)
	assert.Equal(t, types.ComplexityComplex, complexity)
}
