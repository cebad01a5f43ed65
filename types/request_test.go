package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnhanceRequest_NormalizeAndValidate(t *testing.T) {
	r := EnhanceRequest{Text: "  Explain recursion  "}
	r.Normalize()
	assert.Equal(t, "Explain recursion", r.Text)
	assert.Equal(t, DefaultMaxTokens, r.MaxTokens)
	assert.InDelta(t, DefaultTemperature, r.Temperature, 1e-9)
	assert.NoError(t, r.Validate())
}

func TestEnhanceRequest_ValidateRejectsBadFields(t *testing.T) {
	cases := []EnhanceRequest{
		{Text: ""},
		{Text: "ok", MaxTokens: MaxAllowedTokens + 1},
		{Text: "ok", Temperature: 2.1},
		{Text: "ok", Temperature: -0.1},
		{Text: "ok", Intent: Intent("not_a_real_intent")},
	}
	for _, c := range cases {
		assert.Error(t, c.Validate(), "%+v", c)
	}
}

func TestBatchRequest_Validate(t *testing.T) {
	empty := BatchRequest{}
	assert.Error(t, empty.Validate())

	tooMany := BatchRequest{}
	for i := 0; i < MaxBatchSize+1; i++ {
		tooMany.Prompts = append(tooMany.Prompts, EnhanceRequest{Text: "x"})
	}
	assert.Error(t, tooMany.Validate())

	ok := BatchRequest{Prompts: []EnhanceRequest{{Text: "x"}}}
	assert.NoError(t, ok.Validate())
}
