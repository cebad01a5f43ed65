package techniques

import (
	"context"
	"fmt"

	"github.com/BaSui01/promptenhancer/types"
)

// EmotionalAppeal adds empathetic framing around the request.
type EmotionalAppeal struct{}

func NewEmotionalAppeal() *EmotionalAppeal { return &EmotionalAppeal{} }

var emotionOpeners = map[string]string{
	"encouraging": "I know this matters to you, and I want to help you get it right.",
	"urgent":      "I understand this is time-sensitive and needs careful attention right now.",
	"empathetic":  "I can see why this would be important to you, so let's work through it together.",
	"supportive":  "You're asking a great question, and I'm glad to help you work through it.",
}

func (t *EmotionalAppeal) Apply(_ context.Context, text string, tctx types.TechniqueContext) (string, error) {
	if !nonEmpty(text) {
		return "", nil
	}
	emotion := tctx.String("emotion", "encouraging")
	opener, ok := emotionOpeners[emotion]
	if !ok {
		opener = emotionOpeners["encouraging"]
	}
	out := fmt.Sprintf("%s\n\n%s", opener, text)
	if tctx.Bool("urgency", false) {
		out += "\n\nThis is urgent, so please prioritize a prompt, thorough response."
	}
	return out, nil
}

func (t *EmotionalAppeal) ValidateInput(text string, _ types.TechniqueContext) bool {
	return nonEmpty(text)
}

func (t *EmotionalAppeal) EstimateTokens(text string) int { return estimateTokensChar(text) }

func (t *EmotionalAppeal) Metrics(generated string) map[string]float64 {
	score := 0.75
	if containsAny(generated, "understand", "appreciate", "know this matters") {
		score = 0.8
	}
	return map[string]float64{"emotional_appeal": score}
}
