package technique

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenEstimator estimates a token count for text. The engine falls
// back to a char-per-token heuristic when tiktoken is disabled or its
// encoding fails to initialize.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// charEstimator is the "char-based heuristic" spec §4.4 explicitly
// allows as acceptable for estimate_tokens.
type charEstimator struct {
	charsPerToken float64
}

func (c charEstimator) EstimateTokens(text string) int {
	if c.charsPerToken <= 0 {
		c.charsPerToken = 4.0
	}
	n := int(float64(len(text))/c.charsPerToken + 0.5)
	if n < 0 {
		n = 0
	}
	return n
}

// tiktokenEstimator lazily initializes a tiktoken encoding and falls
// back to charEstimator if initialization fails, mirroring the
// lazy-init-with-fallback idiom the teacher uses for its OpenAI
// tokenizer adapter.
type tiktokenEstimator struct {
	encoding string
	fallback charEstimator

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

func newTiktokenEstimator(encoding string, charsPerToken float64) *tiktokenEstimator {
	return &tiktokenEstimator{encoding: encoding, fallback: charEstimator{charsPerToken: charsPerToken}}
}

func (t *tiktokenEstimator) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *tiktokenEstimator) EstimateTokens(text string) int {
	if err := t.init(); err != nil {
		return t.fallback.EstimateTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// NewTokenEstimator builds the configured estimator: tiktoken when
// useTiktoken is set, else the char-based heuristic.
func NewTokenEstimator(useTiktoken bool, encoding string, charsPerToken float64) TokenEstimator {
	if useTiktoken {
		return newTiktokenEstimator(encoding, charsPerToken)
	}
	return charEstimator{charsPerToken: charsPerToken}
}
