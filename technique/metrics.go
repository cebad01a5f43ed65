package technique

import (
	"regexp"

	"github.com/BaSui01/promptenhancer/types"
)

var (
	listMarker       = regexp.MustCompile(`(?m)^\s*(\d+[.)]|[-*•])\s+`)
	stepMarker       = regexp.MustCompile(`(?i)\bstep\s*\d+\b|step[- ]by[- ]step`)
	directiveWord    = regexp.MustCompile(`(?i)\b(must|should|specifically|ensure|exactly|precisely|required?)\b`)
	transitionWord   = regexp.MustCompile(`(?i)\b(first|then|next|finally|afterward|subsequently)\b`)
	defaultTechScore = 0.75
)

// calculateMetrics computes the engine's overall quality assessment
// (spec §4.4 Quality metrics): clarity rewards structure, specificity
// rewards directive language, coherence rewards transition words, and
// each applied technique supplies its own characteristic-marker score.
func (e *Engine) calculateMetrics(original, enhanced string, applied []string) types.QualityMetrics {
	clarity := clarityScore(enhanced)
	specificity := specificityScore(enhanced)
	coherence := coherenceScore(enhanced)

	perTechnique := make(map[string]float64, len(applied))
	for _, id := range applied {
		perTechnique[id] = e.techniqueEffectivenessScore(id, enhanced)
	}

	overall := (clarity + specificity + coherence) / 3.0
	improvement := improvementPct(original, enhanced)

	return types.QualityMetrics{
		Clarity:        clarity,
		Specificity:    specificity,
		Coherence:      coherence,
		OverallQuality: overall,
		ImprovementPct: improvement,
		PerTechnique:   perTechnique,
	}
}

func clarityScore(text string) float64 {
	score := 0.3
	if listMarker.MatchString(text) {
		score += 0.4
	}
	if stepMarker.MatchString(text) {
		score += 0.3
	}
	return clamp01(score)
}

func specificityScore(text string) float64 {
	hits := len(directiveWord.FindAllString(text, -1))
	score := 0.2 + float64(hits)*0.2
	return clamp01(score)
}

func coherenceScore(text string) float64 {
	hits := len(transitionWord.FindAllString(text, -1))
	score := 0.2 + float64(hits)*0.2
	return clamp01(score)
}

// techniqueEffectivenessScore delegates to the technique's own
// MetricsProvider implementation when it has one; unknown ids or
// techniques without a custom estimator default to 0.75 per spec
// §4.4's "unknown ids default to 0.75".
func (e *Engine) techniqueEffectivenessScore(id, enhanced string) float64 {
	_, impl, ok := e.registry.Get(id)
	if !ok {
		return defaultTechScore
	}
	provider, ok := impl.(MetricsProvider)
	if !ok {
		return defaultTechScore
	}
	scores := provider.Metrics(enhanced)
	if score, ok := scores[id]; ok {
		return score
	}
	return defaultTechScore
}

// improvementPct is (len(enhanced)/max(len(original),1) - 1) * 100,
// clamped to a sane range so a near-empty original doesn't blow it up.
func improvementPct(original, enhanced string) float64 {
	origLen := len(original)
	if origLen == 0 {
		origLen = 1
	}
	pct := (float64(len(enhanced))/float64(origLen) - 1.0) * 100.0
	if pct < -100 {
		pct = -100
	}
	if pct > 1000 {
		pct = 1000
	}
	return pct
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
