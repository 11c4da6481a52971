package frontier

import "math"

// ScoreWeights tunes the Scorer.
type ScoreWeights struct {
	Base               float64 `mapstructure:"base"`
	InitialSearchBoost float64 `mapstructure:"initial_search_boost"`
	CredibilityWeight  float64 `mapstructure:"credibility_weight"`
	RepeatPenalty      float64 `mapstructure:"repeat_penalty"`
	Min                float64 `mapstructure:"min"`
	Max                float64 `mapstructure:"max"`
}

// DefaultScoreWeights returns the weights used when config leaves them unset.
// Max is one above the best unhinted seed score.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Base:               5,
		InitialSearchBoost: 3,
		CredibilityWeight:  2,
		RepeatPenalty:      0.5,
		Min:                0,
		Max:                11,
	}
}

// Signals are the facts known about a URL when it is promoted for extraction.
type Signals struct {
	InitialSearch bool
	Credibility   float64
	// DomainVisits is the domain's visit_count after registration.
	DomainVisits int64
	// Hint is an optional caller-supplied adjustment.
	Hint float64
}

// Scorer turns Signals into a queue priority. Higher is extracted first.
type Scorer struct {
	w ScoreWeights
}

// NewScorer builds a Scorer. All-zero weights mean unset and take the
// defaults; otherwise a zero Min and Max take the default range and the
// configured weights are kept.
func NewScorer(w ScoreWeights) *Scorer {
	def := DefaultScoreWeights()
	if w == (ScoreWeights{}) {
		return &Scorer{w: def}
	}
	if w.Min == 0 && w.Max == 0 {
		w.Min, w.Max = def.Min, def.Max
	}
	return &Scorer{w: w}
}

// Score computes the priority for the given signals, clamped to [Min, Max].
func (s *Scorer) Score(sig Signals) float64 {
	p := s.w.Base + s.w.CredibilityWeight*sig.Credibility + sig.Hint
	if sig.InitialSearch {
		p += s.w.InitialSearchBoost
	}
	if sig.DomainVisits > 1 {
		p -= s.w.RepeatPenalty * math.Log2(float64(sig.DomainVisits))
	}
	return math.Max(s.w.Min, math.Min(s.w.Max, p))
}
