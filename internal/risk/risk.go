// Package risk condenses per-turn signals into the scalar risk that
// drives the regime controller. Each signal degrades independently, so
// a missing source lowers resolution without breaking the estimate.
package risk

import (
	"math"
)

// #region config

// Config weights the individual signal contributions.
type Config struct {
	// EntropyScale divides raw generation entropy before clamping.
	EntropyScale float32
	// EntropyWeight scales the normalized entropy contribution.
	EntropyWeight float32
	// NoveltyWeight scales the retrieval-inverse novelty contribution.
	NoveltyWeight float32
	// FlagWeight is added once per raised discrete flag.
	FlagWeight float32
}

// DefaultConfig returns weights that saturate only when several
// signals fire together.
func DefaultConfig() Config {
	return Config{
		EntropyScale:  8,
		EntropyWeight: 0.5,
		NoveltyWeight: 0.3,
		FlagWeight:    0.25,
	}
}

// #endregion config

// #region input

// Input carries the raw signals of one turn.
type Input struct {
	// Entropy of the last generation, in nats. Negative means unknown.
	Entropy float32
	// RetrievalScores are the similarity scores of the last retrieval.
	RetrievalScores []float32
	// Discrete incident flags.
	ToolFailure         bool
	UserCorrection      bool
	ConstraintViolation bool
}

// #endregion input

// #region extractor

// Extractor turns Inputs into clamped risk scalars.
type Extractor struct {
	config Config
}

// New creates an Extractor with the given weights.
func New(config Config) *Extractor {
	return &Extractor{config: config}
}

// Extract computes risk in [0, 1] from the turn's signals.
func (e *Extractor) Extract(in Input) float32 {
	var risk float32

	if in.Entropy >= 0 && e.config.EntropyScale > 0 {
		risk += e.config.EntropyWeight * clamp(in.Entropy/e.config.EntropyScale)
	}
	risk += e.config.NoveltyWeight * e.novelty(in)
	for _, flag := range []bool{in.ToolFailure, in.UserCorrection, in.ConstraintViolation} {
		if flag {
			risk += e.config.FlagWeight
		}
	}
	return clamp(risk)
}

// novelty is retrieval-inverse: a strong match means familiar ground,
// an empty or weak retrieval means unexplored territory.
func (e *Extractor) novelty(in Input) float32 {
	if len(in.RetrievalScores) == 0 {
		return 1
	}
	var maxScore float32
	for _, s := range in.RetrievalScores {
		if s > maxScore {
			maxScore = s
		}
	}
	return clamp(1 - maxScore)
}

// #endregion extractor

// #region helpers

func clamp(v float32) float32 {
	if math.IsNaN(float64(v)) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
