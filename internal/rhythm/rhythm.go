// Package rhythm implements the wake/sleep pacing state machine that
// gates when consolidation and replay are permitted.
package rhythm

import (
	"sync"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/vec"
)

// #region phase

// Phase is the pacing state.
type Phase string

const (
	PhaseWake  Phase = "wake"
	PhaseSleep Phase = "sleep"
)

// #endregion phase

// #region config

// Config holds the configured cycle durations in steps.
type Config struct {
	WakeDuration  int
	SleepDuration int
}

// DefaultConfig returns a 6-wake / 3-sleep cycle.
func DefaultConfig() Config {
	return Config{WakeDuration: 6, SleepDuration: 3}
}

// #endregion config

// #region rhythm

// Rhythm counts steps within the current phase and flips when the
// effective duration is reached. A non-positive configured duration
// fails closed: the rhythm freezes in its current phase rather than
// livelocking or dividing by zero, until Reconfigure supplies valid
// durations.
type Rhythm struct {
	mu      sync.Mutex
	config  Config
	phase   Phase
	counter uint
	frozen  bool
}

// New returns a rhythm starting in wake with counter zero.
func New(config Config) *Rhythm {
	return &Rhythm{
		config: config,
		phase:  PhaseWake,
		frozen: config.WakeDuration <= 0 || config.SleepDuration <= 0,
	}
}

// Step advances the counter and performs at most one transition.
// tauScale shrinks the effective durations for this step only; the
// configured durations are never mutated. A tauScale outside (0, 1]
// (including NaN) is treated as 1. Returns the phase after the step and
// whether a transition fired.
func (r *Rhythm) Step(tauScale float32) (Phase, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return r.phase, false
	}

	r.counter++

	duration := r.config.WakeDuration
	if r.phase == PhaseSleep {
		duration = r.config.SleepDuration
	}
	effective := effectiveDuration(duration, tauScale)

	if r.counter < uint(effective) {
		return r.phase, false
	}

	if r.phase == PhaseWake {
		r.phase = PhaseSleep
	} else {
		r.phase = PhaseWake
	}
	r.counter = 0
	return r.phase, true
}

// Phase returns the current phase.
func (r *Rhythm) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Counter returns the steps spent in the current phase.
func (r *Rhythm) Counter() uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counter
}

// CyclePosition returns the fraction of the current phase elapsed,
// in [0, 1). Used as the phase tag for lattice consolidation.
func (r *Rhythm) CyclePosition() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	duration := r.config.WakeDuration
	if r.phase == PhaseSleep {
		duration = r.config.SleepDuration
	}
	if duration <= 0 {
		return 0
	}
	pos := float32(r.counter) / float32(duration)
	if pos >= 1 {
		pos = 0
	}
	return pos
}

// Frozen reports whether the rhythm has failed closed.
func (r *Rhythm) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

// Reconfigure replaces the durations and unfreezes the rhythm when both
// are positive. The current phase and counter are kept.
func (r *Rhythm) Reconfigure(config Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = config
	r.frozen = config.WakeDuration <= 0 || config.SleepDuration <= 0
}

// #endregion rhythm

// #region helpers

// effectiveDuration applies tauScale for a single step, never dropping
// below one step per phase.
func effectiveDuration(duration int, tauScale float32) int {
	if !vec.FiniteScalar(tauScale) || tauScale <= 0 || tauScale > 1 {
		return duration
	}
	scaled := int(float32(duration) * tauScale)
	if scaled < 1 {
		scaled = 1
	}
	return scaled
}

// #endregion helpers
