// Package regime implements the risk-driven regime controller: a
// three-level state machine (NORMAL/CAUTION/DEFENSIVE) with hysteresis
// and cooldown guards against oscillation.
package regime

import (
	"fmt"
	"math"
	"sync"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/vec"
)

// #region level

// Level is the discrete risk-severity regime.
type Level int

const (
	Normal Level = iota
	Caution
	Defensive
)

// String returns the canonical level name.
func (l Level) String() string {
	switch l {
	case Normal:
		return "NORMAL"
	case Caution:
		return "CAUTION"
	case Defensive:
		return "DEFENSIVE"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel maps a canonical name back to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "NORMAL":
		return Normal, nil
	case "CAUTION":
		return Caution, nil
	case "DEFENSIVE":
		return Defensive, nil
	}
	return Normal, fmt.Errorf("%w: unknown regime %q", vec.ErrInvalidInput, s)
}

// #endregion level

// #region config

// Config holds the hysteresis band, timing guards, and output tables.
// Each upgrade threshold must sit strictly above its downgrade threshold
// (the hysteresis band), inhibition gains must be ≥ 1 and non-decreasing
// in severity, and tau scales must be in (0, 1] and non-increasing.
type Config struct {
	// UpgradeCaution / UpgradeDefensive: risk above these upgrades
	// NORMAL→CAUTION and CAUTION→DEFENSIVE respectively.
	UpgradeCaution   float32
	UpgradeDefensive float32

	// DowngradeCaution / DowngradeDefensive: risk must stay below these
	// for DwellSteps before CAUTION→NORMAL / DEFENSIVE→CAUTION.
	DowngradeCaution   float32
	DowngradeDefensive float32

	DwellSteps    int // consecutive below-threshold steps before a downgrade
	CooldownSteps int // steps after any transition before the next may fire

	InhibitionGains [3]float32 // per level, indexed by Level
	TauScales       [3]float32 // per level, indexed by Level

	MinGain float32
	MaxGain float32
	MinTau  float32
	MaxTau  float32
}

// DefaultConfig returns the standard hysteresis band and output tables.
func DefaultConfig() Config {
	return Config{
		UpgradeCaution:     0.5,
		UpgradeDefensive:   0.8,
		DowngradeCaution:   0.3,
		DowngradeDefensive: 0.6,
		DwellSteps:         5,
		CooldownSteps:      10,
		InhibitionGains:    [3]float32{1.0, 1.5, 2.5},
		TauScales:          [3]float32{1.0, 0.7, 0.4},
		MinGain:            1.0,
		MaxGain:            4.0,
		MinTau:             0.1,
		MaxTau:             1.0,
	}
}

// Validate checks construction parameters.
func (c Config) Validate() error {
	if c.UpgradeCaution <= c.DowngradeCaution {
		return fmt.Errorf("%w: caution hysteresis band empty (%f <= %f)",
			vec.ErrInvalidInput, c.UpgradeCaution, c.DowngradeCaution)
	}
	if c.UpgradeDefensive <= c.DowngradeDefensive {
		return fmt.Errorf("%w: defensive hysteresis band empty (%f <= %f)",
			vec.ErrInvalidInput, c.UpgradeDefensive, c.DowngradeDefensive)
	}
	if c.DwellSteps < 1 {
		return fmt.Errorf("%w: dwell steps %d, want >= 1", vec.ErrInvalidInput, c.DwellSteps)
	}
	if c.CooldownSteps < 0 {
		return fmt.Errorf("%w: cooldown steps %d, want >= 0", vec.ErrInvalidInput, c.CooldownSteps)
	}
	for i := 0; i < 2; i++ {
		if c.InhibitionGains[i] > c.InhibitionGains[i+1] {
			return fmt.Errorf("%w: inhibition gains must be non-decreasing in severity", vec.ErrInvalidInput)
		}
		if c.TauScales[i] < c.TauScales[i+1] {
			return fmt.Errorf("%w: tau scales must be non-increasing in severity", vec.ErrInvalidInput)
		}
	}
	if c.InhibitionGains[0] < 1 {
		return fmt.Errorf("%w: inhibition gain %f, want >= 1", vec.ErrInvalidInput, c.InhibitionGains[0])
	}
	if c.TauScales[2] <= 0 || c.TauScales[0] > 1 {
		return fmt.Errorf("%w: tau scales must lie in (0, 1]", vec.ErrInvalidInput)
	}
	if c.MinGain > c.MaxGain || c.MinTau > c.MaxTau {
		return fmt.Errorf("%w: clamp bounds inverted", vec.ErrInvalidInput)
	}
	return nil
}

// #endregion config

// #region snapshot

// Snapshot is the regime's per-step output. It is an immutable copy:
// consumers read it without taking the controller's lock, and nothing
// outside the controller may write the gain fields.
type Snapshot struct {
	Level          Level
	InhibitionGain float32
	TauScale       float32
	Transitioned   bool
	FlipCount      uint64
	Step           uint64
}

// #endregion snapshot

// #region controller-interface

// Controller consumes the per-step risk scalar and publishes gain
// snapshots. Two implementations exist: the hysteresis controller and a
// pass-through baseline pinned to NORMAL.
type Controller interface {
	// Step clamps risk to [0, 1], applies the transition guards, and
	// returns the recomputed snapshot.
	Step(risk float32) Snapshot

	// Current returns the latest snapshot without advancing.
	Current() Snapshot
}

// #endregion controller-interface

// #region hysteresis-controller

// HysteresisController owns the regime state behind a single mutex.
type HysteresisController struct {
	mu       sync.Mutex
	config   Config
	level    Level
	cooldown int
	dwell    int // consecutive steps below the active downgrade threshold
	flips    uint64
	step     uint64
	last     Snapshot
}

// NewHysteresisController validates config and starts in NORMAL.
func NewHysteresisController(config Config) (*HysteresisController, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := &HysteresisController{config: config, level: Normal}
	c.last = c.snapshotLocked(false)
	return c, nil
}

// Step applies the two-layer anti-oscillation guard. Upgrades fire as
// soon as risk exceeds the boundary's upper threshold; downgrades require
// DwellSteps consecutive steps below the lower threshold. After any
// transition, CooldownSteps must elapse before the next one, regardless
// of risk. Outputs are recomputed every step, not only on transitions.
func (c *HysteresisController) Step(risk float32) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := clampRisk(risk)
	c.step++

	// Dwell tracking runs even during cooldown so a sustained quiet
	// period counts from its true start.
	switch c.level {
	case Caution:
		if r < c.config.DowngradeCaution {
			c.dwell++
		} else {
			c.dwell = 0
		}
	case Defensive:
		if r < c.config.DowngradeDefensive {
			c.dwell++
		} else {
			c.dwell = 0
		}
	default:
		c.dwell = 0
	}

	transitioned := false
	if c.cooldown > 0 {
		c.cooldown--
	} else {
		switch {
		case c.level == Normal && r > c.config.UpgradeCaution:
			c.level = Caution
			transitioned = true
		case c.level == Caution && r > c.config.UpgradeDefensive:
			c.level = Defensive
			transitioned = true
		case c.level == Caution && c.dwell >= c.config.DwellSteps:
			c.level = Normal
			transitioned = true
		case c.level == Defensive && c.dwell >= c.config.DwellSteps:
			c.level = Caution
			transitioned = true
		}
		if transitioned {
			c.cooldown = c.config.CooldownSteps
			c.dwell = 0
			c.flips++
		}
	}

	c.last = c.snapshotLocked(transitioned)
	return c.last
}

// Current returns the latest snapshot.
func (c *HysteresisController) Current() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// snapshotLocked recomputes the clamped outputs. Caller holds the lock.
func (c *HysteresisController) snapshotLocked(transitioned bool) Snapshot {
	return Snapshot{
		Level:          c.level,
		InhibitionGain: vec.Clamp(c.config.InhibitionGains[c.level], c.config.MinGain, c.config.MaxGain),
		TauScale:       vec.Clamp(c.config.TauScales[c.level], c.config.MinTau, c.config.MaxTau),
		Transitioned:   transitioned,
		FlipCount:      c.flips,
		Step:           c.step,
	}
}

// #endregion hysteresis-controller

// #region helpers

// clampRisk maps the raw risk signal into [0, 1]. NaN reads as zero:
// an unparseable risk must not push the controller toward DEFENSIVE.
func clampRisk(r float32) float32 {
	if math.IsNaN(float64(r)) {
		return 0
	}
	return vec.Clamp(r, 0, 1)
}

// #endregion helpers

// #region passthrough

// Passthrough is the pre-adaptation baseline: pinned to NORMAL with
// neutral gains, ignoring risk entirely.
type Passthrough struct {
	mu   sync.Mutex
	step uint64
}

// NewPassthrough returns a baseline controller.
func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

// Step returns the neutral snapshot.
func (p *Passthrough) Step(risk float32) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.step++
	return Snapshot{Level: Normal, InhibitionGain: 1, TauScale: 1, Step: p.step}
}

// Current returns the neutral snapshot.
func (p *Passthrough) Current() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{Level: Normal, InhibitionGain: 1, TauScale: 1, Step: p.step}
}

// #endregion passthrough
