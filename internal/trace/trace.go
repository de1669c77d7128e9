// Package trace implements the multi-level synaptic memory: three decaying
// float32 buffers (L1 fast, L2 mid, L3 slow) with gated consolidation
// between adjacent levels.
package trace

import (
	"fmt"
	"sync"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/vec"
)

// #region config

// Config holds decay, gate, and transfer parameters for the three levels.
// Every update is decay-before-add, so each level's magnitude is bounded
// by |event|_max / (1 − λ) for its λ.
type Config struct {
	Dim     int
	Lambda1 float32 // L1 retention per update, (0, 1]
	Lambda2 float32
	Lambda3 float32
	Theta1  float32 // L1 norm gate for L1→L2 consolidation, > 0
	Theta2  float32 // L2 norm gate for L2→L3 consolidation, > 0
	G12     float32 // fraction of L1 transferred into L2, (0, 1]
	G23     float32 // fraction of L2 transferred into L3, (0, 1]
}

// DefaultConfig returns the standard fast/mid/slow tiering.
func DefaultConfig() Config {
	return Config{
		Dim:     128,
		Lambda1: 0.5,
		Lambda2: 0.8,
		Lambda3: 0.95,
		Theta1:  1.0,
		Theta2:  2.0,
		G12:     0.3,
		G23:     0.2,
	}
}

// Validate checks construction parameters.
func (c Config) Validate() error {
	if c.Dim <= 0 {
		return fmt.Errorf("%w: trace dim %d, want > 0", vec.ErrInvalidInput, c.Dim)
	}
	lambdas := []struct {
		name string
		v    float32
	}{
		{"lambda1", c.Lambda1}, {"lambda2", c.Lambda2}, {"lambda3", c.Lambda3},
	}
	for _, l := range lambdas {
		if l.v <= 0 || l.v > 1 || !vec.FiniteScalar(l.v) {
			return fmt.Errorf("%w: trace %s %f, want (0, 1]", vec.ErrInvalidInput, l.name, l.v)
		}
	}
	if c.Theta1 <= 0 || !vec.FiniteScalar(c.Theta1) {
		return fmt.Errorf("%w: trace theta1 %f, want > 0", vec.ErrInvalidInput, c.Theta1)
	}
	if c.Theta2 <= 0 || !vec.FiniteScalar(c.Theta2) {
		return fmt.Errorf("%w: trace theta2 %f, want > 0", vec.ErrInvalidInput, c.Theta2)
	}
	if c.G12 <= 0 || c.G12 > 1 || !vec.FiniteScalar(c.G12) {
		return fmt.Errorf("%w: trace g12 %f, want (0, 1]", vec.ErrInvalidInput, c.G12)
	}
	if c.G23 <= 0 || c.G23 > 1 || !vec.FiniteScalar(c.G23) {
		return fmt.Errorf("%w: trace g23 %f, want (0, 1]", vec.ErrInvalidInput, c.G23)
	}
	return nil
}

// #endregion config

// #region flags

// Flags reports which level pair consolidated during an update.
// At most one of the two is set per call.
type Flags struct {
	L1ToL2 bool
	L2ToL3 bool
}

// #endregion flags

// #region memory-interface

// Memory is the multi-level trace contract. Two implementations exist:
// the synaptic memory and a pass-through baseline.
type Memory interface {
	// Update folds one event into the traces and reports consolidation.
	Update(event []float32) (Flags, error)

	// Levels returns independent copies of the three trace vectors.
	Levels() (l1, l2, l3 []float32)

	// Usage returns the byte count of the three buffers. Informational
	// only; never feeds a control decision.
	Usage() int
}

// #endregion memory-interface

// #region synaptic-memory

// SynapticMemory owns the three trace buffers behind a single mutex.
type SynapticMemory struct {
	mu     sync.Mutex
	config Config
	l1     []float32
	l2     []float32
	l3     []float32
}

// NewSynapticMemory validates config and returns a cold (zeroed) memory.
func NewSynapticMemory(config Config) (*SynapticMemory, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &SynapticMemory{
		config: config,
		l1:     vec.Zero(config.Dim),
		l2:     vec.Zero(config.Dim),
		l3:     vec.Zero(config.Dim),
	}, nil
}

// Update applies decay-then-add at L1, then consolidates at most one level
// pair: L1→L2 when |L1| exceeds θ1, else L2→L3 when |L2| exceeds θ2.
// A rejected event mutates nothing.
func (m *SynapticMemory) Update(event []float32) (Flags, error) {
	if err := vec.Check("event", event, m.config.Dim); err != nil {
		return Flags{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// L1: decay before add keeps the trace bounded.
	for i := range m.l1 {
		m.l1[i] = m.config.Lambda1*m.l1[i] + event[i]
	}

	var flags Flags
	if vec.Norm(m.l1) > m.config.Theta1 {
		for i := range m.l2 {
			m.l2[i] = m.config.Lambda2*m.l2[i] + m.config.G12*m.l1[i]
		}
		flags.L1ToL2 = true
	} else if vec.Norm(m.l2) > m.config.Theta2 {
		for i := range m.l3 {
			m.l3[i] = m.config.Lambda3*m.l3[i] + m.config.G23*m.l2[i]
		}
		flags.L2ToL3 = true
	}

	return flags, nil
}

// Levels returns copies of the three traces.
func (m *SynapticMemory) Levels() (l1, l2, l3 []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return vec.Clone(m.l1), vec.Clone(m.l2), vec.Clone(m.l3)
}

// Usage returns the byte count of the three float32 buffers.
func (m *SynapticMemory) Usage() int {
	return 3 * m.config.Dim * 4
}

// #endregion synaptic-memory

// #region passthrough

// Passthrough is the pre-adaptation baseline: traces stay zero and no
// consolidation ever fires.
type Passthrough struct {
	dim int
}

// NewPassthrough returns a baseline memory for the given dimension.
func NewPassthrough(dim int) (*Passthrough, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: trace dim %d, want > 0", vec.ErrInvalidInput, dim)
	}
	return &Passthrough{dim: dim}, nil
}

// Update ignores the event and reports no consolidation.
func (p *Passthrough) Update(event []float32) (Flags, error) {
	return Flags{}, nil
}

// Levels returns zero vectors.
func (p *Passthrough) Levels() (l1, l2, l3 []float32) {
	return vec.Zero(p.dim), vec.Zero(p.dim), vec.Zero(p.dim)
}

// Usage returns zero; the baseline holds no buffers.
func (p *Passthrough) Usage() int {
	return 0
}

// #endregion passthrough
