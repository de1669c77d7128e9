// Package predictor computes the prediction-error signal Δ that drives
// the rest of the memory core.
package predictor

import (
	"fmt"
	"sync"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/vec"
)

// #region config

// Config holds EMA and clipping parameters for the adapter.
type Config struct {
	Dim      int     // vector dimension
	Alpha    float32 // EMA smoothing factor, (0, 1]
	MaxDelta float32 // per-component clip bound, > 0
}

// DefaultConfig returns sensible defaults for a 128-dim deployment.
func DefaultConfig() Config {
	return Config{
		Dim:      128,
		Alpha:    0.2,
		MaxDelta: 5.0,
	}
}

// Validate checks construction parameters.
func (c Config) Validate() error {
	if c.Dim <= 0 {
		return fmt.Errorf("%w: predictor dim %d, want > 0", vec.ErrInvalidInput, c.Dim)
	}
	if c.Alpha <= 0 || c.Alpha > 1 || !vec.FiniteScalar(c.Alpha) {
		return fmt.Errorf("%w: predictor alpha %f, want (0, 1]", vec.ErrInvalidInput, c.Alpha)
	}
	if c.MaxDelta <= 0 || !vec.FiniteScalar(c.MaxDelta) {
		return fmt.Errorf("%w: predictor max delta %f, want > 0", vec.ErrInvalidInput, c.MaxDelta)
	}
	return nil
}

// #endregion config

// #region adapter-interface

// Adapter produces the Δ = observed − predicted signal. Two implementations
// exist: the EMA adapter and a pass-through baseline. The call site is
// branch-free; callers pick the variant at construction.
type Adapter interface {
	// ComputeDelta returns the clipped elementwise delta against the
	// internal predictor and advances it, as one atomic operation. On
	// rejection the predictor is unchanged.
	ComputeDelta(observed []float32) ([]float32, error)

	// Predicted returns a copy of the internal predictor state.
	Predicted() []float32
}

// #endregion adapter-interface

// #region ema-adapter

// EMAAdapter clips Δ per component and tracks an EMA predictor. A single
// mutex guards the predictor; delta and EMA advance under one critical
// section so concurrent callers never interleave a read with an update.
type EMAAdapter struct {
	config Config

	mu        sync.Mutex
	predicted []float32
}

// NewEMAAdapter validates config and returns an adapter with a zeroed
// predictor (cold-start safe default).
func NewEMAAdapter(config Config) (*EMAAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &EMAAdapter{
		config:    config,
		predicted: vec.Zero(config.Dim),
	}, nil
}

// ComputeDelta computes clip(observed − predicted, ±MaxDelta) and then
// updates the internal predictor: predicted' = α·observed + (1−α)·predicted.
// Validation happens before any mutation, so a rejected call leaves the
// predictor untouched.
func (a *EMAAdapter) ComputeDelta(observed []float32) ([]float32, error) {
	if err := vec.Check("observed", observed, a.config.Dim); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	delta := make([]float32, a.config.Dim)
	for i := range delta {
		delta[i] = vec.Clamp(observed[i]-a.predicted[i], -a.config.MaxDelta, a.config.MaxDelta)
	}

	alpha := a.config.Alpha
	for i := range a.predicted {
		a.predicted[i] = alpha*observed[i] + (1-alpha)*a.predicted[i]
	}

	return delta, nil
}

// Predicted returns a copy of the EMA predictor state.
func (a *EMAAdapter) Predicted() []float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return vec.Clone(a.predicted)
}

// #endregion ema-adapter

// #region passthrough

// Passthrough is the pre-adaptation baseline: Δ is always zero and the
// predictor never moves. Input is ignored entirely so the baseline is
// provably unaffected by the adaptive path.
type Passthrough struct {
	dim int
}

// NewPassthrough returns a baseline adapter for the given dimension.
func NewPassthrough(dim int) (*Passthrough, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: predictor dim %d, want > 0", vec.ErrInvalidInput, dim)
	}
	return &Passthrough{dim: dim}, nil
}

// ComputeDelta returns a zero delta regardless of input.
func (p *Passthrough) ComputeDelta(observed []float32) ([]float32, error) {
	return vec.Zero(p.dim), nil
}

// Predicted returns a zero vector.
func (p *Passthrough) Predicted() []float32 {
	return vec.Zero(p.dim)
}

// #endregion passthrough
