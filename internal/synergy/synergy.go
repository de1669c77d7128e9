// Package synergy implements the experience memory for combo/action
// selection: ε-greedy choice over per-(signature, combo) statistics
// driven by the prediction-error signal.
package synergy

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/vec"
)

// #region config

// Config holds selection and update parameters.
type Config struct {
	Alpha     float32 // EMA smoothing for ema_delta, (0, 1]
	MinTrials uint64  // attempts required before a combo is exploitable
	DeltaMin  float32 // ema_delta clamp bounds
	DeltaMax  float32
	Seed      int64 // RNG seed; fixed seed → reproducible exploration
	Shards    int   // lock shards over the signature space
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Alpha:     0.3,
		MinTrials: 3,
		DeltaMin:  -10.0,
		DeltaMax:  10.0,
		Seed:      1,
		Shards:    16,
	}
}

// Validate checks construction parameters.
func (c Config) Validate() error {
	if c.Alpha <= 0 || c.Alpha > 1 || !vec.FiniteScalar(c.Alpha) {
		return fmt.Errorf("%w: synergy alpha %f, want (0, 1]", vec.ErrInvalidInput, c.Alpha)
	}
	if c.MinTrials < 1 {
		return fmt.Errorf("%w: synergy min trials %d, want >= 1", vec.ErrInvalidInput, c.MinTrials)
	}
	if !vec.FiniteScalar(c.DeltaMin) || !vec.FiniteScalar(c.DeltaMax) || c.DeltaMin >= c.DeltaMax {
		return fmt.Errorf("%w: synergy delta bounds [%f, %f] invalid", vec.ErrInvalidInput, c.DeltaMin, c.DeltaMax)
	}
	if c.Shards < 1 {
		return fmt.Errorf("%w: synergy shards %d, want >= 1", vec.ErrInvalidInput, c.Shards)
	}
	return nil
}

// #endregion config

// #region stats

// Stats is the per-(signature, combo) record. Created lazily on first
// observation, never deleted within the process lifetime.
type Stats struct {
	Attempts     uint64
	MeanDelta    float32
	EMADelta     float32
	ExploreCount uint64
	ExploitCount uint64
}

// #endregion stats

// #region selector-interface

// Selector is the combo-selection contract. Two implementations exist:
// the experience memory and a pass-through baseline.
type Selector interface {
	// SelectCombo picks a combo from candidates: with probability epsilon
	// a uniform exploration pick, otherwise the confident candidate with
	// the highest ema_delta, falling back to exploration when none has
	// enough attempts.
	SelectCombo(signature string, candidates []string, epsilon float32) (string, error)

	// RecordOutcome folds a sanitized delta into the combo's statistics.
	RecordOutcome(signature, combo string, delta float32) error

	// Stats returns a copy of the record for the pair, if present.
	Stats(signature, combo string) (Stats, bool)
}

// #endregion selector-interface

// #region experience-memory

type shard struct {
	mu      sync.Mutex
	entries map[string]map[string]*Stats // signature → combo → stats
}

// ExperienceMemory shards the statistics map by signature so concurrent
// updates to different signatures never block each other. The RNG is
// guarded separately and only consulted when epsilon > 0.
type ExperienceMemory struct {
	config Config
	shards []*shard

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewExperienceMemory validates config and returns an empty memory.
func NewExperienceMemory(config Config) (*ExperienceMemory, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	shards := make([]*shard, config.Shards)
	for i := range shards {
		shards[i] = &shard{entries: make(map[string]map[string]*Stats)}
	}
	return &ExperienceMemory{
		config: config,
		shards: shards,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}, nil
}

// SelectCombo implements ε-greedy selection with a confidence gate:
// exploitation never runs on a combo with fewer than MinTrials attempts.
// With epsilon <= 0 and at least one confident candidate the choice is
// fully deterministic (the RNG is not consulted). Ties on ema_delta go
// to the earliest candidate in the given order.
func (m *ExperienceMemory) SelectCombo(signature string, candidates []string, epsilon float32) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no candidate combos", vec.ErrInvalidInput)
	}
	if !vec.FiniteScalar(epsilon) {
		return "", fmt.Errorf("%w: epsilon is not finite", vec.ErrInvalidInput)
	}

	sh := m.shardFor(signature)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	explore := false
	if epsilon > 0 {
		m.rngMu.Lock()
		explore = m.rng.Float32() < epsilon
		m.rngMu.Unlock()
	}

	if !explore {
		if combo, ok := m.bestConfidentLocked(sh, signature, candidates); ok {
			stats := m.statsLocked(sh, signature, combo)
			stats.ExploitCount++
			return combo, nil
		}
		// No candidate has enough attempts: fall through to exploration.
	}

	var combo string
	if len(candidates) == 1 {
		combo = candidates[0]
	} else {
		m.rngMu.Lock()
		combo = candidates[m.rng.Intn(len(candidates))]
		m.rngMu.Unlock()
	}
	stats := m.statsLocked(sh, signature, combo)
	stats.ExploreCount++
	return combo, nil
}

// RecordOutcome sanitizes delta and updates attempts, the running mean,
// and the clamped EMA. A rejected delta leaves the record untouched.
func (m *ExperienceMemory) RecordOutcome(signature, combo string, delta float32) error {
	if !vec.FiniteScalar(delta) {
		return fmt.Errorf("%w: delta is not finite", vec.ErrInvalidInput)
	}

	sh := m.shardFor(signature)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	stats := m.statsLocked(sh, signature, combo)
	stats.Attempts++
	stats.MeanDelta += (delta - stats.MeanDelta) / float32(stats.Attempts)
	if stats.Attempts == 1 {
		stats.EMADelta = delta
	} else {
		stats.EMADelta = m.config.Alpha*delta + (1-m.config.Alpha)*stats.EMADelta
	}
	stats.EMADelta = vec.Clamp(stats.EMADelta, m.config.DeltaMin, m.config.DeltaMax)
	return nil
}

// Stats returns a copy of the record for the pair, if present.
func (m *ExperienceMemory) Stats(signature, combo string) (Stats, bool) {
	sh := m.shardFor(signature)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	combos, ok := sh.entries[signature]
	if !ok {
		return Stats{}, false
	}
	stats, ok := combos[combo]
	if !ok {
		return Stats{}, false
	}
	return *stats, true
}

// #endregion experience-memory

// #region internals

func (m *ExperienceMemory) shardFor(signature string) *shard {
	h := fnv.New32a()
	h.Write([]byte(signature))
	return m.shards[int(h.Sum32())%len(m.shards)]
}

// statsLocked returns the record for the pair, creating it lazily.
// Caller holds the shard lock.
func (m *ExperienceMemory) statsLocked(sh *shard, signature, combo string) *Stats {
	combos, ok := sh.entries[signature]
	if !ok {
		combos = make(map[string]*Stats)
		sh.entries[signature] = combos
	}
	stats, ok := combos[combo]
	if !ok {
		stats = &Stats{}
		combos[combo] = stats
	}
	return stats
}

// bestConfidentLocked returns the candidate with the highest ema_delta
// among those with at least MinTrials attempts. Caller holds the shard lock.
func (m *ExperienceMemory) bestConfidentLocked(sh *shard, signature string, candidates []string) (string, bool) {
	combos := sh.entries[signature]
	if combos == nil {
		return "", false
	}

	var best string
	var bestEMA float32
	found := false
	for _, c := range candidates {
		stats, ok := combos[c]
		if !ok || stats.Attempts < m.config.MinTrials {
			continue
		}
		if !found || stats.EMADelta > bestEMA {
			best = c
			bestEMA = stats.EMADelta
			found = true
		}
	}
	return best, found
}

// #endregion internals

// #region passthrough

// Passthrough is the pre-adaptation baseline: always the first candidate,
// no statistics kept.
type Passthrough struct{}

// NewPassthrough returns a baseline selector.
func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

// SelectCombo returns the first candidate.
func (p *Passthrough) SelectCombo(signature string, candidates []string, epsilon float32) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no candidate combos", vec.ErrInvalidInput)
	}
	return candidates[0], nil
}

// RecordOutcome discards the observation.
func (p *Passthrough) RecordOutcome(signature, combo string, delta float32) error {
	return nil
}

// Stats reports no record.
func (p *Passthrough) Stats(signature, combo string) (Stats, bool) {
	return Stats{}, false
}

// #endregion passthrough
