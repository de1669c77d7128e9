// Package pelm implements the phase-entangled lattice memory: a
// capacity-bounded associative store of (key, value, phase) entries with
// phase-coherent similarity retrieval and deterministic eviction.
//
// Scoring: a plain probe scores entries by cosine similarity of the probed
// side. A phase-carrying probe multiplies cosine by the phase alignment
// weight 0.5 + 0.5·cos(2π·(probePhase − entryPhase)), so an entry half a
// cycle out of phase scores zero no matter how close its vector is.
// Eviction ranks entries by coherence of their phase against the lattice's
// circular mean phase, lowest first, oldest insertion breaking ties.
package pelm

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/vec"
)

// #region config

// Config holds lattice shape parameters.
type Config struct {
	Dim      int
	Capacity int // hard upper bound on entry count
}

// DefaultConfig returns a 128-dim, 256-entry lattice.
func DefaultConfig() Config {
	return Config{Dim: 128, Capacity: 256}
}

// Validate checks construction parameters.
func (c Config) Validate() error {
	if c.Dim <= 0 {
		return fmt.Errorf("%w: pelm dim %d, want > 0", vec.ErrInvalidInput, c.Dim)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: pelm capacity %d, want > 0", vec.ErrInvalidInput, c.Capacity)
	}
	return nil
}

// #endregion config

// #region types

// Entry is a stored association. Entries are replace-on-update: once
// inserted they are never mutated, only evicted.
type Entry struct {
	Key   []float32
	Value []float32
	Phase float32
	Seq   uint64 // insertion order, monotonically increasing
}

// Result is one retrieval hit, ordered by descending score.
type Result struct {
	Key   []float32
	Value []float32
	Phase float32
	Score float32
}

// #endregion types

// #region store-interface

// Store is the associative memory contract. Two implementations exist:
// the lattice and a pass-through baseline that stores nothing.
type Store interface {
	// Insert adds an association, evicting atomically when at capacity.
	// Returns the evicted entry, if any.
	Insert(key, value []float32, phase float32) (*Entry, error)

	// Query retrieves up to topK value-side results by key similarity.
	Query(probe []float32, topK int, threshold float32) ([]Result, error)

	// QueryWithPhase is Query with the phase alignment weight applied.
	QueryWithPhase(probe []float32, probePhase float32, topK int, threshold float32) ([]Result, error)

	// QueryByValue retrieves by value similarity (key↔value roles swapped).
	QueryByValue(probe []float32, topK int, threshold float32) ([]Result, error)

	// Len reports the current entry count.
	Len() int
}

// #endregion store-interface

// #region lattice

// Lattice owns the entry slice behind a single mutex.
type Lattice struct {
	mu      sync.Mutex
	config  Config
	entries []Entry
	seq     uint64
}

// NewLattice validates config and returns an empty lattice.
func NewLattice(config Config) (*Lattice, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Lattice{
		config:  config,
		entries: make([]Entry, 0, config.Capacity),
	}, nil
}

// Insert stores (key, value, phase). When the lattice is full, the entry
// with the lowest (coherence, seq) composite is removed in the same
// critical section, so the size never exceeds capacity even transiently.
// A rejected insert leaves the lattice unchanged.
func (l *Lattice) Insert(key, value []float32, phase float32) (*Entry, error) {
	if err := vec.Check("key", key, l.config.Dim); err != nil {
		return nil, err
	}
	if err := vec.Check("value", value, l.config.Dim); err != nil {
		return nil, err
	}
	if !vec.FiniteScalar(phase) || phase < 0 || phase > 1 {
		return nil, fmt.Errorf("%w: phase %f, want [0, 1]", vec.ErrInvalidInput, phase)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var evicted *Entry
	if len(l.entries) >= l.config.Capacity {
		idx := l.evictionCandidate()
		e := l.entries[idx]
		evicted = &e
		l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	}

	l.seq++
	l.entries = append(l.entries, Entry{
		Key:   vec.Clone(key),
		Value: vec.Clone(value),
		Phase: phase,
		Seq:   l.seq,
	})

	return evicted, nil
}

// Query retrieves by key similarity without a phase weight.
func (l *Lattice) Query(probe []float32, topK int, threshold float32) ([]Result, error) {
	return l.query(probe, -1, topK, threshold, false)
}

// QueryWithPhase retrieves by key similarity weighted by phase alignment.
func (l *Lattice) QueryWithPhase(probe []float32, probePhase float32, topK int, threshold float32) ([]Result, error) {
	if !vec.FiniteScalar(probePhase) || probePhase < 0 || probePhase > 1 {
		return nil, fmt.Errorf("%w: probe phase %f, want [0, 1]", vec.ErrInvalidInput, probePhase)
	}
	return l.query(probe, probePhase, topK, threshold, false)
}

// QueryByValue retrieves by value similarity; key and value swap roles in
// the results so the same machinery serves both directions.
func (l *Lattice) QueryByValue(probe []float32, topK int, threshold float32) ([]Result, error) {
	return l.query(probe, -1, topK, threshold, true)
}

// Len reports the current entry count.
func (l *Lattice) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// #endregion lattice

// #region query-internals

// query scores all entries against the probe, filters by threshold, and
// returns at most topK results ordered by descending score, most recent
// insertion breaking ties. An empty result is a valid "no confident
// match" outcome, not an error.
func (l *Lattice) query(probe []float32, probePhase float32, topK int, threshold float32, byValue bool) ([]Result, error) {
	if err := vec.Check("probe", probe, l.config.Dim); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k %d, want > 0", vec.ErrInvalidInput, topK)
	}
	if !vec.FiniteScalar(threshold) {
		return nil, fmt.Errorf("%w: similarity threshold is not finite", vec.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	type scored struct {
		entry Entry
		score float32
	}
	var hits []scored

	for _, e := range l.entries {
		side := e.Key
		if byValue {
			side = e.Value
		}
		score := vec.Cosine(probe, side)
		if probePhase >= 0 {
			score *= phaseWeight(probePhase, e.Phase)
		}
		if score < threshold {
			continue
		}
		hits = append(hits, scored{entry: e, score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].entry.Seq > hits[j].entry.Seq
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		key, value := h.entry.Key, h.entry.Value
		if byValue {
			key, value = value, key
		}
		results[i] = Result{
			Key:   vec.Clone(key),
			Value: vec.Clone(value),
			Phase: h.entry.Phase,
			Score: h.score,
		}
	}
	return results, nil
}

// phaseWeight maps phase distance to [0, 1]: aligned phases weigh 1,
// opposite phases weigh 0.
func phaseWeight(a, b float32) float32 {
	return float32(0.5 + 0.5*math.Cos(2*math.Pi*float64(a-b)))
}

// #endregion query-internals

// #region eviction

// evictionCandidate returns the index of the entry with the lowest
// coherence against the lattice's circular mean phase, lowest seq
// breaking ties. Caller holds the lock.
func (l *Lattice) evictionCandidate() int {
	mean := l.meanPhase()

	best := 0
	bestScore := float32(math.Inf(1))
	for i, e := range l.entries {
		score := phaseWeight(e.Phase, mean)
		if score < bestScore || (score == bestScore && e.Seq < l.entries[best].Seq) {
			best = i
			bestScore = score
		}
	}
	return best
}

// meanPhase computes the circular mean of stored phases in [0, 1).
// Caller holds the lock.
func (l *Lattice) meanPhase() float32 {
	var sx, sy float64
	for _, e := range l.entries {
		ang := 2 * math.Pi * float64(e.Phase)
		sx += math.Cos(ang)
		sy += math.Sin(ang)
	}
	if sx == 0 && sy == 0 {
		return 0
	}
	mean := math.Atan2(sy, sx) / (2 * math.Pi)
	if mean < 0 {
		mean += 1
	}
	return float32(mean)
}

// #endregion eviction

// #region passthrough

// Passthrough is the pre-adaptation baseline: nothing is stored and every
// query returns the empty "no confident match" outcome.
type Passthrough struct {
	dim int
}

// NewPassthrough returns a baseline store for the given dimension.
func NewPassthrough(dim int) (*Passthrough, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: pelm dim %d, want > 0", vec.ErrInvalidInput, dim)
	}
	return &Passthrough{dim: dim}, nil
}

// Insert discards the association.
func (p *Passthrough) Insert(key, value []float32, phase float32) (*Entry, error) {
	return nil, nil
}

// Query returns no results.
func (p *Passthrough) Query(probe []float32, topK int, threshold float32) ([]Result, error) {
	return nil, nil
}

// QueryWithPhase returns no results.
func (p *Passthrough) QueryWithPhase(probe []float32, probePhase float32, topK int, threshold float32) ([]Result, error) {
	return nil, nil
}

// QueryByValue returns no results.
func (p *Passthrough) QueryByValue(probe []float32, topK int, threshold float32) ([]Result, error) {
	return nil, nil
}

// Len reports zero.
func (p *Passthrough) Len() int {
	return 0
}

// #endregion passthrough
