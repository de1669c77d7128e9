// Package provenance persists step metrics and regime transitions in
// SQLite for post-hoc inspection and fixture export. Persistence here is
// observability, not state durability: the memory structures themselves
// live and die with the process.
package provenance

import (
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/biomimetic-memory/go-core/internal/telemetry"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS step_metrics (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	step_id    TEXT NOT NULL,
	component  TEXT NOT NULL,
	name       TEXT NOT NULL,
	value      REAL NOT NULL,
	regime     TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_step_metrics_lookup
ON step_metrics(component, name);

CREATE TABLE IF NOT EXISTS regime_transitions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	step_id    TEXT NOT NULL,
	from_level TEXT NOT NULL,
	to_level   TEXT NOT NULL,
	risk       REAL NOT NULL,
	created_at TEXT NOT NULL
);
`

// #endregion schema

// #region rows

type metricRow struct {
	StepID    string  `db:"step_id"`
	Component string  `db:"component"`
	Name      string  `db:"name"`
	Value     float64 `db:"value"`
	Regime    string  `db:"regime"`
	CreatedAt string  `db:"created_at"`
}

// Transition is one persisted regime change.
type Transition struct {
	StepID    string  `db:"step_id"`
	FromLevel string  `db:"from_level"`
	ToLevel   string  `db:"to_level"`
	Risk      float64 `db:"risk"`
	CreatedAt string  `db:"created_at"`
}

// MetricSummary aggregates one (component, name) series.
type MetricSummary struct {
	Component string  `db:"component"`
	Name      string  `db:"name"`
	Count     int     `db:"count"`
	Mean      float64 `db:"mean"`
	Max       float64 `db:"max"`
}

// #endregion rows

// #region store

// Store manages the observability tables in SQLite.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertMetric persists one step metric.
func (s *Store) InsertMetric(m telemetry.StepMetric) error {
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.NamedExec(
		`INSERT INTO step_metrics (step_id, component, name, value, regime, created_at)
		 VALUES (:step_id, :component, :name, :value, :regime, :created_at)`,
		metricRow{
			StepID:    m.StepID,
			Component: m.Component,
			Name:      m.Name,
			Value:     m.Value,
			Regime:    m.Regime,
			CreatedAt: created.Format(time.RFC3339Nano),
		},
	)
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

// InsertTransition persists one regime transition.
func (s *Store) InsertTransition(stepID, fromLevel, toLevel string, risk float64) error {
	_, err := s.db.NamedExec(
		`INSERT INTO regime_transitions (step_id, from_level, to_level, risk, created_at)
		 VALUES (:step_id, :from_level, :to_level, :risk, :created_at)`,
		Transition{
			StepID:    stepID,
			FromLevel: fromLevel,
			ToLevel:   toLevel,
			Risk:      risk,
			CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		},
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// ListTransitions returns the most recent regime transitions.
func (s *Store) ListTransitions(limit int) ([]Transition, error) {
	var out []Transition
	err := s.db.Select(&out,
		`SELECT step_id, from_level, to_level, risk, created_at
		 FROM regime_transitions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	return out, nil
}

// Summaries aggregates every (component, name) metric series.
func (s *Store) Summaries() ([]MetricSummary, error) {
	var out []MetricSummary
	err := s.db.Select(&out,
		`SELECT component, name, COUNT(*) AS count, AVG(value) AS mean, MAX(value) AS max
		 FROM step_metrics GROUP BY component, name ORDER BY component, name`)
	if err != nil {
		return nil, fmt.Errorf("metric summaries: %w", err)
	}
	return out, nil
}

// MetricValues returns the ordered values of one metric series.
func (s *Store) MetricValues(component, name string) ([]float64, error) {
	var out []float64
	err := s.db.Select(&out,
		`SELECT value FROM step_metrics WHERE component = ? AND name = ? ORDER BY id`,
		component, name)
	if err != nil {
		return nil, fmt.Errorf("metric values: %w", err)
	}
	return out, nil
}

// #endregion store

// #region async-sink

// AsyncSink adapts a Store to the telemetry.Sink contract. Record never
// blocks: metrics go through a buffered channel and are dropped (counted)
// when the buffer is full or the writer has stopped. Write errors are
// swallowed per the sink contract.
type AsyncSink struct {
	store *Store
	ch    chan telemetry.StepMetric
	done  chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped uint64
}

// NewAsyncSink starts the writer goroutine with the given buffer size.
func NewAsyncSink(store *Store, buffer int) *AsyncSink {
	if buffer < 1 {
		buffer = 256
	}
	s := &AsyncSink{
		store: store,
		ch:    make(chan telemetry.StepMetric, buffer),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Record enqueues the metric, dropping it when the buffer is full or the
// writer has stopped. The closed check and the send share one critical
// section so Record never races Close onto a closed channel.
func (s *AsyncSink) Record(m telemetry.StepMetric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.dropped++
		return
	}
	select {
	case s.ch <- m:
	default:
		s.dropped++
	}
}

// Dropped reports how many metrics were discarded.
func (s *AsyncSink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close drains the buffer and stops the writer. Idempotent; metrics
// recorded afterwards count as dropped.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.ch)
	<-s.done
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for m := range s.ch {
		// Sink contract: delivery failures never surface to the core.
		_ = s.store.InsertMetric(m)
	}
}

// #endregion async-sink
