// Package checkpoint persists state snapshots to SQLite. A Store is a
// runner observer: it records the state at the start of every episode and
// after every step.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vk/substepgrid/internal/ctxlog"
	"github.com/vk/substepgrid/internal/runner"
	"github.com/vk/substepgrid/internal/state"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no checkpoint matches a query.
var ErrNotFound = errors.New("checkpoint not found")

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	episode     INTEGER NOT NULL,
	step        INTEGER NOT NULL,
	skipped     INTEGER NOT NULL DEFAULT 0,
	state_json  TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	UNIQUE (run_id, episode, step)
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_run ON checkpoints(run_id, id);
`

// Record describes one stored checkpoint without its state.
type Record struct {
	ID        int64
	RunID     string
	Episode   int
	Step      int
	Skipped   int
	CreatedAt time.Time
}

// Store writes checkpoints to a SQLite database.
type Store struct {
	db       *sql.DB
	interval int
}

// Option configures a Store.
type Option func(*Store)

// WithInterval stores only every n-th step of an episode. Episode starts
// are always stored.
func WithInterval(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.interval = n
		}
	}
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s := &Store{db: db, interval: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// OnReset stores the episode-start state as step 0.
func (s *Store) OnReset(ctx context.Context, ev runner.ResetEvent) error {
	return s.save(ctx, ev.RunID, ev.Episode, 0, 0, ev.Store, ev.At)
}

// OnStep stores the state after a step.
func (s *Store) OnStep(ctx context.Context, ev runner.StepEvent) error {
	if ev.Step%s.interval != 0 {
		return nil
	}
	skipped := 0
	if ev.Report != nil {
		skipped = len(ev.Report.Skipped)
	}
	return s.save(ctx, ev.RunID, ev.Episode, ev.Step, skipped, ev.Store, ev.At)
}

func (s *Store) save(ctx context.Context, runID string, episode, step, skipped int, st *state.Store, at time.Time) error {
	buf, err := json.Marshal(st.Snapshot())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if at.IsZero() {
		at = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (run_id, episode, step, skipped, state_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, episode, step) DO UPDATE SET
		   skipped = excluded.skipped,
		   state_json = excluded.state_json,
		   created_at = excluded.created_at`,
		runID, episode, step, skipped, string(buf), at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Checkpoint stored.", "run_id", runID, "episode", episode, "step", step, "bytes", len(buf))
	return nil
}

// List returns the checkpoints of a run in the order they were written.
func (s *Store) List(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, episode, step, skipped, created_at
		 FROM checkpoints WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Runs returns the distinct run IDs, most recent first.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id FROM checkpoints GROUP BY run_id ORDER BY MAX(id) DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Load returns the snapshot stored for (runID, episode, step).
func (s *Store) Load(ctx context.Context, runID string, episode, step int) (*state.Snapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM checkpoints WHERE run_id = ? AND episode = ? AND step = ?`,
		runID, episode, step,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s episode %d step %d", ErrNotFound, runID, episode, step)
	}
	if err != nil {
		return nil, fmt.Errorf("query checkpoint: %w", err)
	}
	return decode(raw)
}

// Latest returns the most recently written checkpoint of a run.
func (s *Store) Latest(ctx context.Context, runID string) (Record, *state.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, run_id, episode, step, skipped, created_at, state_json
		 FROM checkpoints WHERE run_id = ? ORDER BY id DESC LIMIT 1`, runID)

	var (
		rec     Record
		created string
		raw     string
	)
	err := row.Scan(&rec.ID, &rec.RunID, &rec.Episode, &rec.Step, &rec.Skipped, &created, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	if err != nil {
		return Record{}, nil, fmt.Errorf("query checkpoint: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Record{}, nil, fmt.Errorf("parse created_at: %w", err)
	}
	snap, err := decode(raw)
	if err != nil {
		return Record{}, nil, err
	}
	return rec, snap, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec     Record
		created string
	)
	if err := row.Scan(&rec.ID, &rec.RunID, &rec.Episode, &rec.Step, &rec.Skipped, &created); err != nil {
		return Record{}, fmt.Errorf("scan checkpoint: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	rec.CreatedAt = t
	return rec, nil
}

func decode(raw string) (*state.Snapshot, error) {
	snap := &state.Snapshot{}
	if err := json.Unmarshal([]byte(raw), snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

var _ runner.Observer = (*Store)(nil)
