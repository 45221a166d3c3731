// Package trace records runtime observations to SQLite so a run can be
// listed and replayed after the fact.
package trace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/saucer/core"
	"github.com/mattjoyce/saucer/internal/storage"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
  id           TEXT PRIMARY KEY,
  program      TEXT NOT NULL,
  started_at   TEXT NOT NULL,
  ended_at     TEXT,
  observations INTEGER NOT NULL DEFAULT 0,
  dropped      INTEGER NOT NULL DEFAULT 0
);`,
	`CREATE TABLE IF NOT EXISTS observations (
  run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  seq    INTEGER NOT NULL,
  kind   TEXT NOT NULL,
  plugin TEXT NOT NULL DEFAULT '',
  at     TEXT NOT NULL,
  data   TEXT NOT NULL,
  PRIMARY KEY (run_id, seq)
);`,
	`CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs(started_at);`,
}

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run summarises one recorded run.
type Run struct {
	ID           string     `json:"id"`
	Program      string     `json:"program"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Observations int        `json:"observations"`
	Dropped      int        `json:"dropped"`
}

// Record is one stored observation. Data is the rendered payload; requests
// render without their continuations.
type Record struct {
	Seq    uint64    `json:"seq"`
	Kind   string    `json:"kind"`
	Plugin string    `json:"plugin,omitempty"`
	At     time.Time `json:"at"`
	Data   string    `json:"data"`
}

// FromObservation renders o for storage.
func FromObservation(o core.Observation) Record {
	return Record{Seq: o.Seq, Kind: o.Kind.String(), Plugin: o.Plugin, At: o.At, Data: fmt.Sprintf("%+v", o.Data)}
}

// Store is the trace database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the trace database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := storage.OpenSQLite(ctx, path, schema)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// BeginRun registers a new run and returns its id.
func (s *Store) BeginRun(ctx context.Context, program string, at time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, program, started_at) VALUES (?, ?, ?);`,
		id, program, formatTime(at))
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// Append stores records for run in one transaction.
func (s *Store) Append(ctx context.Context, runID string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append observations: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO observations (run_id, seq, kind, plugin, at, data) VALUES (?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("append observations: %w", err)
	}
	defer stmt.Close()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, runID, int64(r.Seq), r.Kind, r.Plugin, formatTime(r.At), r.Data); err != nil {
			return fmt.Errorf("append observation %d: %w", r.Seq, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE runs SET observations = observations + ? WHERE id = ?;`, len(records), runID); err != nil {
		return fmt.Errorf("append observations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append observations: %w", err)
	}
	return nil
}

// EndRun marks run finished.
func (s *Store) EndRun(ctx context.Context, runID string, at time.Time, dropped int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET ended_at = ?, dropped = ? WHERE id = ?;`, formatTime(at), dropped, runID)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// Runs lists runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, program, started_at, ended_at, observations, dropped FROM runs ORDER BY started_at DESC, id;`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Run returns one run.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, program, started_at, ended_at, observations, dropped FROM runs WHERE id = ?;`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return r, err
}

// Records returns run's observations in sequence order.
func (s *Store) Records(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, kind, plugin, at, data FROM observations WHERE run_id = ? ORDER BY seq;`, runID)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r   Record
			seq int64
			at  string
		)
		if err := rows.Scan(&seq, &r.Kind, &r.Plugin, &at, &r.Data); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		r.Seq = uint64(seq)
		if r.At, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r       Run
		started string
		ended   sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Program, &started, &ended, &r.Observations, &r.Dropped); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if ended.Valid {
		t, err := parseTime(ended.String)
		if err != nil {
			return Run{}, err
		}
		r.EndedAt = &t
	}
	return r, nil
}

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
