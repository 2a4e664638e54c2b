// Package record keeps simulation runs in a SQLite database so traces can
// be compared or re-rendered later.
package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Pure-Go SQLite driver, registered as "sqlite".
	_ "github.com/glebarez/go-sqlite"
	"github.com/markphelps/optional"
	"github.com/rs/xid"

	"pollsched/internal/sched"
	"pollsched/internal/task"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	horizon       INTEGER NOT NULL,
	server_period INTEGER NOT NULL,
	utilization   REAL NOT NULL,
	bound         REAL NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	tick          INTEGER NOT NULL,
	idle          INTEGER NOT NULL,
	kind          TEXT,
	task_id       INTEGER,
	task_period   INTEGER,
	deadline      INTEGER,
	release_tick  INTEGER,
	server_charge INTEGER NOT NULL,
	server_period INTEGER,
	remaining     INTEGER,
	PRIMARY KEY (run_id, tick)
);
`

// Run describes one stored simulation.
type Run struct {
	ID           xid.ID
	Source       string
	Horizon      int
	ServerPeriod int
	Utilization  float64
	Bound        float64
	CreatedAt    time.Time
}

// Store is a SQLite-backed run store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. ":memory:" works too.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// one connection: SQLite has a single writer, and ":memory:" is per connection
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores the analysis summary and every entry of log.
func (s *Store) SaveRun(ctx context.Context, source string, a sched.Analysis, log *sched.Log) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, horizon, server_period, utilization, bound, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.RunID.String(), source, log.Horizon, log.ServerPeriod, a.Utilization, a.Bound,
		log.RunID.Time().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (run_id, tick, idle, kind, task_id, task_period, deadline, release_tick, server_charge, server_period, remaining)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare entries: %w", err)
	}
	defer stmt.Close()

	for _, e := range log.Entries() {
		var (
			kind                                          sql.NullString
			taskID, period, deadline, release, sp, remain sql.NullInt64
		)
		if !e.Idle {
			kind = sql.NullString{String: e.Kind.String(), Valid: true}
			taskID = sql.NullInt64{Int64: int64(e.TaskID), Valid: true}
			period = sql.NullInt64{Int64: int64(e.TaskPeriod), Valid: true}
			release = sql.NullInt64{Int64: int64(e.Release), Valid: true}
			sp = sql.NullInt64{Int64: int64(e.ServerPeriod), Valid: true}
			remain = sql.NullInt64{Int64: int64(e.Remaining), Valid: true}
			if d, err := e.Deadline.Get(); err == nil {
				deadline = sql.NullInt64{Int64: int64(d), Valid: true}
			}
		}
		if _, err := stmt.ExecContext(ctx, log.RunID.String(), e.Tick, e.Idle, kind, taskID, period,
			deadline, release, e.ServerCharge, sp, remain); err != nil {
			return fmt.Errorf("insert tick %d: %w", e.Tick, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the stored runs, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, horizon, server_period, utilization, bound FROM runs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r  Run
			id string
		)
		if err := rows.Scan(&id, &r.Source, &r.Horizon, &r.ServerPeriod, &r.Utilization, &r.Bound); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.ID, err = xid.FromString(id); err != nil {
			return nil, fmt.Errorf("run id %q: %w", id, err)
		}
		r.CreatedAt = r.ID.Time()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadLog reads a stored run back into a log.
func (s *Store) LoadLog(ctx context.Context, id xid.ID) (*sched.Log, error) {
	var serverPeriod int
	err := s.db.QueryRowContext(ctx, `SELECT server_period FROM runs WHERE id = ?`, id.String()).Scan(&serverPeriod)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT tick, idle, kind, task_id, task_period, deadline, release_tick, server_charge, server_period, remaining
		 FROM entries WHERE run_id = ? ORDER BY tick`, id.String())
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()

	var entries []sched.Entry
	for rows.Next() {
		var (
			e                                             sched.Entry
			kind                                          sql.NullString
			taskID, period, deadline, release, sp, remain sql.NullInt64
		)
		if err := rows.Scan(&e.Tick, &e.Idle, &kind, &taskID, &period, &deadline, &release,
			&e.ServerCharge, &sp, &remain); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if kind.Valid {
			if e.Kind, err = task.ParseKind(kind.String); err != nil {
				return nil, fmt.Errorf("tick %d: %w", e.Tick, err)
			}
		}
		e.TaskID = task.ID(taskID.Int64)
		e.TaskPeriod = int(period.Int64)
		e.Release = int(release.Int64)
		e.ServerPeriod = int(sp.Int64)
		e.Remaining = int(remain.Int64)
		if deadline.Valid {
			e.Deadline = optional.NewInt(int(deadline.Int64))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sched.NewLogFromEntries(id, serverPeriod, entries), nil
}
