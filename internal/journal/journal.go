// Package journal records publish attempts in a local SQLite database.
//
// An attempt is written as soon as a media container exists, before the
// processing wait, and resolved once the outcome is known. A sweep that
// finds an unresolved attempt for a record resumes it instead of creating a
// second container.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// State of an attempt.
type State string

const (
	// StateCreated: the container exists, the outcome is unknown.
	StateCreated State = "created"
	// StatePublished: the media is live and the record was marked posted.
	StatePublished State = "published"
	// StateFailed: the attempt ended with an error.
	StateFailed State = "failed"
	// StateAbandoned: a later sweep gave up on the container.
	StateAbandoned State = "abandoned"
)

// Attempt is one row of the journal.
type Attempt struct {
	ID          string
	RecordID    string
	ContainerID string
	State       State
	MediaID     string
	Error       string
	StartedAt   time.Time
	UpdatedAt   time.Time
}

// Journal is the SQLite-backed attempt ledger.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal at path and applies the
// schema migrations.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load journal migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("journal migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("journal migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate journal: %w", err)
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// fixed width so that text order is time order
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// Begin records a freshly created container for a record.
func (j *Journal) Begin(ctx context.Context, recordID, containerID string, at time.Time) (Attempt, error) {
	a := Attempt{
		ID:          uuid.NewString(),
		RecordID:    recordID,
		ContainerID: containerID,
		State:       StateCreated,
		StartedAt:   at.UTC(),
		UpdatedAt:   at.UTC(),
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO attempts (id, record_id, container_id, state, started_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.RecordID, a.ContainerID, string(a.State), ts(at), ts(at))
	if err != nil {
		return Attempt{}, fmt.Errorf("journal begin %s: %w", recordID, err)
	}
	return a, nil
}

func (j *Journal) finish(ctx context.Context, id string, state State, mediaID, cause string, at time.Time) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE attempts SET state = ?, media_id = ?, error = ?, updated_at = ? WHERE id = ? AND state = ?`,
		string(state), mediaID, cause, ts(at), id, string(StateCreated))
	if err != nil {
		return fmt.Errorf("journal %s %s: %w", state, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("journal %s %s: no open attempt", state, id)
	}
	return nil
}

// Resolve marks an attempt published.
func (j *Journal) Resolve(ctx context.Context, attemptID, mediaID string, at time.Time) error {
	return j.finish(ctx, attemptID, StatePublished, mediaID, "", at)
}

// Fail marks an attempt failed.
func (j *Journal) Fail(ctx context.Context, attemptID string, cause error, at time.Time) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return j.finish(ctx, attemptID, StateFailed, "", msg, at)
}

// Abandon gives up on an attempt whose container can no longer be used.
func (j *Journal) Abandon(ctx context.Context, attemptID, reason string, at time.Time) error {
	return j.finish(ctx, attemptID, StateAbandoned, "", reason, at)
}

const columns = `id, record_id, container_id, state, media_id, error, started_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(s scanner) (Attempt, error) {
	var a Attempt
	var state, started, updated string
	if err := s.Scan(&a.ID, &a.RecordID, &a.ContainerID, &state, &a.MediaID, &a.Error, &started, &updated); err != nil {
		return Attempt{}, err
	}
	a.State = State(state)
	a.StartedAt, _ = time.Parse(tsLayout, started)
	a.UpdatedAt, _ = time.Parse(tsLayout, updated)
	return a, nil
}

// Pending returns the latest unresolved attempt of a record, or nil.
func (j *Journal) Pending(ctx context.Context, recordID string) (*Attempt, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM attempts WHERE record_id = ? AND state = ? ORDER BY started_at DESC LIMIT 1`,
		recordID, string(StateCreated))
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal pending %s: %w", recordID, err)
	}
	return &a, nil
}

// History returns the most recent attempts, newest first. A limit of zero
// or less returns everything.
func (j *Journal) History(ctx context.Context, limit int) ([]Attempt, error) {
	q := `SELECT ` + columns + ` FROM attempts ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal history: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("journal history: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
