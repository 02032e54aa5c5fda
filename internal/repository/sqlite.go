package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/xiaot623/panelsim/internal/domain"
)

const (
	// DriverCGO is the mattn/go-sqlite3 driver name.
	DriverCGO = "sqlite3"
	// DriverPure is the modernc.org/sqlite driver name.
	DriverPure = "sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens dsn with the mattn/go-sqlite3 driver.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	return Open(DriverCGO, dsn)
}

// Open opens a SQLite database with the named driver and migrates it.
func Open(driver, dsn string) (*SQLiteStore, error) {
	switch driver {
	case DriverCGO, DriverPure:
	default:
		return nil, eris.Errorf("unsupported sqlite driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open database")
	}
	// SQLite has a single writer, and every connection to ":memory:" is a
	// separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "failed to enable foreign keys")
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "failed to migrate database")
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			research_type TEXT NOT NULL,
			segment_text TEXT NOT NULL DEFAULT '',
			questions TEXT NOT NULL DEFAULT '[]',
			sample_size INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			started_at DATETIME,
			completed_at DATETIME,
			artifact_ref TEXT,
			error_message TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status, created_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, ts)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			artifact_key TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			size INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertRun inserts a run or replaces every field of an existing one.
func (s *SQLiteStore) UpsertRun(ctx context.Context, run *domain.Run) error {
	questions := run.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	qb, err := json.Marshal(questions)
	if err != nil {
		return eris.Wrap(err, "marshal questions")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, status, research_type, segment_text, questions, sample_size, created_at, started_at, completed_at, artifact_ref, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			research_type = excluded.research_type,
			segment_text = excluded.segment_text,
			questions = excluded.questions,
			sample_size = excluded.sample_size,
			created_at = excluded.created_at,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			artifact_ref = excluded.artifact_ref,
			error_message = excluded.error_message`,
		run.RunID, run.Status, run.ResearchType, run.SegmentText, string(qb), run.SampleSize,
		run.CreatedAt.UTC(), nullTime(run.StartedAt), nullTime(run.CompletedAt),
		nullString(run.ArtifactRef), nullString(run.ErrorMessage))
	return eris.Wrapf(err, "upsert run %s", run.RunID)
}

// GetRun retrieves a run by ID. It returns nil when the run does not exist.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	var run domain.Run
	var questions string
	var startedAt, completedAt sql.NullTime
	var artifactRef, errMsg sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, status, research_type, segment_text, questions, sample_size, created_at, started_at, completed_at, artifact_ref, error_message
		FROM runs WHERE run_id = ?`,
		runID).Scan(&run.RunID, &run.Status, &run.ResearchType, &run.SegmentText, &questions, &run.SampleSize,
		&run.CreatedAt, &startedAt, &completedAt, &artifactRef, &errMsg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "get run %s", runID)
	}
	if err := json.Unmarshal([]byte(questions), &run.Questions); err != nil {
		return nil, eris.Wrapf(err, "decode questions of run %s", runID)
	}
	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.ArtifactRef = artifactRef.String
	run.ErrorMessage = errMsg.String
	return &run, nil
}

// MarkRunStarted moves a queued run to running.
func (s *SQLiteStore) MarkRunStarted(ctx context.Context, runID string, startedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, started_at = ? WHERE run_id = ? AND status = ?`,
		domain.RunStatusRunning, startedAt.UTC(), runID, domain.RunStatusQueued)
	if err != nil {
		return false, eris.Wrapf(err, "mark run %s started", runID)
	}
	return affected(res)
}

// MarkRunCompleted writes a terminal status and its result fields.
func (s *SQLiteStore) MarkRunCompleted(ctx context.Context, runID string, result RunResult) (bool, error) {
	if !result.Status.IsTerminal() {
		return false, eris.Errorf("status %q is not terminal", result.Status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, artifact_ref = ?, error_message = ?
		WHERE run_id = ? AND status IN (?, ?)`,
		result.Status, result.CompletedAt.UTC(), nullString(result.ArtifactRef), nullString(result.ErrorMessage),
		runID, domain.RunStatusQueued, domain.RunStatusRunning)
	if err != nil {
		return false, eris.Wrapf(err, "mark run %s %s", runID, result.Status)
	}
	return affected(res)
}

// CreateEvent creates a new event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, run_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.RunID, event.Ts, event.Type, payload)
	return err
}

// GetEvents retrieves events for a run in timestamp order.
func (s *SQLiteStore) GetEvents(ctx context.Context, runID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, run_id, ts, type, payload FROM events WHERE run_id = ?`
	args := []interface{}{runID}

	if afterTs > 0 {
		query += ` AND ts > ?`
		args = append(args, afterTs)
	}

	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += ` AND type IN (` + strings.Join(placeholders, ",") + `)`
	}

	query += ` ORDER BY ts ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var event domain.Event
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.RunID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// PutArtifact stores data under key, replacing any previous blob.
func (s *SQLiteStore) PutArtifact(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (artifact_key, data, size, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(artifact_key) DO UPDATE SET data = excluded.data, size = excluded.size, created_at = excluded.created_at`,
		key, data, len(data), time.Now().UTC())
	return eris.Wrapf(err, "put artifact %s", key)
}

// GetArtifact returns the blob stored under key, or nil when absent.
func (s *SQLiteStore) GetArtifact(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM artifacts WHERE artifact_key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "get artifact %s", key)
	}
	return data, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
