// Package postgres provides the durable run store. Run records and audit
// events go into relational tables (events append-only, ordered by a
// sequence column so export order survives persistence); the output
// snapshot is stored as a JSONB document since it is written once and read
// whole.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"clinops/internal/engine/audit"
	"clinops/internal/run/models"
	"clinops/pkg/domain"
	dErrors "clinops/pkg/domain-errors"
)

type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL run store over an existing connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to postgres and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}

// Migrate creates the run store tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY,
			study_id TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			participant_count INT NOT NULL DEFAULT 0,
			site_count INT NOT NULL DEFAULT 0,
			event_count INT NOT NULL DEFAULT 0,
			orphan_rows INT NOT NULL DEFAULT 0,
			failure_reason TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_runs_study ON runs (study_id, started_at);

		CREATE TABLE IF NOT EXISTS run_snapshots (
			run_id UUID PRIMARY KEY REFERENCES runs (id),
			snapshot JSONB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS run_events (
			run_id UUID NOT NULL REFERENCES runs (id),
			seq INT NOT NULL,
			emitted_at TIMESTAMPTZ NOT NULL,
			participant_id TEXT NOT NULL,
			site_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			message TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, seq)
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate run store: %w", err)
	}
	return nil
}

func (s *Store) SaveRun(ctx context.Context, run models.Run) error {
	query := `
		INSERT INTO runs (id, study_id, status, started_at, finished_at,
			participant_count, site_count, event_count, orphan_rows, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			finished_at = EXCLUDED.finished_at,
			participant_count = EXCLUDED.participant_count,
			site_count = EXCLUDED.site_count,
			event_count = EXCLUDED.event_count,
			orphan_rows = EXCLUDED.orphan_rows,
			failure_reason = EXCLUDED.failure_reason
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(run.ID),
		run.StudyID.String(),
		run.Status.String(),
		run.StartedAt,
		run.FinishedAt,
		run.ParticipantCount,
		run.SiteCount,
		run.EventCount,
		run.OrphanRows,
		run.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, runID domain.RunID) (models.Run, error) {
	query := `
		SELECT id, study_id, status, started_at, finished_at,
			participant_count, site_count, event_count, orphan_rows, failure_reason
		FROM runs WHERE id = $1
	`
	var run models.Run
	var id uuid.UUID
	var studyID, status string
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(runID)).Scan(
		&id, &studyID, &status, &run.StartedAt, &run.FinishedAt,
		&run.ParticipantCount, &run.SiteCount, &run.EventCount, &run.OrphanRows, &run.FailureReason,
	)
	if err == sql.ErrNoRows {
		return models.Run{}, dErrors.Newf(dErrors.CodeNotFound, "run %s not found", runID)
	}
	if err != nil {
		return models.Run{}, fmt.Errorf("select run: %w", err)
	}
	run.ID = domain.RunID(id)
	run.StudyID = domain.StudyID(studyID)
	run.Status = models.Status(status)
	return run, nil
}

func (s *Store) ListRunsByStudy(ctx context.Context, studyID domain.StudyID) ([]models.Run, error) {
	query := `
		SELECT id, study_id, status, started_at, finished_at,
			participant_count, site_count, event_count, orphan_rows, failure_reason
		FROM runs WHERE study_id = $1
		ORDER BY started_at
	`
	rows, err := s.db.QueryContext(ctx, query, studyID.String())
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer rows.Close()

	var out []models.Run
	for rows.Next() {
		var run models.Run
		var id uuid.UUID
		var sid, status string
		if err := rows.Scan(&id, &sid, &status, &run.StartedAt, &run.FinishedAt,
			&run.ParticipantCount, &run.SiteCount, &run.EventCount, &run.OrphanRows, &run.FailureReason); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.ID = domain.RunID(id)
		run.StudyID = domain.StudyID(sid)
		run.Status = models.Status(status)
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *Store) SaveSnapshot(ctx context.Context, runID domain.RunID, snapshot models.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	query := `
		INSERT INTO run_snapshots (run_id, snapshot)
		VALUES ($1, $2)
		ON CONFLICT (run_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.UUID(runID), payload); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *Store) GetSnapshot(ctx context.Context, runID domain.RunID) (models.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM run_snapshots WHERE run_id = $1`, uuid.UUID(runID)).Scan(&payload)
	if err == sql.ErrNoRows {
		return models.Snapshot{}, dErrors.Newf(dErrors.CodeNotFound, "snapshot for run %s not found", runID)
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("select snapshot: %w", err)
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return models.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snapshot, nil
}

func (s *Store) AppendEvents(ctx context.Context, runID domain.RunID, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append events: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM run_events WHERE run_id = $1`, uuid.UUID(runID)).Scan(&next); err != nil {
		return fmt.Errorf("next event seq: %w", err)
	}

	query := `
		INSERT INTO run_events (run_id, seq, emitted_at, participant_id, site_id, kind, message, score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for i, e := range events {
		if _, err := tx.ExecContext(ctx, query,
			uuid.UUID(runID), next+i, e.Timestamp,
			e.ParticipantID.String(), e.SiteID.String(),
			e.Kind.String(), e.Message, e.Score,
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) ListEvents(ctx context.Context, runID domain.RunID, filter audit.Filter) ([]audit.Event, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	query := `
		SELECT emitted_at, participant_id, site_id, kind, message, score
		FROM run_events WHERE run_id = $1
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(runID))
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var pid, sid, kind string
		if err := rows.Scan(&e.Timestamp, &pid, &sid, &kind, &e.Message, &e.Score); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.ParticipantID = domain.ParticipantID(pid)
		e.SiteID = domain.SiteID(sid)
		e.Kind = audit.Kind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return audit.Matches(events, filter), nil
}
