// Package ports declares the interfaces the run service depends on, so
// stores, caches, and the ingestion loader can be swapped without touching
// business logic.
package ports

import (
	"context"
	"time"

	"clinops/internal/engine/audit"
	"clinops/internal/engine/pipeline"
	"clinops/internal/engine/prioritize"
	"clinops/internal/run/models"
	"clinops/pkg/domain"
)

// Store persists run records, output snapshots, and exported audit events.
// Events are append-only; snapshots are written once per run.
type Store interface {
	SaveRun(ctx context.Context, run models.Run) error
	GetRun(ctx context.Context, runID domain.RunID) (models.Run, error)
	ListRunsByStudy(ctx context.Context, studyID domain.StudyID) ([]models.Run, error)
	SaveSnapshot(ctx context.Context, runID domain.RunID, snapshot models.Snapshot) error
	GetSnapshot(ctx context.Context, runID domain.RunID) (models.Snapshot, error)
	AppendEvents(ctx context.Context, runID domain.RunID, events []audit.Event) error
	ListEvents(ctx context.Context, runID domain.RunID, filter audit.Filter) ([]audit.Event, error)
}

// RankingCache caches per-site action rankings. A run's outputs are
// immutable, so cached rankings only expire, never invalidate.
type RankingCache interface {
	Get(ctx context.Context, runID domain.RunID, siteID domain.SiteID) ([]prioritize.Action, bool, error)
	Set(ctx context.Context, runID domain.RunID, siteID domain.SiteID, actions []prioritize.Action, ttl time.Duration) error
}

// SnapshotLoader assembles pipeline input from a study's report snapshot.
type SnapshotLoader interface {
	LoadStudy(studyID domain.StudyID) (pipeline.Input, error)
}
