//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clinops/internal/engine/audit"
	"clinops/internal/engine/state"
	"clinops/internal/run/models"
	"clinops/internal/run/store/postgres"
	"clinops/pkg/domain"
	dErrors "clinops/pkg/domain-errors"
	"clinops/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	// Truncate in dependency order.
	err := s.postgres.TruncateTables(context.Background(), "run_events", "run_snapshots", "runs")
	s.Require().NoError(err)
}

func newTestRun(studyID string) models.Run {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return models.Run{
		ID:               domain.NewRunID(),
		StudyID:          domain.StudyID(studyID),
		Status:           models.StatusCompleted,
		StartedAt:        now,
		FinishedAt:       now.Add(time.Second),
		ParticipantCount: 3,
		SiteCount:        2,
		EventCount:       2,
	}
}

// ==================== Run records ====================

func (s *PostgresStoreSuite) TestRunRecords() {
	ctx := context.Background()

	s.Run("round-trips a run record", func() {
		run := newTestRun("STUDY-01")
		s.Require().NoError(s.store.SaveRun(ctx, run))

		found, err := s.store.GetRun(ctx, run.ID)
		s.Require().NoError(err)
		s.Equal(run.StudyID, found.StudyID)
		s.Equal(run.Status, found.Status)
		s.Equal(run.ParticipantCount, found.ParticipantCount)
		s.True(run.StartedAt.Equal(found.StartedAt))
	})

	s.Run("upserts on conflict", func() {
		run := newTestRun("STUDY-01")
		s.Require().NoError(s.store.SaveRun(ctx, run))

		run.Status = models.StatusAborted
		run.FailureReason = "schema violation"
		s.Require().NoError(s.store.SaveRun(ctx, run))

		found, err := s.store.GetRun(ctx, run.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusAborted, found.Status)
		s.Equal("schema violation", found.FailureReason)
	})

	s.Run("unknown run is not found", func() {
		_, err := s.store.GetRun(ctx, domain.NewRunID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("lists runs by study ordered by start time", func() {
		first := newTestRun("STUDY-A")
		second := newTestRun("STUDY-A")
		second.StartedAt = first.StartedAt.Add(time.Minute)
		other := newTestRun("STUDY-B")

		s.Require().NoError(s.store.SaveRun(ctx, second))
		s.Require().NoError(s.store.SaveRun(ctx, first))
		s.Require().NoError(s.store.SaveRun(ctx, other))

		runs, err := s.store.ListRunsByStudy(ctx, "STUDY-A")
		s.Require().NoError(err)
		s.Require().Len(runs, 2)
		s.Equal(first.ID, runs[0].ID)
		s.Equal(second.ID, runs[1].ID)
	})
}

// ==================== Snapshots ====================

func (s *PostgresStoreSuite) TestSnapshots() {
	ctx := context.Background()

	s.Run("round-trips the JSONB snapshot", func() {
		run := newTestRun("STUDY-01")
		s.Require().NoError(s.store.SaveRun(ctx, run))

		snapshot := models.Snapshot{
			Participants: []state.ParticipantView{{
				StudyID: "STUDY-01", SiteID: "1001", ParticipantID: "1001-001",
				OverdueVisits: 1, Score: 95, Conforming: false,
			}},
			Sites: []state.SiteView{{
				SiteID: "1001", Total: 1, NonConforming: 1,
				MeanScore: 95, MinScore: 95, Tier: state.TierNearReady,
			}},
		}
		s.Require().NoError(s.store.SaveSnapshot(ctx, run.ID, snapshot))

		found, err := s.store.GetSnapshot(ctx, run.ID)
		s.Require().NoError(err)
		s.Equal(snapshot, found)
	})

	s.Run("snapshot writes are once-only", func() {
		run := newTestRun("STUDY-01")
		s.Require().NoError(s.store.SaveRun(ctx, run))

		original := models.Snapshot{Participants: []state.ParticipantView{{
			StudyID: "STUDY-01", SiteID: "1001", ParticipantID: "1001-001", Score: 100, Conforming: true,
		}}}
		s.Require().NoError(s.store.SaveSnapshot(ctx, run.ID, original))

		overwrite := models.Snapshot{}
		s.Require().NoError(s.store.SaveSnapshot(ctx, run.ID, overwrite))

		found, err := s.store.GetSnapshot(ctx, run.ID)
		s.Require().NoError(err)
		s.Len(found.Participants, 1)
	})

	s.Run("missing snapshot is not found", func() {
		run := newTestRun("STUDY-01")
		s.Require().NoError(s.store.SaveRun(ctx, run))

		_, err := s.store.GetSnapshot(ctx, run.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// ==================== Events ====================

func (s *PostgresStoreSuite) TestEvents() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	s.Run("append preserves emission order across batches", func() {
		run := newTestRun("STUDY-01")
		s.Require().NoError(s.store.SaveRun(ctx, run))

		batch1 := []audit.Event{
			{Timestamp: now, ParticipantID: "1001-001", SiteID: "1001", Kind: audit.KindVisitOverdue, Message: "visit overdue, 14 days outstanding", Score: 95},
			{Timestamp: now, ParticipantID: "1001-002", SiteID: "1001", Kind: audit.KindSafetyPending, Message: "serious adverse event review pending", Score: 92},
		}
		batch2 := []audit.Event{
			{Timestamp: now, ParticipantID: "1002-001", SiteID: "1002", Kind: audit.KindMissingPages, Message: "CRF pages missing for 7 days", Score: 97},
		}
		s.Require().NoError(s.store.AppendEvents(ctx, run.ID, batch1))
		s.Require().NoError(s.store.AppendEvents(ctx, run.ID, batch2))

		events, err := s.store.ListEvents(ctx, run.ID, audit.Filter{})
		s.Require().NoError(err)
		s.Require().Len(events, 3)
		s.Equal(audit.KindVisitOverdue, events[0].Kind)
		s.Equal(audit.KindSafetyPending, events[1].Kind)
		s.Equal(audit.KindMissingPages, events[2].Kind)
	})

	s.Run("filters apply on read", func() {
		run := newTestRun("STUDY-01")
		s.Require().NoError(s.store.SaveRun(ctx, run))
		s.Require().NoError(s.store.AppendEvents(ctx, run.ID, []audit.Event{
			{Timestamp: now, ParticipantID: "1001-001", SiteID: "1001", Kind: audit.KindVisitOverdue},
			{Timestamp: now, ParticipantID: "1002-001", SiteID: "1002", Kind: audit.KindVisitOverdue},
			{Timestamp: now, ParticipantID: "1001-001", SiteID: "1001", Kind: audit.KindCodingBacklog},
		}))

		events, err := s.store.ListEvents(ctx, run.ID, audit.Filter{SiteID: "1001", Kind: audit.KindVisitOverdue})
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(domain.ParticipantID("1001-001"), events[0].ParticipantID)
	})

	s.Run("listing events of an unknown run fails", func() {
		_, err := s.store.ListEvents(ctx, domain.NewRunID(), audit.Filter{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("empty append is a no-op", func() {
		run := newTestRun("STUDY-01")
		s.Require().NoError(s.store.SaveRun(ctx, run))
		s.Require().NoError(s.store.AppendEvents(ctx, run.ID, nil))

		events, err := s.store.ListEvents(ctx, run.ID, audit.Filter{})
		s.Require().NoError(err)
		s.Empty(events)
	})
}
