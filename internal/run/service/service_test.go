package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clinops/internal/engine/audit"
	"clinops/internal/engine/observe"
	"clinops/internal/engine/pipeline"
	"clinops/internal/engine/prioritize"
	"clinops/internal/engine/state"
	"clinops/internal/run/models"
	memorystore "clinops/internal/run/store/memory"
	"clinops/pkg/domain"
	dErrors "clinops/pkg/domain-errors"
)

// stubLoader serves canned pipeline inputs per study.
type stubLoader struct {
	inputs map[domain.StudyID]pipeline.Input
}

func (l *stubLoader) LoadStudy(studyID domain.StudyID) (pipeline.Input, error) {
	input, ok := l.inputs[studyID]
	if !ok {
		return pipeline.Input{}, dErrors.Newf(dErrors.CodeNotFound, "study snapshot for %s not found", studyID)
	}
	return input, nil
}

// fakeCache records cache traffic for assertions.
type fakeCache struct {
	entries map[string][]prioritize.Action
	gets    int
	hits    int
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]prioritize.Action)}
}

func (c *fakeCache) Get(_ context.Context, runID domain.RunID, siteID domain.SiteID) ([]prioritize.Action, bool, error) {
	c.gets++
	actions, ok := c.entries[runID.String()+"/"+siteID.String()]
	if ok {
		c.hits++
	}
	return actions, ok, nil
}

func (c *fakeCache) Set(_ context.Context, runID domain.RunID, siteID domain.SiteID, actions []prioritize.Action, _ time.Duration) error {
	c.sets++
	c.entries[runID.String()+"/"+siteID.String()] = actions
	return nil
}

type RunServiceSuite struct {
	suite.Suite
	store  *memorystore.InMemoryStore
	loader *stubLoader
	cache  *fakeCache
	svc    *Service
	ctx    context.Context
}

func (s *RunServiceSuite) SetupTest() {
	s.store = memorystore.New()
	s.loader = &stubLoader{inputs: map[domain.StudyID]pipeline.Input{
		"STUDY-01": validInput("STUDY-01"),
	}}
	s.cache = newFakeCache()
	s.ctx = context.Background()

	svc, err := New(s.store, s.loader,
		WithRankingCache(s.cache, time.Minute),
		WithClock(func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }),
	)
	s.Require().NoError(err)
	s.svc = svc
}

func TestRunServiceSuite(t *testing.T) {
	suite.Run(t, new(RunServiceSuite))
}

func validInput(studyID domain.StudyID) pipeline.Input {
	return pipeline.Input{
		StudyID: studyID,
		Roster: observe.Roster{Rows: []observe.RosterRow{
			{ParticipantID: "1001-001", SiteID: "1001"},
			{ParticipantID: "1001-002", SiteID: "1001"},
			{ParticipantID: "1002-001", SiteID: "1002"},
		}},
		Visits: &observe.VisitTable{Rows: []observe.VisitRow{
			{ParticipantID: "1001-001", DaysOutstanding: 14},
			{ParticipantID: "9999-001", DaysOutstanding: 3},
		}},
		Safety: &observe.SafetyTable{Rows: []observe.SafetyRow{
			{ParticipantID: "1001-002", ReviewCompleted: false},
		}},
	}
}

// ==================== Construction ====================

func (s *RunServiceSuite) TestNewRequiresDependencies() {
	_, err := New(nil, s.loader)
	s.Require().Error(err)

	_, err = New(s.store, nil)
	s.Require().Error(err)
}

// ==================== Execute ====================

func (s *RunServiceSuite) TestExecute() {
	s.Run("completed run persists record, snapshot, and events", func() {
		run, err := s.svc.Execute(s.ctx, "STUDY-01")
		s.Require().NoError(err)

		s.Equal(models.StatusCompleted, run.Status)
		s.Equal(3, run.ParticipantCount)
		s.Equal(2, run.SiteCount)
		s.Equal(2, run.EventCount)
		s.Equal(1, run.OrphanRows)

		found, err := s.svc.GetRun(s.ctx, run.ID)
		s.Require().NoError(err)
		s.Equal(run.ID, found.ID)

		participants, err := s.svc.Participants(s.ctx, run.ID)
		s.Require().NoError(err)
		s.Require().Len(participants, 3)
		// Persisted sorted by participant id.
		s.Equal(domain.ParticipantID("1001-001"), participants[0].ParticipantID)
		s.Equal(95.0, participants[0].Score)

		sites, err := s.svc.Sites(s.ctx, run.ID)
		s.Require().NoError(err)
		s.Require().Len(sites, 2)
		s.Equal(domain.SiteID("1001"), sites[0].SiteID)
		s.Equal(state.TierAtRisk, sites[0].Tier)
		s.Equal(state.TierReady, sites[1].Tier)

		events, err := s.svc.Events(s.ctx, run.ID, audit.Filter{})
		s.Require().NoError(err)
		s.Require().Len(events, 2)
		s.Equal(audit.KindVisitOverdue, events[0].Kind)
		s.Equal(audit.KindSafetyPending, events[1].Kind)
	})

	s.Run("unknown study fails without a run record", func() {
		_, err := s.svc.Execute(s.ctx, "NOPE")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("aborted run persists only its record", func() {
		input := validInput("STUDY-BAD")
		input.Visits.Rows = append(input.Visits.Rows, observe.VisitRow{DaysOutstanding: 3})
		s.loader.inputs["STUDY-BAD"] = input

		run, err := s.svc.Execute(s.ctx, "STUDY-BAD")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeSchemaViolation))

		s.Equal(models.StatusAborted, run.Status)
		s.NotEmpty(run.FailureReason)

		found, err := s.svc.GetRun(s.ctx, run.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusAborted, found.Status)

		_, err = s.svc.Participants(s.ctx, run.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("each execution mints a distinct run", func() {
		first, err := s.svc.Execute(s.ctx, "STUDY-01")
		s.Require().NoError(err)
		second, err := s.svc.Execute(s.ctx, "STUDY-01")
		s.Require().NoError(err)

		s.NotEqual(first.ID, second.ID)

		runs, err := s.svc.ListRunsByStudy(s.ctx, "STUDY-01")
		s.Require().NoError(err)
		s.GreaterOrEqual(len(runs), 2)
	})
}

// ==================== ExecuteAll ====================

func (s *RunServiceSuite) TestExecuteAll() {
	s.Run("runs every study", func() {
		s.loader.inputs["STUDY-02"] = validInput("STUDY-02")

		runs, err := s.svc.ExecuteAll(s.ctx, []domain.StudyID{"STUDY-01", "STUDY-02"})
		s.Require().NoError(err)
		s.Require().Len(runs, 2)
		s.Equal(domain.StudyID("STUDY-01"), runs[0].StudyID)
		s.Equal(domain.StudyID("STUDY-02"), runs[1].StudyID)
	})

	s.Run("one failing study fails the batch", func() {
		_, err := s.svc.ExecuteAll(s.ctx, []domain.StudyID{"STUDY-01", "NOPE"})
		s.Require().Error(err)
	})
}

// ==================== SiteActions ====================

func (s *RunServiceSuite) TestSiteActions() {
	s.Run("ranks non-conforming participants of the site", func() {
		run, err := s.svc.Execute(s.ctx, "STUDY-01")
		s.Require().NoError(err)

		actions, err := s.svc.SiteActions(s.ctx, run.ID, "1001")
		s.Require().NoError(err)
		s.Require().Len(actions, 2)

		// Safety outweighs the overdue visit.
		s.Equal(domain.ParticipantID("1001-002"), actions[0].ParticipantID)
		s.Equal(50, actions[0].ImpactScore)
		s.Equal([]string{"Pending SAE review"}, actions[0].Reasons)
		s.Equal(domain.ParticipantID("1001-001"), actions[1].ParticipantID)
		s.Equal(30, actions[1].ImpactScore)
	})

	s.Run("results are cached read-through", func() {
		run, err := s.svc.Execute(s.ctx, "STUDY-01")
		s.Require().NoError(err)

		first, err := s.svc.SiteActions(s.ctx, run.ID, "1001")
		s.Require().NoError(err)
		s.Equal(1, s.cache.sets)

		second, err := s.svc.SiteActions(s.ctx, run.ID, "1001")
		s.Require().NoError(err)
		s.Equal(first, second)
		s.Equal(1, s.cache.hits)
		s.Equal(1, s.cache.sets)
	})

	s.Run("unknown site in a known run is not found", func() {
		run, err := s.svc.Execute(s.ctx, "STUDY-01")
		s.Require().NoError(err)

		_, err = s.svc.SiteActions(s.ctx, run.ID, "9999")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown run is not found", func() {
		_, err := s.svc.SiteActions(s.ctx, domain.NewRunID(), "1001")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
