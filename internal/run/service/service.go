// Package service executes scoring runs and serves their persisted outputs.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"clinops/internal/engine/audit"
	"clinops/internal/engine/pipeline"
	"clinops/internal/engine/prioritize"
	"clinops/internal/engine/state"
	"clinops/internal/run/metrics"
	"clinops/internal/run/models"
	"clinops/internal/run/ports"
	"clinops/pkg/domain"
	dErrors "clinops/pkg/domain-errors"
)

// Type aliases for shared interfaces.
type (
	Store          = ports.Store
	RankingCache   = ports.RankingCache
	SnapshotLoader = ports.SnapshotLoader
)

type Service struct {
	store      Store
	loader     SnapshotLoader
	cache      RankingCache
	logger     *slog.Logger
	metrics    *metrics.Metrics
	rankingTTL time.Duration
	clock      func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRankingCache enables read-through caching of site rankings.
func WithRankingCache(cache RankingCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		s.rankingTTL = ttl
	}
}

// WithClock pins the service clock for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func New(store Store, loader SnapshotLoader, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("run store is required")
	}
	if loader == nil {
		return nil, fmt.Errorf("snapshot loader is required")
	}

	svc := &Service{
		store:  store,
		loader: loader,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Execute loads the study's snapshot, runs the full pipeline, and persists
// the outputs. An aborted run persists only its run record with the failure
// reason; the half-built state map and event list are discarded so no
// partially-scored outputs are ever visible.
func (s *Service) Execute(ctx context.Context, studyID domain.StudyID) (models.Run, error) {
	input, err := s.loader.LoadStudy(studyID)
	if err != nil {
		return models.Run{}, err
	}

	run := models.Run{
		ID:        domain.NewRunID(),
		StudyID:   studyID,
		StartedAt: s.clock(),
	}

	p := pipeline.New(pipeline.WithLogger(s.logger), pipeline.WithClock(s.clock))
	result, runErr := p.Run(input)
	run.FinishedAt = s.clock()

	if runErr != nil {
		run.Status = models.StatusAborted
		run.FailureReason = dErrors.MessageOf(runErr)
		if err := s.store.SaveRun(ctx, run); err != nil {
			return models.Run{}, dErrors.Wrap(err, dErrors.CodeInternal, "persist aborted run")
		}
		s.metrics.IncrementRuns(run.Status.String())
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "run aborted",
				"run_id", run.ID, "study_id", studyID, "error", runErr)
		}
		return run, runErr
	}

	run.Status = models.StatusCompleted
	run.ParticipantCount = len(result.Participants)
	run.SiteCount = len(result.Sites)
	run.EventCount = len(result.Events)
	run.OrphanRows = result.OrphanTotal()

	if err := s.persist(ctx, run, result); err != nil {
		return models.Run{}, err
	}

	s.metrics.IncrementRuns(run.Status.String())
	s.metrics.ObserveRunDuration(run.FinishedAt.Sub(run.StartedAt))
	for _, e := range result.Events {
		s.metrics.IncrementEvents(e.Kind.String(), 1)
	}
	for d, n := range result.Orphans {
		s.metrics.IncrementOrphans(d.String(), n)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "run completed",
			"run_id", run.ID,
			"study_id", studyID,
			"participants", run.ParticipantCount,
			"sites", run.SiteCount,
			"events", run.EventCount,
			"orphan_rows", run.OrphanRows,
		)
	}
	return run, nil
}

// ExecuteAll runs several studies concurrently. Each run owns its own state
// map and event stream; the study boundary is the only place parallelism is
// safe, so this is where it lives.
func (s *Service) ExecuteAll(ctx context.Context, studyIDs []domain.StudyID) ([]models.Run, error) {
	runs := make([]models.Run, len(studyIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, studyID := range studyIDs {
		g.Go(func() error {
			run, err := s.Execute(gctx, studyID)
			if err != nil {
				return err
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *Service) persist(ctx context.Context, run models.Run, result *pipeline.Result) error {
	if err := s.store.SaveRun(ctx, run); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persist run")
	}

	snapshot := models.Snapshot{
		Participants: make([]state.ParticipantView, 0, len(result.Participants)),
		Sites:        make([]state.SiteView, 0, len(result.Sites)),
	}
	for _, p := range result.Participants {
		snapshot.Participants = append(snapshot.Participants, p.View())
	}
	for _, site := range result.Sites {
		snapshot.Sites = append(snapshot.Sites, site.View())
	}
	sort.Slice(snapshot.Participants, func(i, j int) bool {
		return snapshot.Participants[i].ParticipantID < snapshot.Participants[j].ParticipantID
	})
	sort.Slice(snapshot.Sites, func(i, j int) bool {
		return snapshot.Sites[i].SiteID < snapshot.Sites[j].SiteID
	})

	if err := s.store.SaveSnapshot(ctx, run.ID, snapshot); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persist snapshot")
	}
	if err := s.store.AppendEvents(ctx, run.ID, result.Events); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persist audit events")
	}
	return nil
}

// GetRun returns the run record.
func (s *Service) GetRun(ctx context.Context, runID domain.RunID) (models.Run, error) {
	return s.store.GetRun(ctx, runID)
}

// ListRunsByStudy returns all runs recorded for a study, oldest first.
func (s *Service) ListRunsByStudy(ctx context.Context, studyID domain.StudyID) ([]models.Run, error) {
	runs, err := s.store.ListRunsByStudy(ctx, studyID)
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.Before(runs[j].StartedAt) })
	return runs, nil
}

// Participants returns the participant views of a completed run.
func (s *Service) Participants(ctx context.Context, runID domain.RunID) ([]state.ParticipantView, error) {
	snapshot, err := s.store.GetSnapshot(ctx, runID)
	if err != nil {
		return nil, err
	}
	return snapshot.Participants, nil
}

// Sites returns the site views of a completed run.
func (s *Service) Sites(ctx context.Context, runID domain.RunID) ([]state.SiteView, error) {
	snapshot, err := s.store.GetSnapshot(ctx, runID)
	if err != nil {
		return nil, err
	}
	return snapshot.Sites, nil
}

// Events returns the run's audit events in emission order, optionally
// filtered.
func (s *Service) Events(ctx context.Context, runID domain.RunID, filter audit.Filter) ([]audit.Event, error) {
	return s.store.ListEvents(ctx, runID, filter)
}

// SiteActions returns the prioritized remediation worklist for one site of
// a completed run. Rankings are re-derived from the immutable snapshot and
// event list, with a read-through cache in front.
func (s *Service) SiteActions(ctx context.Context, runID domain.RunID, siteID domain.SiteID) ([]prioritize.Action, error) {
	if s.cache != nil {
		if actions, ok, err := s.cache.Get(ctx, runID, siteID); err == nil && ok {
			return actions, nil
		} else if err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "ranking cache read failed", "run_id", runID, "error", err)
		}
	}

	snapshot, err := s.store.GetSnapshot(ctx, runID)
	if err != nil {
		return nil, err
	}

	members := make([]*state.Participant, 0)
	participants := make(state.Map)
	for _, view := range snapshot.Participants {
		if view.SiteID != siteID {
			continue
		}
		p, err := state.Restore(view)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "restore participant state")
		}
		participants[p.ParticipantID()] = p
		members = append(members, p)
	}
	if len(members) == 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "site %s not present in run %s", siteID, runID)
	}

	events, err := s.store.ListEvents(ctx, runID, audit.Filter{SiteID: siteID})
	if err != nil {
		return nil, err
	}

	actions := prioritize.Rank(state.NewSite(siteID, members), participants, events)

	if s.cache != nil {
		if err := s.cache.Set(ctx, runID, siteID, actions, s.rankingTTL); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "ranking cache write failed", "run_id", runID, "error", err)
		}
	}
	return actions, nil
}
