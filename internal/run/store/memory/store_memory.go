// Package memory provides the in-memory run store, the default when no
// postgres DSN is configured. It is the reference implementation the
// service suites run against.
package memory

import (
	"context"
	"sync"

	"clinops/internal/engine/audit"
	"clinops/internal/run/models"
	"clinops/pkg/domain"
	dErrors "clinops/pkg/domain-errors"
)

type InMemoryStore struct {
	mu        sync.RWMutex
	runs      map[domain.RunID]models.Run
	snapshots map[domain.RunID]models.Snapshot
	events    map[domain.RunID][]audit.Event
}

func New() *InMemoryStore {
	return &InMemoryStore{
		runs:      make(map[domain.RunID]models.Run),
		snapshots: make(map[domain.RunID]models.Snapshot),
		events:    make(map[domain.RunID][]audit.Event),
	}
}

func (s *InMemoryStore) SaveRun(_ context.Context, run models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

func (s *InMemoryStore) GetRun(_ context.Context, runID domain.RunID) (models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return models.Run{}, dErrors.Newf(dErrors.CodeNotFound, "run %s not found", runID)
	}
	return run, nil
}

func (s *InMemoryStore) ListRunsByStudy(_ context.Context, studyID domain.StudyID) ([]models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Run
	for _, run := range s.runs {
		if run.StudyID == studyID {
			out = append(out, run)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SaveSnapshot(_ context.Context, runID domain.RunID, snapshot models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[runID] = snapshot
	return nil
}

func (s *InMemoryStore) GetSnapshot(_ context.Context, runID domain.RunID) (models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[runID]
	if !ok {
		return models.Snapshot{}, dErrors.Newf(dErrors.CodeNotFound, "snapshot for run %s not found", runID)
	}
	return snapshot, nil
}

func (s *InMemoryStore) AppendEvents(_ context.Context, runID domain.RunID, events []audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[runID] = append(s.events[runID], events...)
	return nil
}

func (s *InMemoryStore) ListEvents(_ context.Context, runID domain.RunID, filter audit.Filter) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.runs[runID]; !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "run %s not found", runID)
	}
	return audit.Matches(s.events[runID], filter), nil
}
