// Package models defines the run-management entities persisted by the run
// store and exposed over the HTTP surface.
package models

import (
	"time"

	"clinops/internal/engine/state"
	"clinops/pkg/domain"
)

// Status is the terminal state of a pipeline run.
type Status string

const (
	// StatusCompleted: all five stages finished; outputs were persisted.
	StatusCompleted Status = "completed"
	// StatusAborted: the run failed fast (schema violation); its state map
	// and event list were discarded, only this record remains.
	StatusAborted Status = "aborted"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	return s == StatusCompleted || s == StatusAborted
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// Run is the persisted record of one pipeline execution.
type Run struct {
	ID               domain.RunID   `json:"run_id"`
	StudyID          domain.StudyID `json:"study_id"`
	Status           Status         `json:"status"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
	ParticipantCount int            `json:"participant_count"`
	SiteCount        int            `json:"site_count"`
	EventCount       int            `json:"event_count"`
	OrphanRows       int            `json:"orphan_rows"`
	FailureReason    string         `json:"failure_reason,omitempty"`
}

// Snapshot is the full output of a completed run: every participant and
// site view. Immutable once stored; rankings are re-derived from it.
type Snapshot struct {
	Participants []state.ParticipantView `json:"participants"`
	Sites        []state.SiteView        `json:"sites"`
}
