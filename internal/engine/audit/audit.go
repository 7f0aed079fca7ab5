// Package audit holds the append-only event stream a pipeline run emits.
//
// Events are immutable once appended and the stream preserves emission
// order; downstream exports rely on insertion order being chronological
// within a run. Each run owns its own Stream instance - there is no
// process-wide bus.
package audit

import (
	"time"

	"clinops/pkg/domain"
)

// Kind classifies an audit event by risk domain. The set is closed: one
// kind per applicator domain. The wire names match the exported audit logs
// consumed downstream, so do not rename them casually.
type Kind string

const (
	KindVisitOverdue    Kind = "VISIT_OVERDUE"
	KindSafetyPending   Kind = "SAE_PENDING"
	KindCodingBacklog   Kind = "CODING_BACKLOG"
	KindMissingPages    Kind = "MISSING_PAGES"
	KindInactivatedForm Kind = "INACTIVATED_FORM"
)

// IsValid checks if the kind is one of the supported enum values.
func (k Kind) IsValid() bool {
	switch k {
	case KindVisitOverdue, KindSafetyPending, KindCodingBacklog, KindMissingPages, KindInactivatedForm:
		return true
	}
	return false
}

// String returns the string representation.
func (k Kind) String() string {
	return string(k)
}

// Event records a single state mutation: which participant, which domain,
// and the resulting score at emission time. Immutable after creation.
type Event struct {
	Timestamp     time.Time            `json:"timestamp"`
	ParticipantID domain.ParticipantID `json:"participant_id"`
	SiteID        domain.SiteID        `json:"site_id"`
	Kind          Kind                 `json:"kind"`
	Message       string               `json:"message"`
	Score         float64              `json:"score"`
}

// Stream is the ordered collection of events for one run. Single-writer,
// append-only: the pipeline appends, everyone else reads copies.
type Stream struct {
	events []Event
}

// NewStream returns an empty stream for a fresh run.
func NewStream() *Stream {
	return &Stream{}
}

// Append adds events to the end of the stream, preserving order.
func (s *Stream) Append(events ...Event) {
	s.events = append(s.events, events...)
}

// Len returns the number of events appended so far.
func (s *Stream) Len() int {
	return len(s.events)
}

// Events returns a copy of the stream in emission order.
func (s *Stream) Events() []Event {
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Filter selects events matching every non-zero criterion, in order.
type Filter struct {
	SiteID        domain.SiteID
	ParticipantID domain.ParticipantID
	Kind          Kind
}

// Select returns the ordered subset of the stream matching f.
func (s *Stream) Select(f Filter) []Event {
	var out []Event
	for _, e := range s.events {
		if matches(e, f) {
			out = append(out, e)
		}
	}
	return out
}

// Matches applies a filter to an already-exported event slice. Stores that
// persist events reuse the same filter semantics as the live stream.
func Matches(events []Event, f Filter) []Event {
	var out []Event
	for _, e := range events {
		if matches(e, f) {
			out = append(out, e)
		}
	}
	return out
}

func matches(e Event, f Filter) bool {
	if !f.SiteID.IsNil() && e.SiteID != f.SiteID {
		return false
	}
	if !f.ParticipantID.IsNil() && e.ParticipantID != f.ParticipantID {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	return true
}
