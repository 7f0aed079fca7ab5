// Package domain holds shared identifier primitives.
//
// Study, site, and participant identifiers originate in sponsor EDC exports
// and are opaque strings (e.g. "1001-004"), not UUIDs. Run identifiers are
// minted by this service and are UUIDs. Construct all of them via Parse* at
// trust boundaries; direct casting bypasses validation.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "clinops/pkg/domain-errors"
)

// StudyID identifies a clinical study.
type StudyID string

// SiteID identifies an investigative site within a study.
type SiteID string

// ParticipantID identifies an enrolled participant. Unique within a study
// snapshot; the engine keys its state map on it.
type ParticipantID string

// ParseStudyID validates an externally supplied study identifier.
func ParseStudyID(s string) (StudyID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "study id cannot be empty")
	}
	return StudyID(trimmed), nil
}

// ParseSiteID validates an externally supplied site identifier.
func ParseSiteID(s string) (SiteID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "site id cannot be empty")
	}
	return SiteID(trimmed), nil
}

// ParseParticipantID validates an externally supplied participant identifier.
func ParseParticipantID(s string) (ParticipantID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "participant id cannot be empty")
	}
	return ParticipantID(trimmed), nil
}

func (id StudyID) String() string       { return string(id) }
func (id SiteID) String() string        { return string(id) }
func (id ParticipantID) String() string { return string(id) }

func (id StudyID) IsNil() bool       { return id == "" }
func (id SiteID) IsNil() bool        { return id == "" }
func (id ParticipantID) IsNil() bool { return id == "" }

// RunID identifies a single pipeline run. Minted internally, UUID-backed.
type RunID uuid.UUID

// NewRunID mints a fresh run identifier.
func NewRunID() RunID {
	return RunID(uuid.New())
}

// ParseRunID validates a run identifier from external input.
// Rejects empty, malformed, and nil UUIDs.
func ParseRunID(s string) (RunID, error) {
	if s == "" {
		return RunID{}, dErrors.New(dErrors.CodeInvalidInput, "run id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return RunID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "run id must be a valid UUID")
	}
	if u == uuid.Nil {
		return RunID{}, dErrors.New(dErrors.CodeInvalidInput, "run id cannot be the nil UUID")
	}
	return RunID(u), nil
}

func (id RunID) String() string {
	return uuid.UUID(id).String()
}

func (id RunID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText serializes the run id in canonical UUID form.
func (id RunID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses a run id with the same validation as ParseRunID.
func (id *RunID) UnmarshalText(b []byte) error {
	parsed, err := ParseRunID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
