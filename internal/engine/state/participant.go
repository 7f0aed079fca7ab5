// Package state defines the canonical per-participant and per-site records
// the pipeline mutates and aggregates.
//
// Counters are unexported so every mutation flows through a method that
// recomputes the derived score synchronously. No caller can observe a
// participant whose score is stale relative to its counters.
package state

import (
	"clinops/internal/engine/scoring"
	"clinops/pkg/domain"
	dErrors "clinops/pkg/domain-errors"
)

// Participant is the live operational record for one enrolled subject.
// Identity fields are immutable after construction; counters only move
// through the Set* methods.
type Participant struct {
	studyID       domain.StudyID
	siteID        domain.SiteID
	participantID domain.ParticipantID

	overdueVisits    int
	openQueries      int
	missingDocuments int
	uncodedTerms     int
	integrityFlags   int
	pendingSafety    bool

	score      float64
	conforming bool
}

// Map keys participants by their identifier, the shape every applicator
// consumes. Ownership transfers stage to stage; it is not safe for
// concurrent writes.
type Map map[domain.ParticipantID]*Participant

// BaseCounts carries optional roster-supplied baselines.
type BaseCounts struct {
	OverdueVisits    int
	OpenQueries      int
	MissingDocuments int
}

// NewParticipant builds a participant from roster identity plus optional
// base counts and computes the initial score immediately.
func NewParticipant(studyID domain.StudyID, siteID domain.SiteID, participantID domain.ParticipantID, base BaseCounts) (*Participant, error) {
	if studyID.IsNil() || siteID.IsNil() || participantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "participant requires study, site, and participant ids")
	}
	if base.OverdueVisits < 0 || base.OpenQueries < 0 || base.MissingDocuments < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "base counts cannot be negative")
	}

	p := &Participant{
		studyID:          studyID,
		siteID:           siteID,
		participantID:    participantID,
		overdueVisits:    base.OverdueVisits,
		openQueries:      base.OpenQueries,
		missingDocuments: base.MissingDocuments,
	}
	p.recompute()
	return p, nil
}

// Identity accessors.

func (p *Participant) StudyID() domain.StudyID             { return p.studyID }
func (p *Participant) SiteID() domain.SiteID               { return p.siteID }
func (p *Participant) ParticipantID() domain.ParticipantID { return p.participantID }

// Counter accessors.

func (p *Participant) OverdueVisits() int    { return p.overdueVisits }
func (p *Participant) OpenQueries() int      { return p.openQueries }
func (p *Participant) MissingDocuments() int { return p.missingDocuments }
func (p *Participant) UncodedTerms() int     { return p.uncodedTerms }
func (p *Participant) IntegrityFlags() int   { return p.integrityFlags }
func (p *Participant) PendingSafety() bool   { return p.pendingSafety }

// Derived accessors. Always consistent with the counters above.

func (p *Participant) Score() float64   { return p.score }
func (p *Participant) Conforming() bool { return p.conforming }

// SetOverdueVisits records the overdue-visit count. Rejects negatives and
// leaves state untouched on failure.
func (p *Participant) SetOverdueVisits(n int) error {
	if n < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "overdue visit count cannot be negative")
	}
	p.overdueVisits = n
	p.recompute()
	return nil
}

// SetOpenQueries records the open-query count.
func (p *Participant) SetOpenQueries(n int) error {
	if n < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "open query count cannot be negative")
	}
	p.openQueries = n
	p.recompute()
	return nil
}

// SetMissingDocuments records the missing-document count.
func (p *Participant) SetMissingDocuments(n int) error {
	if n < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "missing document count cannot be negative")
	}
	p.missingDocuments = n
	p.recompute()
	return nil
}

// SetUncodedTerms records the uncoded-term count.
func (p *Participant) SetUncodedTerms(n int) error {
	if n < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "uncoded term count cannot be negative")
	}
	p.uncodedTerms = n
	p.recompute()
	return nil
}

// SetIntegrityFlags records the data-integrity flag count.
func (p *Participant) SetIntegrityFlags(n int) error {
	if n < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "integrity flag count cannot be negative")
	}
	p.integrityFlags = n
	p.recompute()
	return nil
}

// SetPendingSafety records whether a safety event awaits review.
func (p *Participant) SetPendingSafety(pending bool) {
	p.pendingSafety = pending
	p.recompute()
}

func (p *Participant) recompute() {
	p.score = scoring.Composite(scoring.Counters{
		OverdueVisits:    p.overdueVisits,
		OpenQueries:      p.openQueries,
		MissingDocuments: p.missingDocuments,
		UncodedTerms:     p.uncodedTerms,
		IntegrityFlags:   p.integrityFlags,
		PendingSafety:    p.pendingSafety,
	})
	p.conforming = scoring.Conforming(p.score)
}
