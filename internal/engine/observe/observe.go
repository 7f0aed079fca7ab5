// Package observe defines the typed observation tables the risk applicators
// consume. Rows are validated at this boundary so applicators can mutate
// state without a failure path mid-apply: a table either validates whole or
// the applicator call fails before touching anything.
package observe

import (
	"clinops/pkg/domain"
	dErrors "clinops/pkg/domain-errors"
)

// RosterRow is one enrolled participant from the base roster, optionally
// carrying baseline counts supplied by the export.
type RosterRow struct {
	ParticipantID    domain.ParticipantID
	SiteID           domain.SiteID
	OverdueVisits    int
	OpenQueries      int
	MissingDocuments int
}

// Roster is the base participant listing a run is built from.
type Roster struct {
	Rows []RosterRow
}

// Validate checks roster rows for identity and counter sanity.
func (r Roster) Validate() error {
	for i, row := range r.Rows {
		if row.ParticipantID.IsNil() {
			return dErrors.Newf(dErrors.CodeSchemaViolation, "roster row %d: missing participant id", i)
		}
		if row.SiteID.IsNil() {
			return dErrors.Newf(dErrors.CodeSchemaViolation, "roster row %d: missing site id", i)
		}
		if row.OverdueVisits < 0 || row.OpenQueries < 0 || row.MissingDocuments < 0 {
			return dErrors.Newf(dErrors.CodeSchemaViolation, "roster row %d: negative baseline count", i)
		}
	}
	return nil
}

// VisitRow is one overdue-visit projection observation.
type VisitRow struct {
	ParticipantID   domain.ParticipantID
	DaysOutstanding int
}

// VisitTable is the schedule-domain observation table.
type VisitTable struct {
	Rows []VisitRow
}

// Validate rejects rows without a participant id or with a negative signal.
func (t VisitTable) Validate() error {
	for i, row := range t.Rows {
		if row.ParticipantID.IsNil() {
			return dErrors.Newf(dErrors.CodeSchemaViolation, "visit row %d: missing participant id", i)
		}
		if row.DaysOutstanding < 0 {
			return dErrors.Newf(dErrors.CodeSchemaViolation, "visit row %d: negative days outstanding", i)
		}
	}
	return nil
}

// SafetyRow is one serious-adverse-event dashboard observation.
type SafetyRow struct {
	ParticipantID   domain.ParticipantID
	ReviewCompleted bool
}

// SafetyTable is the safety-domain observation table.
type SafetyTable struct {
	Rows []SafetyRow
}

// Validate rejects rows without a participant id.
func (t SafetyTable) Validate() error {
	for i, row := range t.Rows {
		if row.ParticipantID.IsNil() {
			return dErrors.Newf(dErrors.CodeSchemaViolation, "safety row %d: missing participant id", i)
		}
	}
	return nil
}

// CodingRow is one medical-coding report line (MedDRA or WHODrug).
type CodingRow struct {
	ParticipantID  domain.ParticipantID
	RequiresCoding bool
	Coded          bool
}

// CodingTable is the terminology-domain observation table.
type CodingTable struct {
	Rows []CodingRow
}

// Validate rejects rows without a participant id.
func (t CodingTable) Validate() error {
	for i, row := range t.Rows {
		if row.ParticipantID.IsNil() {
			return dErrors.Newf(dErrors.CodeSchemaViolation, "coding row %d: missing participant id", i)
		}
	}
	return nil
}

// PageRow is one missing-CRF-pages report line.
type PageRow struct {
	ParticipantID domain.ParticipantID
	DaysMissing   int
}

// PageTable is the documentation-domain observation table.
type PageTable struct {
	Rows []PageRow
}

// Validate rejects rows without a participant id or with a negative signal.
func (t PageTable) Validate() error {
	for i, row := range t.Rows {
		if row.ParticipantID.IsNil() {
			return dErrors.Newf(dErrors.CodeSchemaViolation, "pages row %d: missing participant id", i)
		}
		if row.DaysMissing < 0 {
			return dErrors.Newf(dErrors.CodeSchemaViolation, "pages row %d: negative days missing", i)
		}
	}
	return nil
}

// IntegrityRow is one inactivated-form audit line. Data left on an
// inactivated form is a data-integrity flag.
type IntegrityRow struct {
	ParticipantID domain.ParticipantID
	Inactivated   bool
	DataPresent   bool
}

// IntegrityTable is the integrity-domain observation table.
type IntegrityTable struct {
	Rows []IntegrityRow
}

// Validate rejects rows without a participant id.
func (t IntegrityTable) Validate() error {
	for i, row := range t.Rows {
		if row.ParticipantID.IsNil() {
			return dErrors.Newf(dErrors.CodeSchemaViolation, "integrity row %d: missing participant id", i)
		}
	}
	return nil
}
