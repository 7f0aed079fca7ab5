package state

import (
	"clinops/pkg/domain"
)

// ParticipantView is the serializable projection of a Participant, used by
// the run store and the HTTP surface. It carries the raw counters so a
// participant can be restored for re-derivable computations (rankings).
type ParticipantView struct {
	StudyID          domain.StudyID       `json:"study_id"`
	SiteID           domain.SiteID        `json:"site_id"`
	ParticipantID    domain.ParticipantID `json:"participant_id"`
	OverdueVisits    int                  `json:"overdue_visit_count"`
	OpenQueries      int                  `json:"total_open_query_count"`
	MissingDocuments int                  `json:"missing_document_count"`
	UncodedTerms     int                  `json:"uncoded_term_count"`
	IntegrityFlags   int                  `json:"integrity_flag_count"`
	PendingSafety    bool                 `json:"pending_safety_event"`
	Score            float64              `json:"score"`
	Conforming       bool                 `json:"conforming"`
}

// View returns the serializable projection of p.
func (p *Participant) View() ParticipantView {
	return ParticipantView{
		StudyID:          p.studyID,
		SiteID:           p.siteID,
		ParticipantID:    p.participantID,
		OverdueVisits:    p.overdueVisits,
		OpenQueries:      p.openQueries,
		MissingDocuments: p.missingDocuments,
		UncodedTerms:     p.uncodedTerms,
		IntegrityFlags:   p.integrityFlags,
		PendingSafety:    p.pendingSafety,
		Score:            p.score,
		Conforming:       p.conforming,
	}
}

// Restore rebuilds a Participant from a stored view. The derived fields are
// recomputed from the counters rather than trusted from the view, so a
// restored record can never carry a stale score.
func Restore(v ParticipantView) (*Participant, error) {
	p, err := NewParticipant(v.StudyID, v.SiteID, v.ParticipantID, BaseCounts{
		OverdueVisits:    v.OverdueVisits,
		OpenQueries:      v.OpenQueries,
		MissingDocuments: v.MissingDocuments,
	})
	if err != nil {
		return nil, err
	}
	if err := p.SetUncodedTerms(v.UncodedTerms); err != nil {
		return nil, err
	}
	if err := p.SetIntegrityFlags(v.IntegrityFlags); err != nil {
		return nil, err
	}
	p.SetPendingSafety(v.PendingSafety)
	return p, nil
}

// SiteView is the serializable projection of a Site.
type SiteView struct {
	SiteID          domain.SiteID `json:"site_id"`
	Total           int           `json:"total"`
	ConformingCount int           `json:"conforming_count"`
	NonConforming   int           `json:"non_conforming_count"`
	MeanScore       float64       `json:"mean_score"`
	MinScore        float64       `json:"min_score"`
	ClosureReady    bool          `json:"closure_ready"`
	Tier            ReadinessTier `json:"readiness_tier"`
}

// View returns the serializable projection of s.
func (s *Site) View() SiteView {
	return SiteView{
		SiteID:          s.siteID,
		Total:           s.total,
		ConformingCount: s.conforming,
		NonConforming:   s.nonConforming,
		MeanScore:       s.meanScore,
		MinScore:        s.minScore,
		ClosureReady:    s.closureReady,
		Tier:            s.tier,
	}
}
