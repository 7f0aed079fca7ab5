// Package prioritize ranks a site's non-conforming participants by the
// operational impact of their event history, producing the remediation
// worklist site monitors act on.
package prioritize

import (
	"sort"

	"clinops/internal/engine/audit"
	"clinops/internal/engine/state"
	"clinops/pkg/domain"
)

// Per-event-kind impact weights. Safety always outranks everything else.
var kindWeights = map[audit.Kind]int{
	audit.KindSafetyPending:   50,
	audit.KindVisitOverdue:    30,
	audit.KindMissingPages:    25,
	audit.KindCodingBacklog:   20,
	audit.KindInactivatedForm: 15,
}

var kindReasons = map[audit.Kind]string{
	audit.KindSafetyPending:   "Pending SAE review",
	audit.KindVisitOverdue:    "Overdue visit",
	audit.KindMissingPages:    "Missing CRF pages",
	audit.KindCodingBacklog:   "Uncoded medical term",
	audit.KindInactivatedForm: "Inactivated CRF with data",
}

var kindActions = map[audit.Kind]string{
	audit.KindSafetyPending:   "Complete SAE review",
	audit.KindVisitOverdue:    "Complete or document visit",
	audit.KindMissingPages:    "Resolve missing CRF pages",
	audit.KindCodingBacklog:   "Complete MedDRA/WHODrug coding",
	audit.KindInactivatedForm: "Reactivate or clean CRF",
}

// Action is one ranked worklist entry.
type Action struct {
	ParticipantID      domain.ParticipantID `json:"participant_id"`
	Score              float64              `json:"score"`
	ImpactScore        int                  `json:"impact_score"`
	Reasons            []string             `json:"reasons"`
	RecommendedActions []string             `json:"recommended_actions"`
}

// Rank orders the given site's non-conforming participants by impact score
// descending, ties broken by ascending participant id. The ordering is
// fully deterministic: identical inputs produce byte-identical output.
// Reasons and recommended actions are de-duplicated, one per distinct event
// kind, in the order the kinds first appear in the participant's history.
func Rank(site *state.Site, participants state.Map, events []audit.Event) []Action {
	siteID := site.SiteID()

	byParticipant := make(map[domain.ParticipantID][]audit.Event)
	for _, e := range events {
		byParticipant[e.ParticipantID] = append(byParticipant[e.ParticipantID], e)
	}

	var actions []Action
	for _, p := range participants {
		if p.SiteID() != siteID {
			continue
		}
		if p.Conforming() {
			continue
		}

		impact := 0
		var reasons, recommended []string
		seen := make(map[audit.Kind]bool)

		for _, e := range byParticipant[p.ParticipantID()] {
			impact += kindWeights[e.Kind]
			if seen[e.Kind] {
				continue
			}
			seen[e.Kind] = true
			reasons = append(reasons, kindReasons[e.Kind])
			recommended = append(recommended, kindActions[e.Kind])
		}

		actions = append(actions, Action{
			ParticipantID:      p.ParticipantID(),
			Score:              p.Score(),
			ImpactScore:        impact,
			Reasons:            reasons,
			RecommendedActions: recommended,
		})
	}

	sort.Slice(actions, func(i, j int) bool {
		if actions[i].ImpactScore != actions[j].ImpactScore {
			return actions[i].ImpactScore > actions[j].ImpactScore
		}
		return actions[i].ParticipantID < actions[j].ParticipantID
	})

	return actions
}
