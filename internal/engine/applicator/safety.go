package applicator

import (
	"clinops/internal/engine/audit"
	"clinops/internal/engine/observe"
	"clinops/internal/engine/state"
)

// ApplySafety flags participants whose serious-adverse-event review has not
// been completed.
func ApplySafety(states state.Map, table observe.SafetyTable, now Clock) (Result, error) {
	if err := table.Validate(); err != nil {
		return Result{}, err
	}

	var res Result
	for _, row := range table.Rows {
		p, ok := states[row.ParticipantID]
		if !ok {
			res.Orphans++
			continue
		}
		if row.ReviewCompleted {
			continue
		}
		if p.PendingSafety() {
			continue
		}

		p.SetPendingSafety(true)

		res.Events = append(res.Events, audit.Event{
			Timestamp:     now(),
			ParticipantID: p.ParticipantID(),
			SiteID:        p.SiteID(),
			Kind:          audit.KindSafetyPending,
			Message:       "serious adverse event review pending",
			Score:         p.Score(),
		})
	}

	return res, nil
}
