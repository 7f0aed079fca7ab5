package applicator

import (
	"fmt"

	"clinops/internal/engine/audit"
	"clinops/internal/engine/observe"
	"clinops/internal/engine/state"
)

// ApplyVisits marks participants with at least one overdue visit from the
// visit projection table. The stored counter records presence (1), not the
// projected magnitude; the outstanding days go into the event message.
func ApplyVisits(states state.Map, table observe.VisitTable, now Clock) (Result, error) {
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
		if row.DaysOutstanding == 0 {
			continue
		}
		if p.OverdueVisits() != 0 {
			continue
		}

		// Validated table: the set cannot fail.
		_ = p.SetOverdueVisits(1)

		res.Events = append(res.Events, audit.Event{
			Timestamp:     now(),
			ParticipantID: p.ParticipantID(),
			SiteID:        p.SiteID(),
			Kind:          audit.KindVisitOverdue,
			Message:       fmt.Sprintf("visit overdue, %d days outstanding", row.DaysOutstanding),
			Score:         p.Score(),
		})
	}

	return res, nil
}
