package applicator

import (
	"fmt"

	"clinops/internal/engine/audit"
	"clinops/internal/engine/observe"
	"clinops/internal/engine/state"
)

// ApplyPages marks participants with outstanding missing CRF pages.
func ApplyPages(states state.Map, table observe.PageTable, now Clock) (Result, error) {
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
		if row.DaysMissing == 0 {
			continue
		}
		if p.MissingDocuments() != 0 {
			continue
		}

		_ = p.SetMissingDocuments(1)

		res.Events = append(res.Events, audit.Event{
			Timestamp:     now(),
			ParticipantID: p.ParticipantID(),
			SiteID:        p.SiteID(),
			Kind:          audit.KindMissingPages,
			Message:       fmt.Sprintf("CRF pages missing for %d days", row.DaysMissing),
			Score:         p.Score(),
		})
	}

	return res, nil
}
