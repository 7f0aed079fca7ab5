package applicator

import (
	"clinops/internal/engine/audit"
	"clinops/internal/engine/observe"
	"clinops/internal/engine/state"
)

// ApplyIntegrity flags participants with data still present on an
// inactivated form.
func ApplyIntegrity(states state.Map, table observe.IntegrityTable, now Clock) (Result, error) {
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
		if !row.Inactivated || !row.DataPresent {
			continue
		}
		if p.IntegrityFlags() != 0 {
			continue
		}

		_ = p.SetIntegrityFlags(1)

		res.Events = append(res.Events, audit.Event{
			Timestamp:     now(),
			ParticipantID: p.ParticipantID(),
			SiteID:        p.SiteID(),
			Kind:          audit.KindInactivatedForm,
			Message:       "data present on inactivated form",
			Score:         p.Score(),
		})
	}

	return res, nil
}
