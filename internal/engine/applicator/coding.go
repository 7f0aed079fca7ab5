package applicator

import (
	"fmt"

	"clinops/internal/engine/audit"
	"clinops/internal/engine/observe"
	"clinops/internal/engine/state"
	"clinops/pkg/domain"
)

// ApplyCoding counts uncoded terms per participant and stores the count
// verbatim on first detection. This is the one domain whose table supplies
// an explicit magnitude rather than a presence signal.
func ApplyCoding(states state.Map, table observe.CodingTable, now Clock) (Result, error) {
	if err := table.Validate(); err != nil {
		return Result{}, err
	}

	// Aggregate uncoded terms per participant, preserving first-seen order
	// so event emission stays reproducible across runs.
	counts := make(map[domain.ParticipantID]int)
	var order []domain.ParticipantID
	for _, row := range table.Rows {
		if !row.RequiresCoding || row.Coded {
			continue
		}
		if _, seen := counts[row.ParticipantID]; !seen {
			order = append(order, row.ParticipantID)
		}
		counts[row.ParticipantID]++
	}

	var res Result
	for _, pid := range order {
		p, ok := states[pid]
		if !ok {
			res.Orphans++
			continue
		}
		if p.UncodedTerms() != 0 {
			continue
		}

		_ = p.SetUncodedTerms(counts[pid])

		res.Events = append(res.Events, audit.Event{
			Timestamp:     now(),
			ParticipantID: p.ParticipantID(),
			SiteID:        p.SiteID(),
			Kind:          audit.KindCodingBacklog,
			Message:       fmt.Sprintf("%d uncoded terms awaiting medical coding", counts[pid]),
			Score:         p.Score(),
		})
	}

	return res, nil
}
