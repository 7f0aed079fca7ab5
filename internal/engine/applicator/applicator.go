// Package applicator applies one risk domain's observation table to the
// participant state map.
//
// Shared contract across all five domains:
//   - the whole table is validated before any mutation, so a schema failure
//     leaves the state map and event stream untouched;
//   - rows referencing unknown participants are orphans: skipped and
//     counted, never errors;
//   - first detection wins: a participant whose counter/flag is still at
//     baseline gets it set once, the score recomputed, and exactly one
//     event emitted. Later observations in the same domain and run change
//     nothing, even if they carry a different magnitude;
//   - counters are never decreased.
package applicator

import (
	"time"

	"clinops/internal/engine/audit"
)

// Domain names a risk domain, in the fixed order the pipeline applies them.
type Domain string

const (
	DomainSchedule      Domain = "schedule"
	DomainSafety        Domain = "safety"
	DomainTerminology   Domain = "terminology"
	DomainDocumentation Domain = "documentation"
	DomainIntegrity     Domain = "integrity"
)

// String returns the string representation.
func (d Domain) String() string {
	return string(d)
}

// Clock supplies event timestamps. The pipeline injects one clock per run so
// tests can pin time.
type Clock func() time.Time

// Result is one applicator invocation's output. Events are returned to the
// caller for appending to the run's stream; Orphans counts skipped rows for
// informational logging.
type Result struct {
	Events  []audit.Event
	Orphans int
}
