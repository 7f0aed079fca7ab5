// Package scoring computes the composite quality score for a participant.
//
// The score is the single number the rest of the engine hangs off: site
// aggregation, closure readiness, and prioritization all derive from it.
// Keep this file pure - no I/O, no side effects - so the weights stay
// centralized and auditable.
package scoring

// Penalty weights per detected issue. These are operational risk weights
// agreed with data management, not statistical estimates.
const (
	WeightOverdueVisit    = 5
	WeightOpenQuery       = 4
	WeightMissingDocument = 3
	WeightUncodedTerm     = 2
	WeightIntegrityFlag   = 10
	WeightPendingSafety   = 8
)

// MaxScore is the score of a participant with no detected issues.
const MaxScore = 100.0

// Counters is the scoring input: the raw per-participant issue counts.
type Counters struct {
	OverdueVisits    int
	OpenQueries      int
	MissingDocuments int
	UncodedTerms     int
	IntegrityFlags   int
	PendingSafety    bool
}

// Composite returns the risk-weighted quality score in [0, 100].
// Penalties never drive the score negative; it floors at zero.
func Composite(c Counters) float64 {
	penalty := WeightOverdueVisit*c.OverdueVisits +
		WeightOpenQuery*c.OpenQueries +
		WeightMissingDocument*c.MissingDocuments +
		WeightUncodedTerm*c.UncodedTerms +
		WeightIntegrityFlag*c.IntegrityFlags

	if c.PendingSafety {
		penalty += WeightPendingSafety
	}

	score := MaxScore - float64(penalty)
	if score < 0 {
		return 0
	}
	return score
}

// Conforming reports whether a score means "no detected issues".
// Exactly 100 - close is not conforming.
func Conforming(score float64) bool {
	return score == MaxScore
}
