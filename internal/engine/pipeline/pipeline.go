// Package pipeline sequences a full scoring run: base build, the five risk
// domains in fixed order, then site aggregation.
//
// A pipeline run is single-threaded by design: each stage's postcondition is
// the next stage's precondition, and the applicators mutate a shared state
// map. Independent runs (different studies or snapshots) may execute in
// parallel on separate Pipeline instances; nothing here is shared.
package pipeline

import (
	"log/slog"
	"time"

	"clinops/internal/engine/aggregate"
	"clinops/internal/engine/applicator"
	"clinops/internal/engine/audit"
	"clinops/internal/engine/observe"
	"clinops/internal/engine/state"
	"clinops/pkg/domain"
	dErrors "clinops/pkg/domain-errors"
)

// Stage names a pipeline stage. Stages advance strictly forward; a run is
// not restartable mid-flight.
type Stage string

const (
	StageBaseBuild      Stage = "BASE_BUILD"
	StageApplyDomains   Stage = "APPLY_DOMAINS"
	StageScoreFinalized Stage = "SCORE_FINALIZED"
	StageAggregate      Stage = "AGGREGATE"
	StageDone           Stage = "DONE"
	StageAborted        Stage = "ABORTED"
)

// Input is one immutable study snapshot. The roster is required; each
// observation table is optional - an absent table simply contributes zero
// penalty for every participant.
type Input struct {
	StudyID   domain.StudyID
	Roster    observe.Roster
	Visits    *observe.VisitTable
	Safety    *observe.SafetyTable
	Coding    *observe.CodingTable
	Pages     *observe.PageTable
	Integrity *observe.IntegrityTable
}

// Result is the terminal output of a completed run.
type Result struct {
	Participants state.Map
	Sites        map[domain.SiteID]*state.Site
	Events       []audit.Event
	Orphans      map[applicator.Domain]int
}

// OrphanTotal sums skipped observation rows across all domains.
func (r *Result) OrphanTotal() int {
	total := 0
	for _, n := range r.Orphans {
		total += n
	}
	return total
}

// Pipeline executes runs. One instance may be reused across runs; each Run
// call builds fresh state.
type Pipeline struct {
	logger *slog.Logger
	clock  applicator.Clock
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger attaches a logger for stage progress.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithClock pins the event timestamp source. Tests use this for
// reproducible streams.
func WithClock(clock applicator.Clock) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// New constructs a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{clock: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes all stages over the input snapshot. On any schema failure
// the run aborts whole: the returned error is the applicator's, and no
// partially-mutated state is exposed.
func (p *Pipeline) Run(input Input) (*Result, error) {
	if input.StudyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "run requires a study id")
	}

	// BASE_BUILD
	states, err := p.baseBuild(input)
	if err != nil {
		return nil, err
	}
	p.log("stage complete", "study_id", input.StudyID, "stage", StageBaseBuild, "participants", len(states))

	// APPLY_DOMAINS, fixed order. Absence of a table is not an error.
	stream := audit.NewStream()
	orphans := make(map[applicator.Domain]int)

	type subStage struct {
		domain applicator.Domain
		apply  func() (applicator.Result, error)
		absent bool
	}
	subStages := []subStage{
		{applicator.DomainSchedule, func() (applicator.Result, error) {
			return applicator.ApplyVisits(states, *input.Visits, p.clock)
		}, input.Visits == nil},
		{applicator.DomainSafety, func() (applicator.Result, error) {
			return applicator.ApplySafety(states, *input.Safety, p.clock)
		}, input.Safety == nil},
		{applicator.DomainTerminology, func() (applicator.Result, error) {
			return applicator.ApplyCoding(states, *input.Coding, p.clock)
		}, input.Coding == nil},
		{applicator.DomainDocumentation, func() (applicator.Result, error) {
			return applicator.ApplyPages(states, *input.Pages, p.clock)
		}, input.Pages == nil},
		{applicator.DomainIntegrity, func() (applicator.Result, error) {
			return applicator.ApplyIntegrity(states, *input.Integrity, p.clock)
		}, input.Integrity == nil},
	}

	for _, sub := range subStages {
		if sub.absent {
			p.log("domain skipped, no observation table", "study_id", input.StudyID, "domain", sub.domain)
			continue
		}
		res, err := sub.apply()
		if err != nil {
			// Fail fast: a half-applied domain would break the audit
			// guarantee, so the whole run is discarded.
			p.log("run aborted", "study_id", input.StudyID, "stage", StageAborted, "domain", sub.domain, "error", err)
			return nil, err
		}
		stream.Append(res.Events...)
		orphans[sub.domain] += res.Orphans
		p.log("domain applied", "study_id", input.StudyID, "domain", sub.domain,
			"events", len(res.Events), "orphans", res.Orphans)
	}

	// SCORE_FINALIZED: every mutation recomputed its score synchronously,
	// so this stage is a checkpoint, not a computation.
	p.log("stage complete", "study_id", input.StudyID, "stage", StageScoreFinalized, "events", stream.Len())

	// AGGREGATE, exactly once, after all five domains were attempted.
	sites := aggregate.BuildSiteStates(states)
	p.log("stage complete", "study_id", input.StudyID, "stage", StageAggregate, "sites", len(sites))

	return &Result{
		Participants: states,
		Sites:        sites,
		Events:       stream.Events(),
		Orphans:      orphans,
	}, nil
}

func (p *Pipeline) baseBuild(input Input) (state.Map, error) {
	if err := input.Roster.Validate(); err != nil {
		return nil, err
	}

	states := make(state.Map, len(input.Roster.Rows))
	for _, row := range input.Roster.Rows {
		participant, err := state.NewParticipant(input.StudyID, row.SiteID, row.ParticipantID, state.BaseCounts{
			OverdueVisits:    row.OverdueVisits,
			OpenQueries:      row.OpenQueries,
			MissingDocuments: row.MissingDocuments,
		})
		if err != nil {
			return nil, err
		}
		// Duplicate roster rows: last one wins, matching the upstream
		// export's own de-duplication behavior.
		states[row.ParticipantID] = participant
	}
	return states, nil
}

func (p *Pipeline) log(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}
