// Package synth runs consultation sessions: parse the purpose, fan the
// panel out round by round, merge recommendations into a draft
// configuration, validate, and land on an accepted, escalated, or
// failed result with a full audit trail either way.
package synth

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/riverlab/indra/internal/audit"
	"github.com/riverlab/indra/internal/confluence"
	"github.com/riverlab/indra/internal/intent"
	"github.com/riverlab/indra/internal/panel"
)

// State is a session lifecycle phase.
type State string

const (
	StateParsing    State = "parsing"
	StateConsulting State = "consulting"
	StateMerging    State = "merging"
	StateValidating State = "validating"
	StateAccepted   State = "accepted"
	StateEscalated  State = "escalated"
	StateFailed     State = "failed"
)

// Terminal reports whether the state ends a session.
func (s State) Terminal() bool {
	return s == StateAccepted || s == StateEscalated || s == StateFailed
}

// SessionResult is the outcome of one Run call.
type SessionResult struct {
	State  State
	Intent *intent.Intent

	// Config is the synthesized configuration: frozen when accepted,
	// the last draft when escalated, nil when failed before any round.
	Config *confluence.Configuration

	// ConfigPath is the written YAML path for accepted sessions.
	ConfigPath string

	// ExperimentID is the run identifier stamped into the written YAML.
	ExperimentID string

	// AuditPath is the written audit trail path, when persisted.
	AuditPath string

	Trail *audit.Trail
	Err   error
}

type attemptOutcome int

const (
	attemptAccepted attemptOutcome = iota
	attemptEscalated
	attemptExhausted
	attemptCanceled
)

// Coordinator drives consultation sessions over a fixed panel.
type Coordinator struct {
	parser      *intent.Parser
	consultants []*panel.Consultant
	catalog     *confluence.ConstraintSet
	merger      *Merger

	roundBound    int
	retryBudget   int
	expertTimeout time.Duration
	outputDir     string

	log      *slog.Logger
	progress *ProgressReporter
	now      func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRoundBound caps consultation rounds per attempt.
func WithRoundBound(n int) Option {
	return func(c *Coordinator) { c.roundBound = n }
}

// WithRetryBudget sets how many fresh attempts a session gets after a
// round where every expert abstained.
func WithRetryBudget(n int) Option {
	return func(c *Coordinator) { c.retryBudget = n }
}

// WithExpertTimeout bounds each individual consultation.
func WithExpertTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.expertTimeout = d }
}

// WithOutputDir enables persistence of accepted configurations and
// audit trails under dir.
func WithOutputDir(dir string) Option {
	return func(c *Coordinator) { c.outputDir = dir }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithProgress attaches a progress reporter.
func WithProgress(pr *ProgressReporter) Option {
	return func(c *Coordinator) { c.progress = pr }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator assembles a session coordinator.
func NewCoordinator(parser *intent.Parser, consultants []*panel.Consultant, catalog *confluence.ConstraintSet, opts ...Option) *Coordinator {
	c := &Coordinator{
		parser:        parser,
		consultants:   consultants,
		catalog:       catalog,
		roundBound:    3,
		retryBudget:   1,
		expertTimeout: 90 * time.Second,
		log:           slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	roster := make([]panel.ExpertProfile, 0, len(consultants))
	for _, consultant := range consultants {
		roster = append(roster, consultant.Profile())
	}
	c.merger = NewMerger(roster, c.log)
	return c
}

func (c *Coordinator) emit(ev Event) {
	if c.progress != nil {
		c.progress.Emit(ev)
	}
}

// Run executes one full session for a purpose.
func (c *Coordinator) Run(ctx context.Context, purpose string) *SessionResult {
	return c.RunWithPrior(ctx, purpose, nil)
}

// RunWithPrior executes a session seeded with fields from a prior
// configuration. Seeded fields count as settled from round one; experts
// see them and the panel only fills the gaps, unless validation reopens
// one.
func (c *Coordinator) RunWithPrior(ctx context.Context, purpose string, prior map[string]any) *SessionResult {
	trail := audit.New(purpose, c.now())
	result := &SessionResult{Trail: trail}

	c.emit(Event{State: StateParsing, Status: StatusWorking})
	it, err := c.parser.Parse(ctx, purpose)
	if err != nil {
		c.emit(Event{State: StateParsing, Status: StatusFailed, Message: err.Error()})
		return c.finish(result, StateFailed, "purpose could not be parsed: "+err.Error(), err)
	}
	result.Intent = it
	c.emit(Event{State: StateParsing, Status: StatusComplete})
	c.log.Info("session started",
		"session", trail.SessionID, "location", it.Location)

	maxAttempts := 1 + c.retryBudget
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		trail.Attempt = attempt
		outcome, cfg := c.runAttempt(ctx, it, trail, prior)
		result.Config = cfg

		switch outcome {
		case attemptAccepted:
			return c.accept(result, it, cfg)
		case attemptEscalated:
			detail := "round bound reached with unresolved violations"
			if n := len(trail.Rounds); n > 0 && trail.Rounds[n-1].Report != nil {
				detail += ":\n" + trail.Rounds[n-1].Report.Summary()
			}
			return c.finish(result, StateEscalated, detail, nil)
		case attemptCanceled:
			return c.finish(result, StateFailed, "session canceled: "+ctx.Err().Error(), ctx.Err())
		case attemptExhausted:
			if attempt < maxAttempts {
				c.log.Warn("every expert abstained, restarting session attempt",
					"session", trail.SessionID, "attempt", attempt)
				continue
			}
		}
	}

	return c.finish(result, StateFailed, "every expert abstained and the retry budget is spent", nil)
}

// runAttempt runs one bounded round loop against a fresh draft.
func (c *Coordinator) runAttempt(ctx context.Context, it *intent.Intent, trail *audit.Trail, prior map[string]any) (attemptOutcome, *confluence.Configuration) {
	cfg := confluence.NewConfiguration(c.catalog)
	c.seed(cfg, prior)
	var feedback []confluence.RuleResult

	for round := 1; round <= c.roundBound; round++ {
		if ctx.Err() != nil {
			return attemptCanceled, cfg
		}
		results := c.fanOut(ctx, it, round, cfg.Snapshot(), feedback)
		if ctx.Err() != nil {
			return attemptCanceled, cfg
		}

		record := audit.Round{Number: round}
		var recs []*panel.Recommendation
		for _, r := range results {
			if r.abstained != nil {
				record.Abstentions = append(record.Abstentions, *r.abstained)
				continue
			}
			recs = append(recs, r.rec)
			record.Consultations = append(record.Consultations, audit.Consultation{
				Expert:     r.rec.Expert,
				Fields:     r.rec.Fields,
				Rationale:  r.rec.Rationale,
				Confidence: float64(r.rec.Confidence),
				Trimmed:    r.rec.Trimmed,
				Duration:   r.took,
			})
		}

		if len(recs) == 0 {
			trail.AddRound(record)
			return attemptExhausted, cfg
		}

		c.emit(Event{State: StateMerging, Round: round, Status: StatusWorking})
		record.Conflicts = c.merger.Merge(cfg, recs)

		c.emit(Event{State: StateValidating, Round: round, Status: StatusWorking})
		report := confluence.Validate(cfg, c.catalog)
		record.Report = report
		record.Snapshot = cfg.Snapshot()
		trail.AddRound(record)

		if report.OK() {
			cfg.Freeze()
			return attemptAccepted, cfg
		}

		// Violating values are cleared so the next round can re-propose
		// them; the violations themselves ride along as feedback.
		feedback = report.Violations()
		for _, row := range feedback {
			if cfg.Has(row.Field) {
				_ = cfg.Unset(row.Field)
			}
		}
		c.log.Info("round completed with violations",
			"session", trail.SessionID, "round", round, "violations", len(feedback))
	}

	return attemptEscalated, cfg
}

// seed applies known fields from a prior configuration to a fresh
// draft. Unknown fields and type-invalid values are skipped with a log
// line rather than failing the session.
func (c *Coordinator) seed(cfg *confluence.Configuration, prior map[string]any) {
	names := make([]string, 0, len(prior))
	for name := range prior {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, known := c.catalog.Spec(name); !known {
			continue
		}
		if err := cfg.Set(name, prior[name]); err != nil {
			c.log.Warn("prior configuration field skipped", "field", name, "error", err)
		}
	}
}

// accept persists an accepted configuration and closes the session.
func (c *Coordinator) accept(result *SessionResult, it *intent.Intent, cfg *confluence.Configuration) *SessionResult {
	result.Trail.FinalConfig = cfg.Snapshot()

	if c.outputDir != "" {
		path, experimentID, err := confluence.Save(cfg, c.outputDir, it.DomainName(), c.now())
		if err != nil {
			return c.finish(result, StateFailed, "accepted configuration could not be written: "+err.Error(), err)
		}
		result.ConfigPath = path
		result.ExperimentID = experimentID
		result.Trail.ConfigPath = path
	}

	return c.finish(result, StateAccepted, "", nil)
}

// finish stamps the terminal state and persists the audit trail.
func (c *Coordinator) finish(result *SessionResult, state State, detail string, err error) *SessionResult {
	result.State = state
	result.Err = err

	var outcome audit.Outcome
	switch state {
	case StateAccepted:
		outcome = audit.OutcomeAccepted
	case StateEscalated:
		outcome = audit.OutcomeEscalated
	default:
		outcome = audit.OutcomeFailed
	}
	result.Trail.Finish(outcome, detail, c.now())

	if c.outputDir != "" {
		path, werr := audit.WriteJSON(result.Trail, c.outputDir)
		if werr != nil {
			c.log.Error("audit trail not persisted", "error", werr)
		} else {
			result.AuditPath = path
		}
	}

	status := StatusComplete
	if state != StateAccepted {
		status = StatusFailed
	}
	c.emit(Event{State: state, Status: status, Message: detail})
	c.log.Info("session finished",
		"session", result.Trail.SessionID, "state", state, "rounds", len(result.Trail.Rounds))
	return result
}
