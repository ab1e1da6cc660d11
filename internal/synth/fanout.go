package synth

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/riverlab/indra/internal/audit"
	"github.com/riverlab/indra/internal/confluence"
	"github.com/riverlab/indra/internal/intent"
	"github.com/riverlab/indra/internal/panel"
)

// consultResult is one expert's outcome for a round: a recommendation
// or an abstention, never both.
type consultResult struct {
	rec       *panel.Recommendation
	abstained *audit.Abstention
	took      time.Duration
}

// fanOut consults every expert in parallel and waits for the full round
// barrier. An expert failure is an abstention, not a round failure, so
// goroutines never return errors and siblings are never canceled; only
// the parent context can end the round early.
func (c *Coordinator) fanOut(ctx context.Context, it *intent.Intent, round int, snapshot map[string]any, feedback []confluence.RuleResult) []consultResult {
	results := make([]consultResult, len(c.consultants))
	var g errgroup.Group

	for i, consultant := range c.consultants {
		name := consultant.Profile().Name
		c.emit(Event{State: StateConsulting, Round: round, Expert: name, Status: StatusPending})

		g.Go(func() error {
			c.emit(Event{State: StateConsulting, Round: round, Expert: name, Status: StatusWorking})

			cctx, cancel := context.WithTimeout(ctx, c.expertTimeout)
			defer cancel()

			start := c.now()
			rec, err := consultant.Consult(cctx, it, round, snapshot, feedback)
			took := c.now().Sub(start)

			if err != nil {
				results[i] = consultResult{
					abstained: &audit.Abstention{Expert: name, Reason: err.Error()},
					took:      took,
				}
				c.emit(Event{State: StateConsulting, Round: round, Expert: name, Status: StatusFailed, Message: err.Error()})
				return nil
			}

			results[i] = consultResult{rec: rec, took: took}
			c.emit(Event{State: StateConsulting, Round: round, Expert: name, Status: StatusComplete})
			return nil
		})
	}

	_ = g.Wait() // goroutines never return errors
	return results
}
