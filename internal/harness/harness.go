package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/dbal/internal/query"
	"github.com/roach88/dbal/internal/record"
	"github.com/roach88/dbal/internal/value"
)

// Outcome is what one step produced on one backend.
type Outcome struct {
	Rows  []value.Object
	Count int
	Key   value.Value
	Err   error
}

// ErrorKind classifies Err; it is empty on success.
func (o Outcome) ErrorKind() string { return ErrorKind(o.Err) }

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation held on every backend and the
	// backends agreed.
	Pass bool

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string

	// Outcomes holds each backend's step outcomes, in step order.
	Outcomes map[string][]Outcome
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Errors:   []string{},
		Outcomes: make(map[string][]Outcome),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Run executes a scenario on each backend (DefaultBackends when none are
// given) and returns the combined result. An error is returned only when
// a backend cannot be prepared; step failures are reported in the result.
func Run(ctx context.Context, scenario *Scenario, backends ...Backend) (*Result, error) {
	if len(backends) == 0 {
		backends = DefaultBackends()
	}
	def, err := scenario.Definition()
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for _, b := range backends {
		src, closeFn, err := b.Open(ctx, def)
		if err != nil {
			return nil, fmt.Errorf("open %s backend: %w", b.Name(), err)
		}
		outcomes, err := runBackend(ctx, src, scenario)
		closeFn()
		if err != nil {
			return nil, fmt.Errorf("%s backend: %w", b.Name(), err)
		}
		result.Outcomes[b.Name()] = outcomes

		for i, out := range outcomes {
			for _, msg := range checkOutcome(scenario.Steps[i], out) {
				result.AddError(fmt.Sprintf("[%s] step %d (%s): %s", b.Name(), i+1, scenario.Steps[i].Op, msg))
			}
		}
	}

	for _, msg := range compareBackends(backends, result.Outcomes) {
		result.AddError(msg)
	}
	slog.Debug("scenario finished", "scenario", scenario.Name, "pass", result.Pass)
	return result, nil
}

func runBackend(ctx context.Context, src query.DataSource, scenario *Scenario) ([]Outcome, error) {
	for i, row := range scenario.Rows {
		if _, err := src.Insert(ctx, row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	outcomes := make([]Outcome, len(scenario.Steps))
	for i, step := range scenario.Steps {
		outcomes[i] = runStep(ctx, src, step)
	}
	return outcomes, nil
}

func runStep(ctx context.Context, src query.DataSource, step Step) Outcome {
	sel := step.Query.Selection()
	var out Outcome
	switch step.Op {
	case OpRead:
		var recs []*record.Record
		recs, out.Err = query.All(ctx, src, sel)
		if out.Err == nil {
			out.Rows = make([]value.Object, len(recs))
			for i, r := range recs {
				out.Rows[i] = value.Object(r.Data())
			}
			out.Count = len(recs)
		}
	case OpCount:
		out.Count, out.Err = query.Count(ctx, src, sel)
	case OpInsert:
		out.Key, out.Err = src.Insert(ctx, step.Data)
		if out.Err == nil {
			out.Count = 1
		}
	case OpUpdate:
		out.Count, out.Err = src.Update(ctx, sel, step.Data)
	case OpDelete:
		out.Count, out.Err = src.Delete(ctx, sel)
	}
	return out
}
