package project

import (
	"context"
	"log/slog"

	"github.com/invoicedeck/invoicedeck/internal/metrics"
)

// Step is one action of a multi-store protocol together with the compensating
// action that undoes its side effects. Compensations are registered up front,
// before execution proceeds, so the undo list is never inferred from
// partially-mutated locals. A step whose failure leaves partial side effects
// (e.g. a concurrent upload fan-out) must make its own Compensate cover
// whatever subset actually happened.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
	// Compensate undoes the step's side effects. Nil for steps with nothing
	// to undo (e.g. an all-or-nothing metadata batch that failed).
	Compensate func(ctx context.Context) error
}

// runSaga executes steps in order. On failure it runs the compensations of
// the failing step and every completed step in reverse, then returns the
// original error. Compensation failures are logged and do not escalate; the
// caller always sees the error that triggered the rollback.
func runSaga(ctx context.Context, log *slog.Logger, operation string, steps []Step) error {
	for i, step := range steps {
		err := step.Run(ctx)
		if err == nil {
			continue
		}
		log.Error("operation step failed, compensating",
			"operation", operation, "step", step.Name, "error", err)
		metrics.CompensationsTotal.WithLabelValues(operation).Inc()
		for j := i; j >= 0; j-- {
			comp := steps[j].Compensate
			if comp == nil {
				continue
			}
			if cerr := comp(ctx); cerr != nil {
				log.Error("compensation failed",
					"operation", operation, "step", steps[j].Name, "error", cerr)
			}
		}
		return err
	}
	return nil
}
