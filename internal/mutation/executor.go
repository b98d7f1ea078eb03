// Package mutation implements the balance mutation protocol: an ordered
// list of (apply, compensate) step pairs executed either inside a store
// transaction or, when the store cannot guarantee multi-record atomicity,
// with explicit reverse-order compensation on failure.
package mutation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Step is one unit of a multi-record mutation. Apply commits the step;
// Compensate exactly reverses it. A nil Compensate marks a step that needs
// no undo (e.g. the guarded decrement that fails cleanly on its own).
type Step struct {
	Name       string
	Apply      func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Executor runs steps on the non-transactional path.
type Executor struct {
	log *logrus.Logger
}

// NewExecutor creates an executor logging through the given logger.
func NewExecutor(log *logrus.Logger) *Executor {
	return &Executor{log: log}
}

// Run applies steps in order. On failure it compensates every
// already-applied step in reverse order and returns the original error.
// A compensation failure is the single fatal case: it is logged with full
// context for manual reconciliation, distinctly from ordinary errors.
func (e *Executor) Run(ctx context.Context, operation string, steps []Step) error {
	for i, step := range steps {
		if err := step.Apply(ctx); err != nil {
			e.compensate(ctx, operation, steps[:i], err)
			return fmt.Errorf("%s: step %q failed: %w", operation, step.Name, err)
		}
	}
	return nil
}

func (e *Executor) compensate(ctx context.Context, operation string, applied []Step, cause error) {
	for i := len(applied) - 1; i >= 0; i-- {
		step := applied[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			e.log.WithFields(logrus.Fields{
				"operation": operation,
				"step":      step.Name,
				"cause":     cause.Error(),
				"error":     err.Error(),
			}).Error("compensation failed: manual reconciliation required")
		}
	}
}

// RunAtomic applies steps in order with no compensation. It is used inside
// a store transaction, where any failure aborts the transaction and the
// store guarantees no partial state is visible.
func RunAtomic(ctx context.Context, steps []Step) error {
	for _, step := range steps {
		if err := step.Apply(ctx); err != nil {
			return fmt.Errorf("step %q failed: %w", step.Name, err)
		}
	}
	return nil
}
