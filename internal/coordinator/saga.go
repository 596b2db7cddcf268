// Package coordinator runs a fixed sequence of steps and, when one fails,
// compensates the steps that already ran in reverse order.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jcmexdev/storefront-payments/internal/pkg/telemetry"
)

// Step is one unit of work with an action that undoes it.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// StepFunc adapts a pair of functions to Step. A nil Undo means the step has
// nothing to compensate.
type StepFunc struct {
	StepName string
	Do       func(ctx context.Context) error
	Undo     func(ctx context.Context) error
}

func (s StepFunc) Name() string { return s.StepName }

func (s StepFunc) Execute(ctx context.Context) error { return s.Do(ctx) }

func (s StepFunc) Compensate(ctx context.Context) error {
	if s.Undo == nil {
		return nil
	}
	return s.Undo(ctx)
}

// StepError reports which step failed and whether compensation was clean.
type StepError struct {
	Step string
	Err  error
	// CompensationErr joins every failed compensation, if any.
	CompensationErr error
}

func (e *StepError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("step %s failed: %v (compensation: %v)", e.Step, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Orchestrator executes steps in order for one flow, identified by id in logs
// and spans.
type Orchestrator struct {
	id    string
	steps []Step
}

func NewOrchestrator(id string, steps []Step) *Orchestrator {
	return &Orchestrator{id: id, steps: steps}
}

// Start runs the steps sequentially. If a step fails, every step that
// succeeded before it is compensated, last first, and a *StepError is returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, span := telemetry.Tracer("coordinator").Start(ctx, "coordinator.run")
	span.SetAttributes(attribute.String("flow.id", o.id), attribute.Int("flow.steps", len(o.steps)))
	defer span.End()

	var done []Step
	for _, step := range o.steps {
		slog.DebugContext(ctx, "executing step", "flow_id", o.id, "step", step.Name())
		if err := step.Execute(ctx); err != nil {
			slog.WarnContext(ctx, "step failed, compensating", "flow_id", o.id, "step", step.Name(), "error", err)
			span.SetStatus(codes.Error, step.Name())
			return &StepError{Step: step.Name(), Err: err, CompensationErr: o.rollback(ctx, done)}
		}
		done = append(done, step)
	}

	slog.DebugContext(ctx, "flow completed", "flow_id", o.id)
	return nil
}

func (o *Orchestrator) rollback(ctx context.Context, steps []Step) error {
	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if err := step.Compensate(ctx); err != nil {
			slog.ErrorContext(ctx, "CRITICAL: failed to compensate step", "flow_id", o.id, "step", step.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", step.Name(), err))
		}
	}
	return errors.Join(errs...)
}
