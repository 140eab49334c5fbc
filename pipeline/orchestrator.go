/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator drives one feature description through the review pipeline.
// It holds no per-run state, so concurrent Execute calls are safe.
type Orchestrator struct {
	collab         Collaborators
	observer       Observer
	instructions   string
	defaultTimeout time.Duration
	timeouts       map[Step]time.Duration
	policy         ReReviewPolicy
	runID          func() string
	now            func() time.Time
	metrics        *instruments
	tracer         trace.Tracer
}

// New creates an Orchestrator. Every collaborator is required.
func New(c Collaborators, opts ...Option) (*Orchestrator, error) {
	switch {
	case c.Producer == nil:
		return nil, errors.New("code producer cannot be nil")
	case c.Publisher == nil:
		return nil, errors.New("change publisher cannot be nil")
	case c.Reviewer == nil:
		return nil, errors.New("review service cannot be nil")
	case c.Fixer == nil:
		return nil, errors.New("fix applier cannot be nil")
	case c.Merger == nil:
		return nil, errors.New("merge executor cannot be nil")
	}

	o := &Orchestrator{
		collab:       c,
		observer:     noopObserver{},
		instructions: DefaultInstructions,
		timeouts:     make(map[Step]time.Duration),
		policy:       MergeRegardless,
		runID:        uuid.NewString,
		now:          time.Now,
		metrics:      newInstruments(),
		tracer:       otel.Tracer(instrumentationName, trace.WithInstrumentationVersion("1.0.0")),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return o, nil
}

// run is the state of a single Execute call.
type run struct {
	*Orchestrator
	id   string
	unit UnitID
}

// Execute runs the pipeline for a feature description and returns the merge outcome.
// Any failure is returned as a *PipelineError.
func (o *Orchestrator) Execute(ctx context.Context, description string) (outcome MergeOutcome, err error) {
	r := &run{Orchestrator: o, id: o.runID()}

	ctx = WithRunID(ctx, r.id)
	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("run_id", r.id))
	ctx, span := o.tracer.Start(ctx, "pipeline.execute", trace.WithAttributes(attribute.String("run_id", r.id)))
	defer func() {
		var perr *PipelineError
		if errors.As(err, &perr) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.metrics.recordRun(ctx, string(StepFailed))
			r.emit(ctx, StepFailed, fmt.Sprintf("Pipeline failed while %s: %v", perr.Step, perr.Err), map[string]any{
				"failed_step": string(perr.Step),
			})
		} else {
			span.SetAttributes(attribute.String("outcome", string(outcome.Status)))
			o.metrics.recordRun(ctx, string(outcome.Status))
			r.emit(ctx, StepDone, fmt.Sprintf("Pipeline finished: %s", outcome.Status), map[string]any{
				"status": string(outcome.Status),
			})
		}
		span.End()
	}()

	if strings.TrimSpace(description) == "" {
		return MergeOutcome{}, &PipelineError{Step: StepImplementing, Err: ErrEmptyDescription}
	}

	// Implement the feature.
	r.emit(ctx, StepImplementing, "Implementing feature", map[string]any{"description": description})
	changes, err := invoke(ctx, r, StepImplementing, func(ctx context.Context) (ChangeSet, error) {
		return o.collab.Producer.Generate(ctx, description)
	})
	if err != nil {
		return MergeOutcome{}, &PipelineError{Step: StepImplementing, Err: &GenerationError{Err: err}}
	}

	// Publish the change set.
	r.emit(ctx, StepPublishing, fmt.Sprintf("Publishing %d changed file(s)", len(changes.Files)), map[string]any{
		"paths": changes.Paths(),
	})
	unit, err := invoke(ctx, r, StepPublishing, func(ctx context.Context) (UnitID, error) {
		return o.collab.Publisher.Publish(ctx, changes.Clone())
	})
	if err != nil {
		return MergeOutcome{}, &PipelineError{Step: StepPublishing, Err: &PublishError{Err: err}}
	}
	r.unit = unit
	ctx = WithUnit(ctx, unit)
	span.SetAttributes(attribute.String("unit", string(unit)))
	r.emit(ctx, StepPublishing, fmt.Sprintf("Published %s", unit), nil)

	// First review.
	first, err := r.review(ctx, StepReviewing)
	if err != nil {
		return MergeOutcome{}, err
	}

	if len(first.Findings) > 0 {
		if err := r.fixAll(ctx, first.Findings); err != nil {
			return MergeOutcome{}, err
		}

		// The second review is observed; the policy decides whether it gates the merge.
		second, err := r.review(ctx, StepReReviewing)
		if err != nil {
			return MergeOutcome{}, err
		}
		if n := len(second.Findings); n > 0 && o.policy == BlockOnUnresolved {
			outcome := MergeOutcome{
				Status:  MergeStatusBlocked,
				Message: fmt.Sprintf("%d finding(s) unresolved after re-review", n),
			}
			r.emit(ctx, StepMerging, "Merge blocked: "+outcome.Message, map[string]any{"unresolved": n})
			return outcome, nil
		}
	}

	// Merge.
	r.emit(ctx, StepMerging, fmt.Sprintf("Merging %s", unit), nil)
	outcome, err = invoke(ctx, r, StepMerging, func(ctx context.Context) (MergeOutcome, error) {
		return o.collab.Merger.Merge(ctx, unit)
	})
	if err != nil {
		return MergeOutcome{}, &PipelineError{Step: StepMerging, Err: &MergeError{Unit: unit, Err: err}}
	}
	r.emit(ctx, StepMerging, fmt.Sprintf("Merge finished with status %s", outcome.Status), map[string]any{
		"status": string(outcome.Status),
		"sha":    outcome.SHA,
	})
	return outcome, nil
}

func (r *run) review(ctx context.Context, step Step) (ReviewResult, error) {
	msg := "Requesting review"
	if step == StepReReviewing {
		msg = "Requesting second review"
	}
	r.emit(ctx, step, fmt.Sprintf("%s of %s", msg, r.unit), map[string]any{"instructions": r.instructions})

	result, err := invoke(ctx, r, step, func(ctx context.Context) (ReviewResult, error) {
		return r.collab.Reviewer.Analyze(ctx, r.unit, r.instructions)
	})
	if err != nil {
		return ReviewResult{}, &PipelineError{Step: step, Err: &ReviewError{Unit: r.unit, Err: err}}
	}

	r.emit(ctx, step, fmt.Sprintf("Review returned %d finding(s)", len(result.Findings)), map[string]any{
		"findings": len(result.Findings),
		"verdict":  string(result.Verdict),
	})
	return result, nil
}

// fixAll attempts every finding in order. Fix failures are recorded, never fatal;
// only caller cancellation stops the loop.
func (r *run) fixAll(ctx context.Context, findings []Finding) error {
	r.emit(ctx, StepFixing, fmt.Sprintf("Fixing %d finding(s)", len(findings)), map[string]any{"findings": len(findings)})

	applied, failed := 0, 0
	for i, f := range findings {
		if err := ctx.Err(); err != nil {
			return &PipelineError{Step: StepFixing, Err: err}
		}

		fields := map[string]any{"index": i, "message": f.Message}
		if f.Location != nil {
			fields["location"] = f.Location.String()
		}
		r.emit(ctx, StepFixing, fmt.Sprintf("Fixing: %s", f.Message), fields)

		ok := r.applyFix(ctx, f)
		r.metrics.recordFix(ctx, ok)
		if ok {
			applied++
			r.emit(ctx, StepFixing, "Fix applied", map[string]any{"index": i, "success": true})
		} else {
			failed++
			r.emit(ctx, StepFixing, "Fix failed, continuing", map[string]any{"index": i, "success": false})
		}
	}

	r.emit(ctx, StepFixing, fmt.Sprintf("Applied %d of %d fix(es)", applied, len(findings)), map[string]any{
		"applied": applied,
		"failed":  failed,
	})
	return nil
}

func (r *run) applyFix(ctx context.Context, f Finding) (ok bool) {
	ctx, cancel := r.stepContext(ctx, StepFixing)
	defer cancel()

	ctx, span := r.tracer.Start(ctx, "pipeline.fix")
	defer span.End()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			clog.FromContext(ctx).With("panic", p).Error("Fix applier panicked")
			ok = false
		}
		if !ok {
			span.SetStatus(codes.Error, "fix failed")
		}
		r.metrics.recordStep(ctx, StepFixing, start, nil)
	}()

	return r.collab.Fixer.Apply(ctx, f)
}

// stepContext derives the per-step deadline, if one is configured.
func (r *run) stepContext(ctx context.Context, step Step) (context.Context, context.CancelFunc) {
	d, ok := r.timeouts[step]
	if !ok {
		d = r.defaultTimeout
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (r *run) timeoutFor(step Step) time.Duration {
	if d, ok := r.timeouts[step]; ok {
		return d
	}
	return r.defaultTimeout
}

// invoke runs one collaborator call under the step's deadline and span.
// A deadline hit on the step context (and not the caller's) becomes a *StepTimeoutError.
func invoke[T any](ctx context.Context, r *run, step Step, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	stepCtx, cancel := r.stepContext(ctx, step)
	defer cancel()

	stepCtx, span := r.tracer.Start(stepCtx, "pipeline."+string(step))
	defer span.End()

	start := time.Now()
	v, err := fn(stepCtx)
	if err != nil && ctx.Err() == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		err = &StepTimeoutError{Step: step, Timeout: r.timeoutFor(step)}
	}
	r.metrics.recordStep(ctx, step, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}
	return v, nil
}

func (r *run) emit(ctx context.Context, step Step, message string, fields map[string]any) {
	r.observer.Observe(ctx, Event{
		RunID:   r.id,
		Step:    step,
		Message: message,
		Time:    r.now(),
		Unit:    r.unit,
		Fields:  fields,
	})
}
