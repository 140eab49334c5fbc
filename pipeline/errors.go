/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyDescription is returned when Execute is called with a blank feature description.
var ErrEmptyDescription = errors.New("feature description cannot be empty")

// GenerationError wraps a CodeProducer failure.
type GenerationError struct{ Err error }

func (e *GenerationError) Error() string { return "generating code: " + e.Err.Error() }
func (e *GenerationError) Unwrap() error { return e.Err }

// PublishError wraps a ChangePublisher failure.
type PublishError struct{ Err error }

func (e *PublishError) Error() string { return "publishing changes: " + e.Err.Error() }
func (e *PublishError) Unwrap() error { return e.Err }

// ReviewError wraps a ReviewService failure.
type ReviewError struct {
	Unit UnitID
	Err  error
}

func (e *ReviewError) Error() string {
	return fmt.Sprintf("reviewing %s: %v", e.Unit, e.Err)
}
func (e *ReviewError) Unwrap() error { return e.Err }

// MergeError wraps a MergeExecutor failure.
type MergeError struct {
	Unit UnitID
	Err  error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merging %s: %v", e.Unit, e.Err)
}
func (e *MergeError) Unwrap() error { return e.Err }

// StepTimeoutError reports that a collaborator exceeded its per-step deadline.
type StepTimeoutError struct {
	Step    Step
	Timeout time.Duration
}

func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("step %s exceeded timeout of %s", e.Step, e.Timeout)
}

// Unwrap lets errors.Is(err, context.DeadlineExceeded) match.
func (e *StepTimeoutError) Unwrap() error { return context.DeadlineExceeded }

// PipelineError is the only error Execute returns. Step names where the run stopped.
type PipelineError struct {
	Step Step
	Err  error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at %s: %v", e.Step, e.Err)
}
func (e *PipelineError) Unwrap() error { return e.Err }
