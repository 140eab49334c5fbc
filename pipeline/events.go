/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"time"
)

// Step names a state of the orchestration state machine.
type Step string

const (
	StepImplementing Step = "implementing"
	StepPublishing   Step = "publishing"
	StepReviewing    Step = "reviewing"
	StepFixing       Step = "fixing"
	StepReReviewing  Step = "re_reviewing"
	StepMerging      Step = "merging"
	StepDone         Step = "done"
	StepFailed       Step = "failed"
)

// Steps lists the non-terminal steps in execution order.
var Steps = []Step{StepImplementing, StepPublishing, StepReviewing, StepFixing, StepReReviewing, StepMerging}

// Terminal reports whether the step ends a run.
func (s Step) Terminal() bool {
	return s == StepDone || s == StepFailed
}

// Event is a structured progress record emitted on every transition.
type Event struct {
	RunID   string         `json:"run_id"`
	Step    Step           `json:"step"`
	Message string         `json:"message"`
	Time    time.Time      `json:"time"`
	Unit    UnitID         `json:"unit,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Observer receives pipeline events. Implementations must be safe for
// concurrent use when shared between concurrent executions.
type Observer interface {
	Observe(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, event Event) { f(ctx, event) }

type noopObserver struct{}

func (noopObserver) Observe(context.Context, Event) {}
