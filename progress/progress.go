/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package progress provides pipeline.Observer implementations for logging,
// recording, and rendering pipeline events.
package progress

import (
	"context"
	"sync"

	"chainguard.dev/reviewflow/pipeline"
	"github.com/chainguard-dev/clog"
)

// Logger writes each event to the clog logger found in the event's context.
type Logger struct{}

var _ pipeline.Observer = Logger{}

// NewLogger returns an Observer that logs events.
func NewLogger() Logger { return Logger{} }

// Observe implements pipeline.Observer.
func (Logger) Observe(ctx context.Context, e pipeline.Event) {
	log := clog.FromContext(ctx).With("step", string(e.Step))
	if e.Unit != "" {
		log = log.With("unit", string(e.Unit))
	}
	for k, v := range e.Fields {
		log = log.With(k, v)
	}

	if e.Step == pipeline.StepFailed {
		log.Error(e.Message)
		return
	}
	if success, ok := e.Fields["success"].(bool); ok && !success {
		log.Warn(e.Message)
		return
	}
	log.Info(e.Message)
}

// Recorder keeps every observed event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []pipeline.Event
}

var _ pipeline.Observer = (*Recorder)(nil)

// Observe implements pipeline.Observer.
func (r *Recorder) Observe(_ context.Context, e pipeline.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []pipeline.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pipeline.Event(nil), r.events...)
}

// Steps returns the distinct steps in the order they were first observed.
func (r *Recorder) Steps() []pipeline.Step {
	var steps []pipeline.Step
	seen := make(map[pipeline.Step]bool)
	for _, e := range r.Events() {
		if !seen[e.Step] {
			seen[e.Step] = true
			steps = append(steps, e.Step)
		}
	}
	return steps
}

// Multi fans events out to every observer, in order.
type Multi []pipeline.Observer

// Observe implements pipeline.Observer.
func (m Multi) Observe(ctx context.Context, e pipeline.Event) {
	for _, o := range m {
		o.Observe(ctx, e)
	}
}
