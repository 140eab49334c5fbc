/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package pipelinetest provides scripted collaborators for exercising a
// pipeline.Orchestrator without external services.
package pipelinetest

import (
	"context"
	"sync"

	"chainguard.dev/reviewflow/pipeline"
)

// Calls records collaborator invocations in the order they happened.
type Calls struct {
	mu    sync.Mutex
	order []string

	Descriptions []string
	Published    []pipeline.ChangeSet
	Analyzed     []pipeline.UnitID
	Instructions []string
	Fixed        []pipeline.Finding
	Merged       []pipeline.UnitID
}

func (c *Calls) record(name string, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = append(c.order, name)
	fn()
}

// Order returns the names of the collaborator methods called, in order.
func (c *Calls) Order() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

// Count returns how often the named method was called.
func (c *Calls) Count(name string) int {
	n := 0
	for _, o := range c.Order() {
		if o == name {
			n++
		}
	}
	return n
}

// Script configures the behavior of a Fake. Zero values produce a successful run
// with no findings.
type Script struct {
	ChangeSet   pipeline.ChangeSet
	GenerateErr error

	Unit       pipeline.UnitID
	PublishErr error

	// Reviews are returned by successive Analyze calls; the last one repeats.
	Reviews    []pipeline.ReviewResult
	ReviewErrs []error

	// FixResults are returned by successive Apply calls; missing entries succeed.
	FixResults []bool

	Outcome  pipeline.MergeOutcome
	MergeErr error

	// Block, when set, makes the named method wait for its context to end.
	Block string
}

// Fake implements every pipeline collaborator from a Script.
type Fake struct {
	Script Script
	Calls  Calls

	// UnitsSeen records the unit id found in the context of each Apply call.
	UnitsSeen []pipeline.UnitID
}

// New returns a Fake driven by script.
func New(script Script) *Fake {
	if script.Unit == "" {
		script.Unit = "42"
	}
	if script.Outcome.Status == "" {
		script.Outcome = pipeline.MergeOutcome{Status: pipeline.MergeStatusMerged}
	}
	return &Fake{Script: script}
}

// Collaborators returns the fake wired into every role.
func (f *Fake) Collaborators() pipeline.Collaborators {
	return pipeline.Collaborators{
		Producer:  f,
		Publisher: f,
		Reviewer:  f,
		Fixer:     f,
		Merger:    f,
	}
}

func (f *Fake) block(ctx context.Context, name string) error {
	if f.Script.Block != name {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

// Generate implements pipeline.CodeProducer.
func (f *Fake) Generate(ctx context.Context, description string) (pipeline.ChangeSet, error) {
	f.Calls.record("generate", func() { f.Calls.Descriptions = append(f.Calls.Descriptions, description) })
	if err := f.block(ctx, "generate"); err != nil {
		return pipeline.ChangeSet{}, err
	}
	if f.Script.GenerateErr != nil {
		return pipeline.ChangeSet{}, f.Script.GenerateErr
	}
	return f.Script.ChangeSet, nil
}

// Publish implements pipeline.ChangePublisher.
func (f *Fake) Publish(ctx context.Context, changes pipeline.ChangeSet) (pipeline.UnitID, error) {
	f.Calls.record("publish", func() { f.Calls.Published = append(f.Calls.Published, changes) })
	if err := f.block(ctx, "publish"); err != nil {
		return "", err
	}
	if f.Script.PublishErr != nil {
		return "", f.Script.PublishErr
	}
	return f.Script.Unit, nil
}

// Analyze implements pipeline.ReviewService.
func (f *Fake) Analyze(ctx context.Context, unit pipeline.UnitID, instructions string) (pipeline.ReviewResult, error) {
	var n int
	f.Calls.record("analyze", func() {
		n = len(f.Calls.Analyzed)
		f.Calls.Analyzed = append(f.Calls.Analyzed, unit)
		f.Calls.Instructions = append(f.Calls.Instructions, instructions)
	})
	if err := f.block(ctx, "analyze"); err != nil {
		return pipeline.ReviewResult{}, err
	}
	if n < len(f.Script.ReviewErrs) && f.Script.ReviewErrs[n] != nil {
		return pipeline.ReviewResult{}, f.Script.ReviewErrs[n]
	}
	if len(f.Script.Reviews) == 0 {
		return pipeline.ReviewResult{Verdict: pipeline.VerdictApproved}, nil
	}
	return f.Script.Reviews[min(n, len(f.Script.Reviews)-1)], nil
}

// Apply implements pipeline.FixApplier.
func (f *Fake) Apply(ctx context.Context, finding pipeline.Finding) bool {
	var n int
	f.Calls.record("apply", func() {
		n = len(f.Calls.Fixed)
		f.Calls.Fixed = append(f.Calls.Fixed, finding)
		unit, _ := pipeline.UnitFromContext(ctx)
		f.UnitsSeen = append(f.UnitsSeen, unit)
	})
	if err := f.block(ctx, "apply"); err != nil {
		return false
	}
	if n < len(f.Script.FixResults) {
		return f.Script.FixResults[n]
	}
	return true
}

// Merge implements pipeline.MergeExecutor.
func (f *Fake) Merge(ctx context.Context, unit pipeline.UnitID) (pipeline.MergeOutcome, error) {
	f.Calls.record("merge", func() { f.Calls.Merged = append(f.Calls.Merged, unit) })
	if err := f.block(ctx, "merge"); err != nil {
		return pipeline.MergeOutcome{}, err
	}
	if f.Script.MergeErr != nil {
		return pipeline.MergeOutcome{}, f.Script.MergeErr
	}
	return f.Script.Outcome, nil
}
