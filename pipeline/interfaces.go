/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import "context"

// CodeProducer generates a change set from a feature description.
type CodeProducer interface {
	Generate(ctx context.Context, description string) (ChangeSet, error)
}

// ChangePublisher publishes a change set as a reviewable unit.
type ChangePublisher interface {
	Publish(ctx context.Context, changes ChangeSet) (UnitID, error)
}

// ReviewService analyzes a reviewable unit and reports findings.
type ReviewService interface {
	Analyze(ctx context.Context, unit UnitID, instructions string) (ReviewResult, error)
}

// FixApplier attempts to remediate a single finding.
// It reports false on any failure and never returns an error.
type FixApplier interface {
	Apply(ctx context.Context, finding Finding) bool
}

// MergeExecutor finalizes a reviewable unit.
type MergeExecutor interface {
	Merge(ctx context.Context, unit UnitID) (MergeOutcome, error)
}

// Collaborators bundles the capabilities an Orchestrator drives.
// All fields are required.
type Collaborators struct {
	Producer  CodeProducer
	Publisher ChangePublisher
	Reviewer  ReviewService
	Fixer     FixApplier
	Merger    MergeExecutor
}

// FixApplierFunc adapts a function to FixApplier.
type FixApplierFunc func(ctx context.Context, finding Finding) bool

// Apply implements FixApplier.
func (f FixApplierFunc) Apply(ctx context.Context, finding Finding) bool {
	return f(ctx, finding)
}
