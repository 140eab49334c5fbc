/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package review composes review services.
package review

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/reviewflow/pipeline"
	"golang.org/x/sync/errgroup"
)

// Combined asks several review services about the same unit and merges their
// findings in reviewer order. It fails if any reviewer fails.
type Combined struct {
	reviewers []pipeline.ReviewService
}

var _ pipeline.ReviewService = (*Combined)(nil)

// NewCombined creates a Combined reviewer. At least one reviewer is required.
func NewCombined(reviewers ...pipeline.ReviewService) (*Combined, error) {
	if len(reviewers) == 0 {
		return nil, errors.New("at least one reviewer is required")
	}
	for i, r := range reviewers {
		if r == nil {
			return nil, fmt.Errorf("reviewer %d cannot be nil", i)
		}
	}
	return &Combined{reviewers: reviewers}, nil
}

// Analyze implements pipeline.ReviewService. Reviewers run concurrently and
// the first failure cancels the rest.
func (c *Combined) Analyze(ctx context.Context, unit pipeline.UnitID, instructions string) (pipeline.ReviewResult, error) {
	results := make([]pipeline.ReviewResult, len(c.reviewers))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range c.reviewers {
		g.Go(func() error {
			res, err := r.Analyze(gctx, unit, instructions)
			if err != nil {
				return fmt.Errorf("reviewer %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return pipeline.ReviewResult{}, err
	}

	combined := pipeline.ReviewResult{Verdict: pipeline.VerdictApproved}
	for _, res := range results {
		combined.Findings = append(combined.Findings, res.Findings...)
		if res.Verdict == pipeline.VerdictChangesRequested {
			combined.Verdict = pipeline.VerdictChangesRequested
		}
	}
	if len(combined.Findings) > 0 {
		combined.Verdict = pipeline.VerdictChangesRequested
	}
	return combined, nil
}
