/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultInstructions is the review focus sent with every Analyze call.
const DefaultInstructions = "Check for best practices, security issues, and performance"

// ReReviewPolicy decides what the second review's result means for the merge.
type ReReviewPolicy int

const (
	// MergeRegardless observes the second review but always proceeds to merge.
	MergeRegardless ReReviewPolicy = iota
	// BlockOnUnresolved skips the merge when the second review still has findings.
	BlockOnUnresolved
)

func (p ReReviewPolicy) String() string {
	switch p {
	case MergeRegardless:
		return "merge-regardless"
	case BlockOnUnresolved:
		return "block-on-unresolved"
	default:
		return fmt.Sprintf("ReReviewPolicy(%d)", int(p))
	}
}

// ParseReReviewPolicy parses the names produced by ReReviewPolicy.String.
func ParseReReviewPolicy(s string) (ReReviewPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "merge-regardless":
		return MergeRegardless, nil
	case "block-on-unresolved":
		return BlockOnUnresolved, nil
	default:
		return 0, fmt.Errorf("unknown re-review policy %q", s)
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithObserver sets the observer that receives progress events.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) error {
		if obs == nil {
			return errors.New("observer cannot be nil")
		}
		o.observer = obs
		return nil
	}
}

// WithInstructions overrides the review instructions.
func WithInstructions(instructions string) Option {
	return func(o *Orchestrator) error {
		if strings.TrimSpace(instructions) == "" {
			return errors.New("instructions cannot be empty")
		}
		o.instructions = instructions
		return nil
	}
}

// WithStepTimeout bounds every collaborator call. Zero disables the bound.
func WithStepTimeout(d time.Duration) Option {
	return func(o *Orchestrator) error {
		if d < 0 {
			return errors.New("step timeout cannot be negative")
		}
		o.defaultTimeout = d
		return nil
	}
}

// WithStepTimeouts bounds collaborator calls for specific steps, overriding WithStepTimeout.
func WithStepTimeouts(timeouts map[Step]time.Duration) Option {
	return func(o *Orchestrator) error {
		for step, d := range timeouts {
			if d < 0 {
				return fmt.Errorf("timeout for step %s cannot be negative", step)
			}
			if step.Terminal() {
				return fmt.Errorf("step %s has no collaborator to time out", step)
			}
			o.timeouts[step] = d
		}
		return nil
	}
}

// WithReReviewPolicy sets how the second review gates the merge.
func WithReReviewPolicy(p ReReviewPolicy) Option {
	return func(o *Orchestrator) error {
		switch p {
		case MergeRegardless, BlockOnUnresolved:
			o.policy = p
			return nil
		default:
			return fmt.Errorf("unknown re-review policy %v", p)
		}
	}
}

// WithRunIDs replaces the run id generator.
func WithRunIDs(next func() string) Option {
	return func(o *Orchestrator) error {
		if next == nil {
			return errors.New("run id generator cannot be nil")
		}
		o.runID = next
		return nil
	}
}

// WithClock injects a clock for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		o.now = now
		return nil
	}
}
