/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubpr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"chainguard.dev/reviewflow/pipeline"
	"chainguard.dev/reviewflow/retry"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
)

// Merger merges pull requests once the pipeline decides they are done.
type Merger struct {
	client *github.Client
	method string
	policy retry.Policy
}

var _ pipeline.MergeExecutor = (*Merger)(nil)

// MergerOption configures a Merger.
type MergerOption func(*Merger) error

// WithMergeMethod selects "merge", "squash", or "rebase".
func WithMergeMethod(method string) MergerOption {
	return func(m *Merger) error {
		switch method {
		case "merge", "squash", "rebase":
			m.method = method
			return nil
		default:
			return fmt.Errorf("unknown merge method %q", method)
		}
	}
}

// WithMergeRetry overrides the retry policy for transient GitHub errors.
func WithMergeRetry(p retry.Policy) MergerOption {
	return func(m *Merger) error {
		if err := p.Validate(); err != nil {
			return err
		}
		m.policy = p
		return nil
	}
}

// NewMerger creates a Merger. The default method is squash.
func NewMerger(client *github.Client, opts ...MergerOption) (*Merger, error) {
	if client == nil {
		return nil, errors.New("github client cannot be nil")
	}
	m := &Merger{client: client, method: "squash", policy: retry.Default()}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Merge implements pipeline.MergeExecutor. Conditions GitHub reports about the
// pull request itself become outcomes; only transport and API failures are errors.
func (m *Merger) Merge(ctx context.Context, unit pipeline.UnitID) (pipeline.MergeOutcome, error) {
	owner, repo, number, err := ParseUnitID(unit)
	if err != nil {
		return pipeline.MergeOutcome{}, err
	}
	log := clog.FromContext(ctx).With("unit", string(unit))

	pr, err := retry.Do(ctx, m.policy, "get_pull_request", transientGitHub, func(ctx context.Context) (*github.PullRequest, error) {
		pr, _, err := m.client.PullRequests.Get(ctx, owner, repo, number)
		return pr, err
	})
	if err != nil {
		return pipeline.MergeOutcome{}, fmt.Errorf("fetching pull request: %w", err)
	}

	switch {
	case pr.GetMerged():
		return pipeline.MergeOutcome{
			Status:  pipeline.MergeStatusMerged,
			SHA:     pr.GetMergeCommitSHA(),
			Message: "already merged",
		}, nil
	case pr.GetState() == "closed":
		return pipeline.MergeOutcome{Status: pipeline.MergeStatusFailed, Message: "closed without merging"}, nil
	case pr.Mergeable != nil && !pr.GetMergeable():
		return pipeline.MergeOutcome{
			Status:  pipeline.MergeStatusBlocked,
			Message: fmt.Sprintf("not mergeable (state %q)", pr.GetMergeableState()),
		}, nil
	}

	result, err := retry.Do(ctx, m.policy, "merge_pull_request", transientGitHub, func(ctx context.Context) (*github.PullRequestMergeResult, error) {
		res, _, err := m.client.PullRequests.Merge(ctx, owner, repo, number, "", &github.PullRequestOptions{
			MergeMethod: m.method,
		})
		return res, err
	})
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil {
			switch ghErr.Response.StatusCode {
			case http.StatusMethodNotAllowed, http.StatusConflict:
				log.With("status", ghErr.Response.StatusCode).Warn("GitHub refused the merge")
				return pipeline.MergeOutcome{Status: pipeline.MergeStatusBlocked, Message: ghErr.Message}, nil
			}
		}
		return pipeline.MergeOutcome{}, fmt.Errorf("merging pull request: %w", err)
	}

	if !result.GetMerged() {
		return pipeline.MergeOutcome{Status: pipeline.MergeStatusFailed, Message: result.GetMessage()}, nil
	}
	log.With("sha", result.GetSHA()).Info("Merged pull request")
	return pipeline.MergeOutcome{
		Status:  pipeline.MergeStatusMerged,
		SHA:     result.GetSHA(),
		Message: result.GetMessage(),
	}, nil
}

// transientGitHub reports rate limits and server errors from the GitHub API.
func transientGitHub(err error) bool {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return retry.RetryableStatus(ghErr.Response.StatusCode) ||
			ghErr.Response.StatusCode == http.StatusInternalServerError
	}
	return false
}
