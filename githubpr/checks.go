/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubpr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/reviewflow/pipeline"
	"github.com/chainguard-dev/clog"
	"github.com/shurcooL/githubv4"
)

type gqlCheckRun struct {
	Name       string
	Conclusion string
	DetailsUrl string
	Title      string
	Summary    string
}

// CheckReviewer reports failing CI check runs on a pull request's head commit
// as findings.
type CheckReviewer struct {
	client *githubv4.Client
}

var _ pipeline.ReviewService = (*CheckReviewer)(nil)

// NewCheckReviewer creates a CheckReviewer.
func NewCheckReviewer(client *githubv4.Client) (*CheckReviewer, error) {
	if client == nil {
		return nil, errors.New("graphql client cannot be nil")
	}
	return &CheckReviewer{client: client}, nil
}

// Analyze implements pipeline.ReviewService. Instructions are not used; check
// runs have already decided what to look at.
func (c *CheckReviewer) Analyze(ctx context.Context, unit pipeline.UnitID, _ string) (pipeline.ReviewResult, error) {
	owner, repo, number, err := ParseUnitID(unit)
	if err != nil {
		return pipeline.ReviewResult{}, err
	}

	var query struct {
		Repository struct {
			PullRequest struct {
				HeadRefOid string
				Commits    struct {
					Nodes []struct {
						Commit struct {
							CheckSuites struct {
								Nodes []struct {
									FailedRuns struct {
										Nodes []gqlCheckRun
									} `graphql:"failedRuns: checkRuns(first: 100, filterBy: {conclusions: [FAILURE, TIMED_OUT, STARTUP_FAILURE]})"`
									PendingRuns struct {
										Nodes []gqlCheckRun
									} `graphql:"pendingRuns: checkRuns(first: 100, filterBy: {statuses: [QUEUED, IN_PROGRESS, WAITING, PENDING, REQUESTED]})"`
								}
							} `graphql:"checkSuites(first: 100)"`
						}
					}
				} `graphql:"commits(last: 1)"`
			} `graphql:"pullRequest(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}
	variables := map[string]any{
		"owner":  githubv4.String(owner),
		"repo":   githubv4.String(repo),
		"number": githubv4.Int(number),
	}
	if err := c.client.Query(ctx, &query, variables); err != nil {
		return pipeline.ReviewResult{}, fmt.Errorf("querying check runs: %w", err)
	}

	var (
		findings []pipeline.Finding
		pending  []string
	)
	for _, commit := range query.Repository.PullRequest.Commits.Nodes {
		for _, suite := range commit.Commit.CheckSuites.Nodes {
			for _, run := range suite.FailedRuns.Nodes {
				findings = append(findings, pipeline.Finding{
					Message:  describeRun(run),
					Severity: pipeline.SeverityHigh,
					Source:   "ci",
				})
			}
			for _, run := range suite.PendingRuns.Nodes {
				pending = append(pending, run.Name)
			}
		}
	}

	if len(pending) > 0 {
		clog.FromContext(ctx).With("unit", string(unit)).
			With("sha", query.Repository.PullRequest.HeadRefOid).
			With("pending", pending).
			Info("Some checks have not completed")
	}

	result := pipeline.ReviewResult{Findings: findings, Verdict: pipeline.VerdictApproved}
	if len(findings) > 0 {
		result.Verdict = pipeline.VerdictChangesRequested
	}
	return result, nil
}

// describeRun summarizes a failed check run in one finding message.
func describeRun(run gqlCheckRun) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CI check %q concluded %s", run.Name, strings.ToLower(run.Conclusion))
	if run.Title != "" {
		fmt.Fprintf(&sb, ": %s", run.Title)
	}
	if run.Summary != "" {
		fmt.Fprintf(&sb, "\n%s", run.Summary)
	}
	if run.DetailsUrl != "" {
		fmt.Fprintf(&sb, "\nDetails: %s", run.DetailsUrl)
	}
	return sb.String()
}
