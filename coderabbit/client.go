/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package coderabbit is a review service backed by the CodeRabbit review API.
package coderabbit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"chainguard.dev/reviewflow/githubpr"
	"chainguard.dev/reviewflow/pipeline"
	"chainguard.dev/reviewflow/retry"
	"github.com/chainguard-dev/clog"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the public CodeRabbit API.
const DefaultBaseURL = "https://api.coderabbit.ai/api/v1"

// Source tags findings reported by this client.
const Source = "coderabbit"

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 << 10

// Client requests pull request reviews from CodeRabbit.
type Client struct {
	http    *http.Client
	baseURL string
	policy  retry.Policy
}

var _ pipeline.ReviewService = (*Client)(nil)

// Option configures a Client.
type Option func(*Client) error

// WithBaseURL points the client at another API root.
func WithBaseURL(base string) Option {
	return func(c *Client) error {
		base = strings.TrimRight(strings.TrimSpace(base), "/")
		if base == "" {
			return errors.New("base url cannot be empty")
		}
		c.baseURL = base
		return nil
	}
}

// WithRetryPolicy overrides the retry policy for rate limits and server errors.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) error {
		if err := p.Validate(); err != nil {
			return err
		}
		c.policy = p
		return nil
	}
}

// WithHTTPClient sets the transport used underneath the bearer token.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		c.http = hc
		return nil
	}
}

// New creates a Client authenticating with apiKey.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key cannot be empty")
	}
	c := &Client{
		http:    http.DefaultClient,
		baseURL: DefaultBaseURL,
		policy:  retry.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	// oauth2.NewClient picks the base transport out of the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	c.http = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: apiKey,
		TokenType:   "Bearer",
	}))
	return c, nil
}

type reviewRequest struct {
	Repository         string `json:"repository"`
	PullRequestNumber  int    `json:"pullRequestNumber"`
	ReviewInstructions string `json:"reviewInstructions,omitempty"`
}

type reviewResponse struct {
	Verdict string  `json:"verdict"`
	Issues  []issue `json:"issues"`
}

type issue struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Analyze implements pipeline.ReviewService.
func (c *Client) Analyze(ctx context.Context, unit pipeline.UnitID, instructions string) (pipeline.ReviewResult, error) {
	owner, repo, number, err := githubpr.ParseUnitID(unit)
	if err != nil {
		return pipeline.ReviewResult{}, err
	}
	body, err := json.Marshal(reviewRequest{
		Repository:         owner + "/" + repo,
		PullRequestNumber:  number,
		ReviewInstructions: instructions,
	})
	if err != nil {
		return pipeline.ReviewResult{}, fmt.Errorf("encoding request: %w", err)
	}

	resp, err := retry.Do(ctx, c.policy, "coderabbit_review", transient, func(ctx context.Context) (reviewResponse, error) {
		return c.post(ctx, "/pull-requests/review", body)
	})
	if err != nil {
		return pipeline.ReviewResult{}, fmt.Errorf("requesting review: %w", err)
	}

	result := toResult(resp)
	clog.FromContext(ctx).With("unit", string(unit)).
		With("verdict", string(result.Verdict)).
		With("findings", len(result.Findings)).
		Info("CodeRabbit review received")
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (reviewResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return reviewResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return reviewResponse{}, err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return reviewResponse{}, &retry.StatusError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var out reviewResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return reviewResponse{}, fmt.Errorf("decoding response: %w", err)
	}
	return out, nil
}

// transient retries rate limits and every server error.
func transient(err error) bool {
	var se *retry.StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= http.StatusInternalServerError
}

// toResult maps the API response onto findings. A missing or unknown
// verdict is derived from whether any issues were reported.
func toResult(resp reviewResponse) pipeline.ReviewResult {
	findings := make([]pipeline.Finding, 0, len(resp.Issues))
	for _, is := range resp.Issues {
		f := pipeline.Finding{
			Message:  strings.TrimSpace(is.Message),
			Severity: pipeline.ParseSeverity(is.Severity),
			Source:   Source,
		}
		if is.File != "" {
			f.Location = &pipeline.Location{Path: is.File, Line: max(is.Line, 0)}
		}
		findings = append(findings, f)
	}

	verdict := pipeline.Verdict(strings.ToLower(strings.TrimSpace(resp.Verdict)))
	switch verdict {
	case pipeline.VerdictApproved, pipeline.VerdictChangesRequested:
	default:
		verdict = pipeline.VerdictApproved
		if len(findings) > 0 {
			verdict = pipeline.VerdictChangesRequested
		}
	}
	return pipeline.ReviewResult{Findings: findings, Verdict: verdict}
}
