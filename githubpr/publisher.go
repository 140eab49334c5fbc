/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubpr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"chainguard.dev/reviewflow/pipeline"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"github.com/google/uuid"
)

// DefaultTitleTemplate renders the pull request title from a pipeline.ChangeSet.
var DefaultTitleTemplate = template.Must(template.New("title").Parse(`{{ .Title }}`))

// DefaultBodyTemplate renders the pull request body from a pipeline.ChangeSet.
var DefaultBodyTemplate = template.Must(template.New("body").Parse(`{{ with .Summary }}{{ . }}

{{ end }}### Changed files
{{ range .Files }}
- {{ if .Delete }}~~{{ .Path }}~~ (deleted){{ else }}` + "`{{ .Path }}`" + `{{ end }}{{ end }}
`))

// Publisher pushes change sets to a fresh branch and opens a pull request for each.
type Publisher struct {
	ws     *Workspace
	client *github.Client
	base   string
	labels []string
	title  *template.Template
	body   *template.Template
	suffix func() string
}

var _ pipeline.ChangePublisher = (*Publisher)(nil)

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher) error

// WithLabels adds labels to every opened pull request.
func WithLabels(labels ...string) PublisherOption {
	return func(p *Publisher) error {
		p.labels = append(p.labels, labels...)
		return nil
	}
}

// WithTemplates overrides the title and body templates. Both execute with a pipeline.ChangeSet.
func WithTemplates(title, body *template.Template) PublisherOption {
	return func(p *Publisher) error {
		if title == nil || body == nil {
			return errors.New("templates cannot be nil")
		}
		p.title, p.body = title, body
		return nil
	}
}

// NewPublisher creates a Publisher that opens pull requests against base.
func NewPublisher(ws *Workspace, client *github.Client, base string, opts ...PublisherOption) (*Publisher, error) {
	switch {
	case ws == nil:
		return nil, errors.New("workspace cannot be nil")
	case client == nil:
		return nil, errors.New("github client cannot be nil")
	case base == "":
		return nil, errors.New("base branch cannot be empty")
	}
	p := &Publisher{
		ws:     ws,
		client: client,
		base:   base,
		title:  DefaultTitleTemplate,
		body:   DefaultBodyTemplate,
		suffix: func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Publish implements pipeline.ChangePublisher.
func (p *Publisher) Publish(ctx context.Context, changes pipeline.ChangeSet) (pipeline.UnitID, error) {
	if len(changes.Files) == 0 {
		return "", errors.New("change set has no files")
	}

	title, err := render(p.title, changes)
	if err != nil {
		return "", fmt.Errorf("rendering title: %w", err)
	}
	body, err := render(p.body, changes)
	if err != nil {
		return "", fmt.Errorf("rendering body: %w", err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errors.New("pull request title cannot be empty")
	}

	branch := fmt.Sprintf("%s/%s-%s", slug(p.ws.identity), slug(title), p.suffix())
	log := clog.FromContext(ctx).With("branch", branch)

	lease, err := p.ws.Checkout(ctx, p.base)
	if err != nil {
		return "", fmt.Errorf("checking out %s: %w", p.base, err)
	}
	defer lease.Release(ctx)

	sha, err := lease.Update(ctx, branch, title, true, func(l *Lease) error {
		return l.Apply(changes)
	})
	if err != nil {
		return "", err
	}
	log.With("sha", sha).Info("Pushed change set")

	owner, repo := p.ws.owner, p.ws.repo
	pr, _, err := p.client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
		Head:  github.Ptr(branch),
		Base:  github.Ptr(p.base),
	})
	if err != nil {
		p.discard(ctx, branch)
		return "", fmt.Errorf("creating pull request: %w", err)
	}

	if len(p.labels) > 0 {
		if _, _, err := p.client.Issues.AddLabelsToIssue(ctx, owner, repo, pr.GetNumber(), p.labels); err != nil {
			// Deleting the head branch also closes the pull request.
			p.discard(ctx, branch)
			return "", fmt.Errorf("adding labels: %w", err)
		}
	}

	log.With("number", pr.GetNumber()).With("url", pr.GetHTMLURL()).Info("Opened pull request")
	return FormatUnitID(owner, repo, pr.GetNumber()), nil
}

// discard deletes a pushed branch whose pull request could not be completed.
func (p *Publisher) discard(ctx context.Context, branch string) {
	if _, err := p.client.Git.DeleteRef(ctx, p.ws.owner, p.ws.repo, "heads/"+branch); err != nil {
		clog.FromContext(ctx).With("branch", branch).With("error", err.Error()).Warn("Failed to delete branch")
	}
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// slug turns a title into a short branch-safe name.
func slug(title string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(s) > 40 {
		s = strings.TrimRight(s[:40], "-")
	}
	if s == "" {
		return "change"
	}
	return s
}
