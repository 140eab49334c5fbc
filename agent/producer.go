/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"chainguard.dev/reviewflow/pipeline"
	"chainguard.dev/reviewflow/prompt"
	"github.com/chainguard-dev/clog"
)

const producerSystem = `You are a senior software engineer implementing features in an existing repository.
Reply with a single JSON object and nothing else, using this shape:
{"title": "short pull request title", "summary": "what changed and why", "files": [{"path": "relative/path", "content": "full new file content"}]}
Set "delete": true on a file entry to remove that file. Paths are relative to the repository root.`

var producerPrompt = prompt.Must(prompt.Parse(`Implement the following feature in {{repository}}.

<feature>
{{description}}
</feature>

Repository layout:
{{layout}}`))

// Producer generates change sets with a model.
type Producer struct {
	model      Model
	repository string
	layout     []string
}

var _ pipeline.CodeProducer = (*Producer)(nil)

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithRepository names the repository in the prompt.
func WithRepository(name string) ProducerOption {
	return func(p *Producer) { p.repository = name }
}

// WithLayout lists existing repository paths in the prompt.
func WithLayout(paths []string) ProducerOption {
	return func(p *Producer) { p.layout = paths }
}

// NewProducer creates a Producer.
func NewProducer(m Model, opts ...ProducerOption) (*Producer, error) {
	if m == nil {
		return nil, errors.New("model cannot be nil")
	}
	p := &Producer{model: m, repository: "the repository"}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Generate implements pipeline.CodeProducer.
func (p *Producer) Generate(ctx context.Context, description string) (pipeline.ChangeSet, error) {
	log := clog.FromContext(ctx).With("model", p.model.Name())

	layout := "(not provided)"
	if len(p.layout) > 0 {
		layout = strings.Join(p.layout, "\n")
	}
	text, err := producerPrompt.Render(prompt.Values{
		"repository":  prompt.Text(p.repository),
		"description": prompt.Text(description),
		"layout":      prompt.Text(layout),
	})
	if err != nil {
		return pipeline.ChangeSet{}, fmt.Errorf("rendering prompt: %w", err)
	}

	resp, err := p.model.Complete(ctx, Request{System: producerSystem, Prompt: text, Temperature: 0.2})
	if err != nil {
		return pipeline.ChangeSet{}, fmt.Errorf("generating changes: %w", err)
	}

	changes, err := decode[pipeline.ChangeSet](resp.Text)
	if err != nil {
		log.With("response", resp.Text).Warn("Unparseable change set from model")
		return pipeline.ChangeSet{}, err
	}
	if err := validateChangeSet(&changes); err != nil {
		return pipeline.ChangeSet{}, err
	}
	if changes.Title == "" {
		changes.Title = title(description)
	}

	log.With("files", len(changes.Files)).Info("Generated change set")
	return changes, nil
}

// validateChangeSet rejects empty change sets and paths outside the repository.
func validateChangeSet(c *pipeline.ChangeSet) error {
	if len(c.Files) == 0 {
		return errors.New("model produced no file changes")
	}
	seen := make(map[string]bool, len(c.Files))
	for i, f := range c.Files {
		clean, err := cleanPath(f.Path)
		if err != nil {
			return fmt.Errorf("file %d: %w", i, err)
		}
		if seen[clean] {
			return fmt.Errorf("file %d: duplicate path %q", i, clean)
		}
		seen[clean] = true
		c.Files[i].Path = clean
	}
	return nil
}

func cleanPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.New("empty path")
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("path %q must be relative", p)
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path %q escapes the repository", p)
	}
	if first, _, _ := strings.Cut(clean, "/"); strings.EqualFold(first, ".git") {
		return "", fmt.Errorf("path %q is inside the git directory", p)
	}
	return clean, nil
}

// title derives a pull request title from the first line of a description.
func title(description string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(description), "\n")
	if r := []rune(line); len(r) > 72 {
		line = string(r[:69]) + "..."
	}
	return line
}
