/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/reviewflow/pipeline"
	"chainguard.dev/reviewflow/prompt"
	"github.com/chainguard-dev/clog"
)

// FileStore reads and updates files on the branch of a published unit.
type FileStore interface {
	ReadFile(ctx context.Context, unit pipeline.UnitID, path string) (string, error)
	WriteFile(ctx context.Context, unit pipeline.UnitID, path, content, message string) error
}

const fixerSystem = `You are a senior software engineer addressing code review feedback.
You receive one review finding and the current content of the file it refers to.
Reply with a single JSON object and nothing else: {"content": "the full corrected file", "explanation": "one sentence"}.
Change only what the finding requires.`

var fixerPrompt = prompt.Must(prompt.Parse(`Resolve this review finding:
{{finding}}

Current content of {{path}}:
<file>
{{content}}
</file>`))

type fixReply struct {
	Content     string `json:"content"`
	Explanation string `json:"explanation"`
}

// Fixer resolves findings by rewriting the referenced file with a model and
// committing the result to the unit's branch.
type Fixer struct {
	model Model
	files FileStore
}

var _ pipeline.FixApplier = (*Fixer)(nil)

// NewFixer creates a Fixer.
func NewFixer(m Model, files FileStore) (*Fixer, error) {
	if m == nil {
		return nil, errors.New("model cannot be nil")
	}
	if files == nil {
		return nil, errors.New("file store cannot be nil")
	}
	return &Fixer{model: m, files: files}, nil
}

// Apply implements pipeline.FixApplier. Every failure is logged and reported as false.
func (f *Fixer) Apply(ctx context.Context, finding pipeline.Finding) bool {
	log := clog.FromContext(ctx).With("finding", finding.Message)
	if err := f.apply(ctx, finding); err != nil {
		log.With("error", err.Error()).Warn("Could not apply fix")
		return false
	}
	log.Info("Applied fix")
	return true
}

func (f *Fixer) apply(ctx context.Context, finding pipeline.Finding) error {
	unit, ok := pipeline.UnitFromContext(ctx)
	if !ok {
		return errors.New("no unit in context")
	}
	if finding.Location == nil || finding.Location.Path == "" {
		return errors.New("finding has no file location")
	}
	path, err := cleanPath(finding.Location.Path)
	if err != nil {
		return err
	}

	current, err := f.files.ReadFile(ctx, unit, path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	text, err := fixerPrompt.Render(prompt.Values{
		"finding": prompt.JSON(finding),
		"path":    prompt.Text(path),
		"content": prompt.Text(current),
	})
	if err != nil {
		return fmt.Errorf("rendering prompt: %w", err)
	}

	resp, err := f.model.Complete(ctx, Request{System: fixerSystem, Prompt: text, Temperature: 0.1})
	if err != nil {
		return err
	}
	reply, err := decode[fixReply](resp.Text)
	if err != nil {
		return err
	}
	if reply.Content == "" {
		return errors.New("model returned empty file content")
	}
	if reply.Content == current {
		return errors.New("model left the file unchanged")
	}

	message := fmt.Sprintf("Fix: %s", finding.Message)
	if reply.Explanation != "" {
		message += "\n\n" + reply.Explanation
	}
	if err := f.files.WriteFile(ctx, unit, path, reply.Content, message); err != nil {
		return fmt.Errorf("committing %s: %w", path, err)
	}
	return nil
}
