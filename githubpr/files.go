/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubpr

import (
	"context"
	"errors"
	"fmt"

	"chainguard.dev/reviewflow/pipeline"
	"github.com/google/go-github/v84/github"
)

// Files reads and commits files on the head branch of a pull request.
type Files struct {
	ws     *Workspace
	client *github.Client
}

// NewFiles creates a Files store.
func NewFiles(ws *Workspace, client *github.Client) (*Files, error) {
	if ws == nil {
		return nil, errors.New("workspace cannot be nil")
	}
	if client == nil {
		return nil, errors.New("github client cannot be nil")
	}
	return &Files{ws: ws, client: client}, nil
}

// head resolves the head branch of the pull request behind unit.
func (f *Files) head(ctx context.Context, unit pipeline.UnitID) (owner, repo, branch string, err error) {
	owner, repo, number, err := ParseUnitID(unit)
	if err != nil {
		return "", "", "", err
	}
	if owner != f.ws.owner || repo != f.ws.repo {
		return "", "", "", fmt.Errorf("unit %s is not in %s/%s", unit, f.ws.owner, f.ws.repo)
	}
	pr, _, err := f.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return "", "", "", fmt.Errorf("fetching pull request: %w", err)
	}
	branch = pr.GetHead().GetRef()
	if branch == "" {
		return "", "", "", fmt.Errorf("pull request %s has no head branch", unit)
	}
	return owner, repo, branch, nil
}

// ReadFile returns the content of path at the pull request head.
func (f *Files) ReadFile(ctx context.Context, unit pipeline.UnitID, path string) (string, error) {
	owner, repo, branch, err := f.head(ctx, unit)
	if err != nil {
		return "", err
	}
	file, _, _, err := f.client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		return "", fmt.Errorf("getting %s: %w", path, err)
	}
	if file == nil {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return file.GetContent()
}

// WriteFile commits content to path on the pull request head branch.
func (f *Files) WriteFile(ctx context.Context, unit pipeline.UnitID, path, content, message string) error {
	_, _, branch, err := f.head(ctx, unit)
	if err != nil {
		return err
	}

	lease, err := f.ws.Checkout(ctx, branch)
	if err != nil {
		return fmt.Errorf("checking out %s: %w", branch, err)
	}
	defer lease.Release(ctx)

	_, err = lease.Update(ctx, branch, message, false, func(l *Lease) error {
		return l.Apply(pipeline.ChangeSet{Files: []pipeline.FileChange{{Path: path, Content: content}}})
	})
	return err
}
