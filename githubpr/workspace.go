/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubpr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"chainguard.dev/reviewflow/pipeline"
	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"golang.org/x/oauth2"
)

const cloneDirPrefix = "reviewflow-clone-"

// remoteURL resolves the git remote of a repository. Tests point it at local repositories.
var remoteURL = func(owner, repo string) string {
	return fmt.Sprintf("https://github.com/%s/%s", owner, repo)
}

// Workspace keeps a pool of clones of one repository. Each Checkout leases a
// clone positioned at the tip of a remote branch.
type Workspace struct {
	tokenSource oauth2.TokenSource
	identity    string
	owner, repo string

	mu   sync.Mutex
	idle []*clone
}

type clone struct {
	dir  string
	repo *git.Repository
}

// NewWorkspace creates a Workspace for owner/repo. The token source must allow
// cloning and pushing. Identity is the commit author name; without a domain
// its slug is suffixed with @users.noreply.github.com to form the email.
func NewWorkspace(tokenSource oauth2.TokenSource, identity, owner, repo string) (*Workspace, error) {
	switch {
	case tokenSource == nil:
		return nil, errors.New("token source cannot be nil")
	case strings.TrimSpace(identity) == "":
		return nil, errors.New("identity cannot be empty")
	case owner == "" || repo == "":
		return nil, errors.New("owner and repo cannot be empty")
	}
	return &Workspace{
		tokenSource: tokenSource,
		identity:    strings.TrimSpace(identity),
		owner:       owner,
		repo:        repo,
	}, nil
}

// Owner returns the repository owner.
func (w *Workspace) Owner() string { return w.owner }

// Repo returns the repository name.
func (w *Workspace) Repo() string { return w.repo }

// Lease is a clone checked out at a branch tip. Callers must Release it.
type Lease struct {
	ws     *Workspace
	clone  *clone
	branch string
	head   plumbing.Hash
}

// Checkout leases a clone and checks out the tip of branch on the remote.
func (w *Workspace) Checkout(ctx context.Context, branch string) (*Lease, error) {
	if branch == "" {
		return nil, errors.New("branch cannot be empty")
	}

	cl, err := w.acquire(ctx, branch)
	if err != nil {
		return nil, err
	}

	head, err := w.sync(ctx, cl, branch)
	if err != nil {
		clog.FromContext(ctx).With("error", err.Error()).Warn("Discarding clone after sync failure")
		os.RemoveAll(cl.dir)
		return nil, err
	}
	return &Lease{ws: w, clone: cl, branch: branch, head: head}, nil
}

// acquire takes the oldest idle clone, or clones anew when none are idle.
func (w *Workspace) acquire(ctx context.Context, branch string) (*clone, error) {
	w.mu.Lock()
	if len(w.idle) > 0 {
		cl := w.idle[0]
		w.idle = w.idle[1:]
		w.mu.Unlock()
		return cl, nil
	}
	w.mu.Unlock()

	dir, err := os.MkdirTemp("", cloneDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}

	auth, err := w.auth()
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	remote := remoteURL(w.owner, w.repo)
	clog.FromContext(ctx).With("remote", remote).With("dir", dir).Info("Cloning repository")
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           remote,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("cloning %s: %w", remote, err)
	}
	return &clone{dir: dir, repo: repo}, nil
}

// sync fetches branch and force checks out its remote tip on a clean tree.
func (w *Workspace) sync(ctx context.Context, cl *clone, branch string) (plumbing.Hash, error) {
	wt, err := cl.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("getting worktree: %w", err)
	}
	if err := scrub(wt); err != nil {
		return plumbing.ZeroHash, err
	}

	auth, err := w.auth()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	spec := gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", branch, branch))
	if err := cl.repo.FetchContext(ctx, &git.FetchOptions{RefSpecs: []gitconfig.RefSpec{spec}, Auth: auth}); err != nil &&
		!errors.Is(err, git.NoErrAlreadyUpToDate) {
		return plumbing.ZeroHash, fmt.Errorf("fetching %s: %w", branch, err)
	}

	ref, err := cl.repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolving origin/%s: %w", branch, err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: ref.Hash(), Force: true}); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("checking out %s: %w", branch, err)
	}
	return ref.Hash(), nil
}

func scrub(wt *git.Worktree) error {
	if err := wt.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
		return fmt.Errorf("resetting worktree: %w", err)
	}
	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return fmt.Errorf("cleaning worktree: %w", err)
	}
	return nil
}

func (w *Workspace) auth() (*githttp.BasicAuth, error) {
	token, err := w.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}
	return &githttp.BasicAuth{
		Username: "unused-when-using-access-tokens",
		Password: token.AccessToken,
	}, nil
}

// Layout lists the files tracked at the tip of branch.
func (w *Workspace) Layout(ctx context.Context, branch string) ([]string, error) {
	lease, err := w.Checkout(ctx, branch)
	if err != nil {
		return nil, err
	}
	defer lease.Release(ctx)
	return lease.Files()
}

// Head returns the commit the lease was checked out at.
func (l *Lease) Head() string { return l.head.String() }

// Branch returns the remote branch the lease was checked out from.
func (l *Lease) Branch() string { return l.branch }

// Dir returns the working tree root.
func (l *Lease) Dir() string { return l.clone.dir }

// Files lists the tracked files at the lease head, sorted.
func (l *Lease) Files() ([]string, error) {
	commit, err := l.clone.repo.CommitObject(l.head)
	if err != nil {
		return nil, fmt.Errorf("loading commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading tree: %w", err)
	}
	var files []string
	if err := tree.Files().ForEach(func(f *object.File) error {
		files = append(files, f.Name)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("walking tree: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile reads a file from the working tree.
func (l *Lease) ReadFile(path string) (string, error) {
	full, err := l.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// resolve maps a repository-relative path into the working tree, rejecting escapes.
func (l *Lease) resolve(path string) (string, error) {
	full := filepath.Join(l.clone.dir, filepath.Clean(filepath.FromSlash(path)))
	rel, err := filepath.Rel(l.clone.dir, full)
	if err != nil {
		return "", fmt.Errorf("path %q: %w", path, err)
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q escapes the working tree", path)
	}
	if first, _, _ := strings.Cut(filepath.ToSlash(rel), "/"); strings.EqualFold(first, git.GitDirName) {
		return "", fmt.Errorf("path %q is inside the git directory", path)
	}
	return full, nil
}

// Apply writes or deletes the files of a change set and stages them.
func (l *Lease) Apply(changes pipeline.ChangeSet) error {
	wt, err := l.clone.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	for _, f := range changes.Files {
		full, err := l.resolve(f.Path)
		if err != nil {
			return err
		}
		if f.Delete {
			if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("deleting %s: %w", f.Path, err)
			}
			if _, err := wt.Remove(f.Path); err != nil && !errors.Is(err, index.ErrEntryNotFound) {
				return fmt.Errorf("staging deletion of %s: %w", f.Path, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(full, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", f.Path, err)
		}
		if _, err := wt.Add(f.Path); err != nil {
			return fmt.Errorf("staging %s: %w", f.Path, err)
		}
	}
	return nil
}

// Update creates branch at the lease head, lets edit stage changes, commits
// them, and pushes the branch. With force the remote branch is overwritten;
// without, the push must fast-forward. It returns the new commit.
func (l *Lease) Update(ctx context.Context, branch, message string, force bool, edit func(*Lease) error) (string, error) {
	switch {
	case branch == "":
		return "", errors.New("branch cannot be empty")
	case strings.TrimSpace(message) == "":
		return "", errors.New("commit message cannot be empty")
	case edit == nil:
		return "", errors.New("edit function cannot be nil")
	}

	repo := l.clone.repo
	ref := plumbing.NewBranchReferenceName(branch)
	if err := repo.Storer.SetReference(plumbing.NewHashReference(ref, l.head)); err != nil {
		return "", fmt.Errorf("creating branch %s: %w", branch, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: ref, Force: true}); err != nil {
		return "", fmt.Errorf("checking out %s: %w", branch, err)
	}

	if err := edit(l); err != nil {
		return "", fmt.Errorf("applying changes: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("getting status: %w", err)
	}
	if status.IsClean() {
		return "", errors.New("nothing to commit")
	}

	email := l.ws.identity
	if !strings.Contains(email, "@") {
		email = slug(email) + "@users.noreply.github.com"
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: l.ws.identity, Email: email, When: time.Now()},
	})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}

	auth, err := l.ws.auth()
	if err != nil {
		return "", err
	}
	spec := gitconfig.RefSpec(fmt.Sprintf("%s:%s", ref, ref))
	clog.FromContext(ctx).With("refspec", string(spec)).With("force", force).Info("Pushing branch")
	if err := repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{spec},
		Auth:       auth,
		Force:      force,
	}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", fmt.Errorf("pushing %s: %w", branch, err)
	}

	l.head = hash
	return hash.String(), nil
}

// Release scrubs the working tree and returns the clone to the pool.
// A clone that cannot be scrubbed is discarded.
func (l *Lease) Release(ctx context.Context) {
	if l.clone == nil {
		return
	}
	cl := l.clone
	l.clone = nil

	wt, err := cl.repo.Worktree()
	if err == nil {
		err = scrub(wt)
	}
	if err != nil {
		clog.FromContext(ctx).With("error", err.Error()).Warn("Discarding clone")
		os.RemoveAll(cl.dir)
		return
	}

	l.ws.mu.Lock()
	l.ws.idle = append(l.ws.idle, cl)
	l.ws.mu.Unlock()
}

// Close removes every idle clone from disk.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, cl := range w.idle {
		errs = append(errs, os.RemoveAll(cl.dir))
	}
	w.idle = nil
	return errors.Join(errs...)
}
