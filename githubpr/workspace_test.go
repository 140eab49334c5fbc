/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubpr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chainguard.dev/reviewflow/pipeline"
	"github.com/google/go-cmp/cmp"
)

func TestNewWorkspace_Validation(t *testing.T) {
	if _, err := NewWorkspace(nil, "id", "o", "r"); err == nil {
		t.Error("nil token source: got = nil error")
	}
	if _, err := NewWorkspace(staticTokenSource(""), " ", "o", "r"); err == nil {
		t.Error("blank identity: got = nil error")
	}
	if _, err := NewWorkspace(staticTokenSource(""), "id", "", "r"); err == nil {
		t.Error("empty owner: got = nil error")
	}
}

func TestWorkspace_CheckoutAndReuse(t *testing.T) {
	ctx := context.Background()
	_, head := initOrigin(t)
	ws := newWorkspace(t)

	lease, err := ws.Checkout(ctx, "master")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if got := lease.Head(); got != head {
		t.Errorf("Head(): got = %s, wanted = %s", got, head)
	}
	if got, err := lease.ReadFile("auth/login.go"); err != nil || !strings.Contains(got, "func Login") {
		t.Errorf("ReadFile: got = %q, %v", got, err)
	}

	scratch := filepath.Join(lease.Dir(), "scratch.txt")
	if err := os.WriteFile(scratch, []byte("temporary"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	dir := lease.Dir()
	lease.Release(ctx)

	again, err := ws.Checkout(ctx, "feature")
	if err != nil {
		t.Fatalf("Checkout reuse: %v", err)
	}
	defer again.Release(ctx)
	if again.Dir() != dir {
		t.Errorf("Dir(): got = %s, wanted reused clone %s", again.Dir(), dir)
	}
	if again.Branch() != "feature" {
		t.Errorf("Branch(): got = %s, wanted = feature", again.Branch())
	}
	if _, err := os.Stat(scratch); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("scratch file survived release: %v", err)
	}
}

func TestWorkspace_Layout(t *testing.T) {
	initOrigin(t)
	ws := newWorkspace(t)

	got, err := ws.Layout(context.Background(), "master")
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if diff := cmp.Diff([]string{"README.md", "auth/login.go"}, got); diff != "" {
		t.Errorf("Layout (-want, +got): %s", diff)
	}
}

func TestLease_UpdatePushesBranch(t *testing.T) {
	ctx := context.Background()
	origin, _ := initOrigin(t)
	ws := newWorkspace(t)

	lease, err := ws.Checkout(ctx, "master")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	defer lease.Release(ctx)

	changes := pipeline.ChangeSet{Files: []pipeline.FileChange{
		{Path: "auth/session.go", Content: "package auth\n"},
		{Path: "README.md", Delete: true},
	}}
	sha, err := lease.Update(ctx, "reviewflow/add-sessions", "Add sessions", true, func(l *Lease) error {
		return l.Apply(changes)
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if sha != lease.Head() {
		t.Errorf("Head() after update: got = %s, wanted = %s", lease.Head(), sha)
	}

	content, msg := branchFile(t, origin, "reviewflow/add-sessions", "auth/session.go")
	if content != "package auth\n" {
		t.Errorf("pushed content: got = %q", content)
	}
	if msg != "Add sessions" {
		t.Errorf("commit message: got = %q, wanted = %q", msg, "Add sessions")
	}
	if readme, _ := branchFile(t, origin, "reviewflow/add-sessions", "README.md"); readme != "" {
		t.Errorf("README.md still present on branch: %q", readme)
	}
}

func TestLease_UpdateRejects(t *testing.T) {
	ctx := context.Background()
	initOrigin(t)
	ws := newWorkspace(t)

	lease, err := ws.Checkout(ctx, "master")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	defer lease.Release(ctx)

	noop := func(*Lease) error { return nil }
	if _, err := lease.Update(ctx, "b", "msg", true, noop); err == nil {
		t.Error("Update with no changes: got = nil error")
	}
	if _, err := lease.Update(ctx, "", "msg", true, noop); err == nil {
		t.Error("Update with empty branch: got = nil error")
	}
	escape := func(l *Lease) error {
		return l.Apply(pipeline.ChangeSet{Files: []pipeline.FileChange{{Path: "../outside", Content: "x"}}})
	}
	if _, err := lease.Update(ctx, "b", "msg", true, escape); err == nil {
		t.Error("Update escaping the tree: got = nil error")
	}
}

func TestLease_ApplyRejectsGitDir(t *testing.T) {
	ctx := context.Background()
	initOrigin(t)
	ws := newWorkspace(t)

	lease, err := ws.Checkout(ctx, "master")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	defer lease.Release(ctx)

	before, err := lease.clone.repo.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	wantURLs := before.Remotes["origin"].URLs

	for _, p := range []string{".git/config", "auth/../.git/config", ".GIT/hooks/pre-push", ".git"} {
		err := lease.Apply(pipeline.ChangeSet{Files: []pipeline.FileChange{{
			Path:    p,
			Content: "[remote \"origin\"]\n\turl = https://elsewhere.example/repo\n",
		}}})
		if err == nil {
			t.Errorf("Apply(%q): got = nil error", p)
		}
	}

	after, err := lease.clone.repo.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if diff := cmp.Diff(wantURLs, after.Remotes["origin"].URLs); diff != "" {
		t.Errorf("origin URLs changed (-want, +got): %s", diff)
	}
}
