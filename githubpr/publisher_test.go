/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubpr

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"text/template"

	"chainguard.dev/reviewflow/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-github/v84/github"
)

func TestPublisher_Publish(t *testing.T) {
	origin, _ := initOrigin(t)
	ws := newWorkspace(t)

	createdCh := make(chan github.NewPullRequest, 1)
	labelsCh := make(chan []string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/app/pulls", func(w http.ResponseWriter, r *http.Request) {
		var created github.NewPullRequest
		decodeBody(t, r, &created)
		createdCh <- created
		writeJSON(t, w, http.StatusCreated, map[string]any{
			"number":   7,
			"html_url": "https://github.com/acme/app/pull/7",
		})
	})
	mux.HandleFunc("POST /repos/acme/app/issues/7/labels", func(w http.ResponseWriter, r *http.Request) {
		var labels []string
		decodeBody(t, r, &labels)
		labelsCh <- labels
		writeJSON(t, w, http.StatusOK, []map[string]any{{"name": "automated"}})
	})

	p, err := NewPublisher(ws, newGitHub(t, mux), "master", WithLabels("automated"))
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	p.suffix = func() string { return "abcd1234" }

	unit, err := p.Publish(context.Background(), pipeline.ChangeSet{
		Title:   "Add user authentication",
		Summary: "Adds a session store.",
		Files: []pipeline.FileChange{
			{Path: "auth/session.go", Content: "package auth\n\ntype Session struct{}\n"},
		},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if unit != "acme/app#7" {
		t.Errorf("unit: got = %q, wanted = %q", unit, "acme/app#7")
	}

	created, labels := <-createdCh, <-labelsCh
	const branch = "reviewflow/add-user-authentication-abcd1234"
	if got := created.GetHead(); got != branch {
		t.Errorf("head: got = %q, wanted = %q", got, branch)
	}
	if got := created.GetBase(); got != "master" {
		t.Errorf("base: got = %q, wanted = master", got)
	}
	if got := created.GetTitle(); got != "Add user authentication" {
		t.Errorf("title: got = %q", got)
	}
	if body := created.GetBody(); !strings.Contains(body, "Adds a session store.") || !strings.Contains(body, "`auth/session.go`") {
		t.Errorf("body: got = %q", body)
	}
	if diff := cmp.Diff([]string{"automated"}, labels); diff != "" {
		t.Errorf("labels (-want, +got): %s", diff)
	}

	content, msg := branchFile(t, origin, branch, "auth/session.go")
	if !strings.Contains(content, "type Session struct{}") {
		t.Errorf("pushed content: got = %q", content)
	}
	if msg != "Add user authentication" {
		t.Errorf("commit message: got = %q", msg)
	}
}

func TestPublisher_FailureDeletesBranch(t *testing.T) {
	tests := []struct {
		name    string
		labels  []string
		create  int
		label   int
		wantErr string
	}{{
		name:    "create fails",
		create:  http.StatusUnprocessableEntity,
		wantErr: "creating pull request",
	}, {
		name:    "labels fail",
		labels:  []string{"automated"},
		create:  http.StatusCreated,
		label:   http.StatusForbidden,
		wantErr: "adding labels",
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initOrigin(t)
			ws := newWorkspace(t)

			deleted := make(chan string, 1)
			mux := http.NewServeMux()
			mux.HandleFunc("POST /repos/acme/app/pulls", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.create, map[string]any{"number": 9, "message": "Validation Failed"})
			})
			mux.HandleFunc("POST /repos/acme/app/issues/9/labels", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.label, map[string]any{"message": "Forbidden"})
			})
			mux.HandleFunc("DELETE /repos/acme/app/git/refs/{ref...}", func(w http.ResponseWriter, r *http.Request) {
				deleted <- r.PathValue("ref")
				w.WriteHeader(http.StatusNoContent)
			})

			var opts []PublisherOption
			if len(tt.labels) > 0 {
				opts = append(opts, WithLabels(tt.labels...))
			}
			p, err := NewPublisher(ws, newGitHub(t, mux), "master", opts...)
			if err != nil {
				t.Fatalf("NewPublisher: %v", err)
			}
			p.suffix = func() string { return "abcd1234" }

			_, err = p.Publish(context.Background(), pipeline.ChangeSet{
				Title: "Change",
				Files: []pipeline.FileChange{{Path: "x.txt", Content: "x"}},
			})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Publish: got = %v, wanted %s error", err, tt.wantErr)
			}
			select {
			case ref := <-deleted:
				if want := "heads/reviewflow/change-abcd1234"; ref != want {
					t.Errorf("deleted ref: got = %q, wanted = %q", ref, want)
				}
			default:
				t.Error("pushed branch was not deleted")
			}
		})
	}
}

func TestPublisher_IdentityWithSpaces(t *testing.T) {
	origin, _ := initOrigin(t)
	ws, err := NewWorkspace(staticTokenSource(""), "Review Bot", "acme", "app")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	t.Cleanup(func() { ws.Close() })

	createdCh := make(chan github.NewPullRequest, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/app/pulls", func(w http.ResponseWriter, r *http.Request) {
		var created github.NewPullRequest
		decodeBody(t, r, &created)
		createdCh <- created
		writeJSON(t, w, http.StatusCreated, map[string]any{"number": 3})
	})
	p, err := NewPublisher(ws, newGitHub(t, mux), "master")
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	p.suffix = func() string { return "abcd1234" }

	if _, err := p.Publish(context.Background(), pipeline.ChangeSet{
		Title: "Change",
		Files: []pipeline.FileChange{{Path: "x.txt", Content: "x"}},
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	const branch = "review-bot/change-abcd1234"
	created := <-createdCh
	if got := created.GetHead(); got != branch {
		t.Errorf("head: got = %q, wanted = %q", got, branch)
	}
	if content, _ := branchFile(t, origin, branch, "x.txt"); content != "x" {
		t.Errorf("pushed content: got = %q", content)
	}
}

func TestPublisher_Rejects(t *testing.T) {
	initOrigin(t)
	ws := newWorkspace(t)
	client := github.NewClient(nil)

	if _, err := NewPublisher(nil, client, "main"); err == nil {
		t.Error("nil workspace: got = nil error")
	}
	if _, err := NewPublisher(ws, nil, "main"); err == nil {
		t.Error("nil client: got = nil error")
	}
	if _, err := NewPublisher(ws, client, ""); err == nil {
		t.Error("empty base: got = nil error")
	}
	if _, err := NewPublisher(ws, client, "main", WithTemplates(nil, nil)); err == nil {
		t.Error("nil templates: got = nil error")
	}

	blank := template.Must(template.New("t").Parse(" "))
	p, err := NewPublisher(ws, client, "master", WithTemplates(blank, DefaultBodyTemplate))
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	ctx := context.Background()
	if _, err := p.Publish(ctx, pipeline.ChangeSet{Title: "x"}); err == nil {
		t.Error("empty change set: got = nil error")
	}
	if _, err := p.Publish(ctx, pipeline.ChangeSet{Title: "x", Files: []pipeline.FileChange{{Path: "a", Content: "b"}}}); err == nil {
		t.Error("blank title: got = nil error")
	}
}
