/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package progress_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"chainguard.dev/reviewflow/pipeline"
	"chainguard.dev/reviewflow/progress"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-cmp/cmp"
)

func sampleEvents() []pipeline.Event {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []pipeline.Event{
		{RunID: "r", Step: pipeline.StepImplementing, Message: "Implementing feature", Time: start},
		{RunID: "r", Step: pipeline.StepPublishing, Message: "Published 42", Time: start.Add(1500 * time.Millisecond), Unit: "42"},
		{RunID: "r", Step: pipeline.StepFixing, Message: "Fix failed, continuing", Time: start.Add(2 * time.Second), Unit: "42",
			Fields: map[string]any{"success": false, "index": 0}},
		{RunID: "r", Step: pipeline.StepFixing, Message: "Fix applied", Time: start.Add(3 * time.Second), Unit: "42"},
		{RunID: "r", Step: pipeline.StepDone, Message: "Pipeline finished: merged", Time: start.Add(4 * time.Second), Unit: "42",
			Fields: map[string]any{"status": "merged"}},
	}
}

func TestRecorder(t *testing.T) {
	rec := &progress.Recorder{}
	for _, e := range sampleEvents() {
		rec.Observe(context.Background(), e)
	}

	if got := len(rec.Events()); got != 5 {
		t.Errorf("Events(): got = %d, wanted = 5", got)
	}
	want := []pipeline.Step{pipeline.StepImplementing, pipeline.StepPublishing, pipeline.StepFixing, pipeline.StepDone}
	if diff := cmp.Diff(want, rec.Steps()); diff != "" {
		t.Errorf("Steps() (-want, +got): %s", diff)
	}
}

func TestMulti(t *testing.T) {
	a, b := &progress.Recorder{}, &progress.Recorder{}
	m := progress.Multi{a, b}
	for _, e := range sampleEvents()[:2] {
		m.Observe(context.Background(), e)
	}
	if diff := cmp.Diff(a.Events(), b.Events()); diff != "" {
		t.Errorf("observers diverged (-a, +b): %s", diff)
	}
	if got := len(a.Events()); got != 2 {
		t.Errorf("Events(): got = %d, wanted = 2", got)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := clog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := clog.WithLogger(context.Background(), logger)

	for _, e := range sampleEvents() {
		progress.NewLogger().Observe(ctx, e)
	}

	out := buf.String()
	for _, want := range []string{
		`level=INFO msg="Implementing feature" step=implementing`,
		`level=WARN msg="Fix failed, continuing"`,
		`unit=42`,
		`status=merged`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	if err := progress.Table(&buf, sampleEvents()); err != nil {
		t.Fatalf("Table() = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Elapsed",
		"implementing",
		"1.5s",
		"Published 42",
		"index=0 success=false",
		"status=merged",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := progress.Table(&buf, nil); err != nil {
		t.Fatalf("Table() = %v", err)
	}
}
