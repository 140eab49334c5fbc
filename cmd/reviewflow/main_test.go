/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"chainguard.dev/reviewflow/config"
	"chainguard.dev/reviewflow/journal"
	"chainguard.dev/reviewflow/pipeline"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	events := []pipeline.Event{
		{RunID: "run-9", Step: pipeline.StepImplementing, Message: "Implementing feature", Time: start},
		{RunID: "run-9", Step: pipeline.StepDone, Message: "Done", Time: start.Add(time.Second), Unit: "acme/app#1"},
	}

	var out bytes.Buffer
	err := report(&out, events, pipeline.MergeOutcome{Status: pipeline.MergeStatusMerged, SHA: "abc", Message: "merged"}, nil)
	require.NoError(t, err)
	got := out.String()
	for _, want := range []string{"Run run-9", "Implementing feature", "acme/app#1", "Outcome: merged (abc): merged"} {
		require.Contains(t, got, want)
	}

	out.Reset()
	runErr := &pipeline.PipelineError{Step: pipeline.StepPublishing, Err: errors.New("push rejected")}
	require.NoError(t, report(&out, nil, pipeline.MergeOutcome{}, runErr))
	require.Equal(t, "Failed: pipeline failed at publishing: push rejected\n", out.String())
}

func TestRunFlags_Apply(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--policy", "block-on-unresolved", "--timeout", "30s"}))

	cfg := &config.Config{
		Repository:   "acme/app",
		BaseBranch:   "main",
		MergeMethod:  "squash",
		LogLevel:     "info",
		Model:        "claude-sonnet-4-5",
		AnthropicKey: "k",
		ReviewPolicy: "merge-regardless",
		StepTimeout:  10 * time.Minute,
	}
	flags := runFlags{policy: "block-on-unresolved", timeout: 30 * time.Second}
	require.NoError(t, flags.apply(cmd, cfg))
	require.Equal(t, "block-on-unresolved", cfg.ReviewPolicy)
	require.Equal(t, 30*time.Second, cfg.StepTimeout)
	require.False(t, cfg.IncludeCIFindings, "unset flag must not override")

	bad := runFlags{policy: "sometimes"}
	require.Error(t, bad.apply(cmd, cfg))
}

func TestRunCmd_RequiresDescription(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"run"})
	root.SetOut(&bytes.Buffer{})
	require.Error(t, root.Execute())
}

func TestJournalCmd(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ADDR", mr.Addr())

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	j, err := journal.NewRedis(client)
	require.NoError(t, err)

	ctx := context.Background()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, j.Append(ctx, pipeline.Event{RunID: "abc", Step: pipeline.StepImplementing, Message: "Implementing feature", Time: start}))
	require.NoError(t, j.Append(ctx, pipeline.Event{RunID: "abc", Step: pipeline.StepFailed, Message: "Pipeline failed", Time: start.Add(time.Second)}))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"journal", "abc"})
	require.NoError(t, root.ExecuteContext(ctx))
	require.Contains(t, out.String(), "Implementing feature")
	require.Contains(t, out.String(), "Pipeline failed")

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"journal"})
	require.NoError(t, root.ExecuteContext(ctx))
	require.Equal(t, "abc", strings.TrimSpace(out.String()))

	root = newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"journal", "missing"})
	require.ErrorIs(t, root.ExecuteContext(ctx), journal.ErrRunNotFound)
}

func TestJournalCmd_CustomPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ADDR", mr.Addr())
	t.Setenv("REDIS_PREFIX", "team")

	cfg, err := config.LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"GITHUB_PAT":         "ghp_x",
		"GITHUB_REPOSITORY":  "acme/app",
		"CODERABBIT_API_KEY": "cr_x",
		"ANTHROPIC_API_KEY":  "sk-ant",
		"REDIS_ADDR":         mr.Addr(),
		"REDIS_PREFIX":       "team",
	}))
	require.NoError(t, err)

	// Journal the way a run does.
	ctx := context.Background()
	j, closeJournal, err := openJournal(cfg.RedisAddr, cfg.RedisPrefix)
	require.NoError(t, err)
	defer closeJournal()
	j.Observe(ctx, pipeline.Event{RunID: "scoped", Step: pipeline.StepDone, Message: "Done", Time: time.Now()})

	require.True(t, mr.Exists("team:runs"))
	require.False(t, mr.Exists("reviewflow:runs"))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"journal"})
	require.NoError(t, root.ExecuteContext(ctx))
	require.Equal(t, "scoped", strings.TrimSpace(out.String()))
}
