/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Command reviewflow turns a feature description into a reviewed, fixed, and
// merged pull request.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chainguard.dev/reviewflow/pipeline"
	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitError    = 1
	exitPipeline = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var pe *pipeline.PipelineError
		if errors.As(err, &pe) {
			os.Exit(exitPipeline)
		}
		os.Exit(exitError)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reviewflow",
		Short: "Implement, review, fix, and merge a feature",
		Long: `reviewflow asks a model to implement a feature, opens a pull request with
the result, has it reviewed, applies a fix for every finding, reviews it
again, and merges it.

Configuration is read from the environment (GITHUB_PAT, GITHUB_REPOSITORY,
CODERABBIT_API_KEY, AGENT_MODEL and the matching provider key, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newJournalCmd())
	return root
}

// withLogger installs a text logger at level on ctx.
func withLogger(ctx context.Context, level slog.Level) context.Context {
	logger := clog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return clog.WithLogger(ctx, logger)
}
