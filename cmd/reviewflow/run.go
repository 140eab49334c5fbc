/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"chainguard.dev/reviewflow/config"
	"chainguard.dev/reviewflow/pipeline"
	"chainguard.dev/reviewflow/progress"
	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
)

type runFlags struct {
	policy     string
	timeout    time.Duration
	ciFindings bool
}

func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run DESCRIPTION",
		Short: "Run the pipeline for a feature description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			level, _ := cfg.Level()
			ctx = withLogger(ctx, level)
			return run(ctx, cmd.OutOrStdout(), cfg, args[0])
		},
	}
	cmd.Flags().StringVar(&flags.policy, "policy", "", "re-review policy: merge-regardless or block-on-unresolved (overrides REVIEW_POLICY)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "timeout for each step (overrides STEP_TIMEOUT)")
	cmd.Flags().BoolVar(&flags.ciFindings, "ci-findings", false, "also treat failing CI checks as findings (overrides INCLUDE_CI_FINDINGS)")
	return cmd
}

// apply overrides cfg with the flags that were set on the command line.
func (f runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("policy") {
		cfg.ReviewPolicy = f.policy
	}
	if cmd.Flags().Changed("timeout") {
		cfg.StepTimeout = f.timeout
	}
	if cmd.Flags().Changed("ci-findings") {
		cfg.IncludeCIFindings = f.ciFindings
	}
	return cfg.Validate()
}

func run(ctx context.Context, out io.Writer, cfg *config.Config, description string) error {
	log := clog.FromContext(ctx)

	if cfg.MetricsAddr != "" {
		shutdown, err := serveMetrics(ctx, cfg.MetricsAddr)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.With("error", err.Error()).Warn("Failed to stop metrics server")
			}
		}()
	}

	rec := &progress.Recorder{}
	observers := progress.Multi{progress.NewLogger(), rec}
	if cfg.RedisAddr != "" {
		j, closeJournal, err := openJournal(cfg.RedisAddr, cfg.RedisPrefix)
		if err != nil {
			return err
		}
		defer closeJournal()
		observers = append(observers, j)
	}

	collabs, cleanup, err := collaborators(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	o, err := pipeline.New(collabs,
		pipeline.WithObserver(observers),
		pipeline.WithStepTimeout(cfg.StepTimeout),
		pipeline.WithReReviewPolicy(policy),
	)
	if err != nil {
		return err
	}

	outcome, runErr := o.Execute(ctx, description)
	if err := report(out, rec.Events(), outcome, runErr); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// report prints the event table followed by the outcome of the run.
func report(out io.Writer, events []pipeline.Event, outcome pipeline.MergeOutcome, runErr error) error {
	if len(events) > 0 {
		fmt.Fprintf(out, "Run %s\n\n", events[0].RunID)
		if err := progress.Table(out, events); err != nil {
			return fmt.Errorf("rendering events: %w", err)
		}
		fmt.Fprintln(out)
	}

	if runErr != nil {
		_, err := fmt.Fprintf(out, "Failed: %v\n", runErr)
		return err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Outcome: %s", outcome.Status)
	if outcome.SHA != "" {
		fmt.Fprintf(&sb, " (%s)", outcome.SHA)
	}
	if outcome.Message != "" {
		fmt.Fprintf(&sb, ": %s", outcome.Message)
	}
	_, err := fmt.Fprintln(out, sb.String())
	return err
}
