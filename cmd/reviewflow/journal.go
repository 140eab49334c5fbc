/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"
	"io"

	"chainguard.dev/reviewflow/journal"
	"chainguard.dev/reviewflow/progress"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
)

type journalConfig struct {
	RedisAddr string `env:"REDIS_ADDR,required"`
	Prefix    string `env:"REDIS_PREFIX,default=reviewflow"`
}

func newJournalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "journal [RUN_ID]",
		Short: "Print a journaled run, or list runs when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var cfg journalConfig
			if err := envconfig.Process(ctx, &cfg); err != nil {
				return fmt.Errorf("processing config: %w", err)
			}

			j, closeJournal, err := openJournal(cfg.RedisAddr, cfg.Prefix)
			if err != nil {
				return err
			}
			defer closeJournal()

			if len(args) == 0 {
				return listRuns(ctx, cmd.OutOrStdout(), j)
			}
			events, err := j.Events(ctx, args[0])
			if err != nil {
				return err
			}
			return progress.Table(cmd.OutOrStdout(), events)
		},
	}
}

// openJournal connects to Redis at addr and journals under prefix. Both the run
// and journal commands go through here so they agree on the key namespace.
func openJournal(addr, prefix string) (*journal.Redis, func(), error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	j, err := journal.NewRedis(rdb, journal.WithPrefix(prefix))
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return j, func() { _ = rdb.Close() }, nil
}

func listRuns(ctx context.Context, out io.Writer, j *journal.Redis) error {
	runs, err := j.Runs(ctx)
	if err != nil {
		return err
	}
	for _, id := range runs {
		if _, err := fmt.Fprintln(out, id); err != nil {
			return err
		}
	}
	return nil
}
