/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package journal persists pipeline events so runs can be replayed after the
// process exits.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainguard.dev/reviewflow/pipeline"
	"github.com/chainguard-dev/clog"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces journal keys.
const DefaultPrefix = "reviewflow"

// ErrRunNotFound is returned by Events for a run with no journaled events.
var ErrRunNotFound = errors.New("run not found")

// Redis appends every event of a run to a Redis list and indexes runs by
// start time. It implements pipeline.Observer.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ pipeline.Observer = (*Redis)(nil)

// Option configures a Redis journal.
type Option func(*Redis)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(r *Redis) { r.prefix = strings.TrimSuffix(prefix, ":") }
}

// WithTTL expires each run's events after d of inactivity. Zero keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(r *Redis) { r.ttl = d }
}

// NewRedis creates a journal on rdb.
func NewRedis(rdb redis.UniversalClient, opts ...Option) (*Redis, error) {
	if rdb == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	r := &Redis{rdb: rdb, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(r)
	}
	if r.prefix == "" {
		return nil, errors.New("prefix cannot be empty")
	}
	return r, nil
}

func (r *Redis) key(parts ...string) string {
	return r.prefix + ":" + strings.Join(parts, ":")
}

// Observe implements pipeline.Observer. Write failures are logged and dropped
// so a journal outage never fails a run.
func (r *Redis) Observe(ctx context.Context, event pipeline.Event) {
	if err := r.Append(ctx, event); err != nil {
		clog.FromContext(ctx).With("run_id", event.RunID).
			With("step", string(event.Step)).
			With("error", err.Error()).
			Warn("Failed to journal event")
	}
}

// Append stores one event.
func (r *Redis) Append(ctx context.Context, event pipeline.Event) error {
	if event.RunID == "" {
		return errors.New("event has no run id")
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	runKey := r.key("run", event.RunID)
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, runKey, raw)
		pipe.ZAddNX(ctx, r.key("runs"), redis.Z{
			Score:  float64(event.Time.UnixMilli()),
			Member: event.RunID,
		})
		if r.ttl > 0 {
			pipe.Expire(ctx, runKey, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// Events replays the events of a run in the order they were observed.
func (r *Redis) Events(ctx context.Context, runID string) ([]pipeline.Event, error) {
	raws, err := r.rdb.LRange(ctx, r.key("run", runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading run %s: %w", runID, err)
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	events := make([]pipeline.Event, 0, len(raws))
	for i, raw := range raws {
		var ev pipeline.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("decoding event %d of run %s: %w", i, runID, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Runs lists journaled run ids, oldest first.
func (r *Redis) Runs(ctx context.Context) ([]string, error) {
	ids, err := r.rdb.ZRange(ctx, r.key("runs"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return ids, nil
}
