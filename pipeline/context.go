/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import "context"

// contextKey is used for storing run metadata in context.Context
type contextKey string

const (
	unitContextKey  contextKey = "unit"
	runIDContextKey contextKey = "run_id"
)

// WithUnit attaches the unit id being worked on to the context.
func WithUnit(ctx context.Context, unit UnitID) context.Context {
	return context.WithValue(ctx, unitContextKey, unit)
}

// UnitFromContext returns the unit id attached by the orchestrator, if any.
func UnitFromContext(ctx context.Context) (UnitID, bool) {
	unit, ok := ctx.Value(unitContextKey).(UnitID)
	return unit, ok && unit != ""
}

// WithRunID attaches a run id to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDContextKey, runID)
}

// RunIDFromContext returns the run id of the execution, or "" outside one.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDContextKey).(string); ok {
		return id
	}
	return ""
}
