/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "chainguard.dev/reviewflow/pipeline"

// instruments holds the OpenTelemetry metrics recorded by the orchestrator.
// Creation failures degrade to no-op instruments.
type instruments struct {
	runs         metric.Int64Counter
	stepDuration metric.Float64Histogram
	fixes        metric.Int64Counter
}

func newInstruments() *instruments {
	meter := otel.Meter(instrumentationName, metric.WithInstrumentationVersion("1.0.0"))

	runs, err := meter.Int64Counter("reviewflow.pipeline.runs",
		metric.WithDescription("The number of completed pipeline executions by outcome"),
		metric.WithUnit("{runs}"))
	if err != nil {
		slog.Warn("Failed to create runs counter, metrics will be disabled", "error", err)
		runs = noop.Int64Counter{}
	}

	stepDuration, err := meter.Float64Histogram("reviewflow.pipeline.step.duration",
		metric.WithDescription("The time spent in each collaborator call"),
		metric.WithUnit("s"))
	if err != nil {
		slog.Warn("Failed to create step duration histogram, metrics will be disabled", "error", err)
		stepDuration = noop.Float64Histogram{}
	}

	fixes, err := meter.Int64Counter("reviewflow.pipeline.fixes",
		metric.WithDescription("The number of fix attempts by result"),
		metric.WithUnit("{fixes}"))
	if err != nil {
		slog.Warn("Failed to create fixes counter, metrics will be disabled", "error", err)
		fixes = noop.Int64Counter{}
	}

	return &instruments{runs: runs, stepDuration: stepDuration, fixes: fixes}
}

func (m *instruments) recordStep(ctx context.Context, step Step, start time.Time, err error) {
	m.stepDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("step", string(step)),
		attribute.Bool("error", err != nil),
	))
}

func (m *instruments) recordFix(ctx context.Context, ok bool) {
	m.fixes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", ok)))
}

func (m *instruments) recordRun(ctx context.Context, status string) {
	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", status)))
}
