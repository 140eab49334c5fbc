/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"log/slog"
	"sync"

	"chainguard.dev/reviewflow/pipeline"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// tokenMetrics counts model token usage per model. The pipeline unit goes on
// the active span instead, to keep the counters' cardinality bounded.
type tokenMetrics struct {
	prompt     metric.Int64Counter
	completion metric.Int64Counter
}

var sharedMetrics = sync.OnceValue(func() *tokenMetrics {
	return newTokenMetrics(otel.Meter("chainguard.dev/reviewflow/agent", metric.WithInstrumentationVersion("1.0.0")))
})

func newTokenMetrics(meter metric.Meter) *tokenMetrics {
	prompt, err := meter.Int64Counter("reviewflow.agent.tokens.prompt",
		metric.WithDescription("The number of prompt tokens used"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		slog.Warn("Failed to create prompt tokens counter, metrics will be disabled", "error", err)
		prompt = noop.Int64Counter{}
	}

	completion, err := meter.Int64Counter("reviewflow.agent.tokens.completion",
		metric.WithDescription("The number of completion tokens used"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		slog.Warn("Failed to create completion tokens counter, metrics will be disabled", "error", err)
		completion = noop.Int64Counter{}
	}

	return &tokenMetrics{prompt: prompt, completion: completion}
}

func (m *tokenMetrics) record(ctx context.Context, model string, prompt, completion int64) {
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.prompt.Add(ctx, prompt, attrs)
	m.completion.Add(ctx, completion, attrs)

	spanAttrs := []attribute.KeyValue{
		attribute.String("model", model),
		attribute.Int64("tokens.prompt", prompt),
		attribute.Int64("tokens.completion", completion),
	}
	if unit, ok := pipeline.UnitFromContext(ctx); ok {
		spanAttrs = append(spanAttrs, attribute.String("unit", string(unit)))
	}
	trace.SpanFromContext(ctx).AddEvent("model.usage", trace.WithAttributes(spanAttrs...))
}
