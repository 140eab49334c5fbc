/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package agent implements the pipeline's code producer and fix applier on top
// of large language models.
//
// A Model is selected by name prefix with NewModel:
//
//	m, err := agent.NewModel(ctx, "claude-sonnet-4-5", agent.Credentials{Anthropic: key})
//
// Every Model retries transient provider errors (rate limits, overload) with
// backoff and records prompt and completion token counts as OpenTelemetry
// metrics, tagged with the model name and the unit being worked on.
//
// Producer asks the model for a JSON change set for a feature description.
// Fixer reads the file a finding points at through a FileStore, asks the model
// for the corrected file, and commits it back. Fixer never returns errors:
// failures are logged and reported as an unsuccessful fix so the pipeline can
// move on to the next finding.
package agent
