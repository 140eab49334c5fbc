/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"errors"
	"strings"

	"chainguard.dev/reviewflow/retry"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type claudeBackend struct {
	client anthropic.Client
}

// NewClaude returns a Model backed by the Anthropic Messages API.
func NewClaude(client anthropic.Client, name string, opts ...Option) Model {
	return newModel(name, &claudeBackend{client: client}, opts...)
}

func newAnthropicClient(apiKey string) anthropic.Client {
	// Retries are handled by the model wrapper.
	return anthropic.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0))
}

func (b *claudeBackend) complete(ctx context.Context, name string, req Request) (Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(name),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(req.Prompt),
			},
		}},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, err
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return Response{
		Text:             text.String(),
		PromptTokens:     msg.Usage.InputTokens,
		CompletionTokens: msg.Usage.OutputTokens,
	}, nil
}

func (b *claudeBackend) transient(err error) bool {
	var apiErr *anthropic.Error
	return errors.As(err, &apiErr) && retry.RetryableStatus(apiErr.StatusCode)
}
