/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"errors"

	"chainguard.dev/reviewflow/retry"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openAIBackend struct {
	client openai.Client
}

// NewOpenAI returns a Model backed by the OpenAI chat completions API.
func NewOpenAI(client openai.Client, name string, opts ...Option) Model {
	return newModel(name, &openAIBackend{client: client}, opts...)
}

func newOpenAIClient(apiKey string) openai.Client {
	return openai.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0))
}

func (b *openAIBackend) complete(ctx context.Context, name string, req Request) (Response, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(name),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
		Temperature:         openai.Float(req.Temperature),
	})
	if err != nil {
		return Response{}, err
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("no choices in completion")
	}
	return Response{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (b *openAIBackend) transient(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && retry.RetryableStatus(apiErr.StatusCode)
}
