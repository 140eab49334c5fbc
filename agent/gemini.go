/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"strings"

	"google.golang.org/genai"
)

type geminiBackend struct {
	client *genai.Client
}

// NewGemini returns a Model backed by the Gemini API.
func NewGemini(client *genai.Client, name string, opts ...Option) Model {
	return newModel(name, &geminiBackend{client: client}, opts...)
}

// newGeminiClient creates a Gemini API client. An empty baseURL uses the public endpoint.
func newGeminiClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
}

func (b *geminiBackend) complete(ctx context.Context, name string, req Request) (Response, error) {
	temperature := float32(req.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	resp, err := b.client.Models.GenerateContent(ctx, name, genai.Text(req.Prompt), config)
	if err != nil {
		return Response{}, err
	}

	out := Response{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int64(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

// transient matches the status text the Gemini API reports for quota and overload errors.
func (b *geminiBackend) transient(err error) bool {
	msg := err.Error()
	for _, marker := range []string{"RESOURCE_EXHAUSTED", "UNAVAILABLE", "429", "503", "rate limit", "quota exceeded"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
