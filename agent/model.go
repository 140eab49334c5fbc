/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"fmt"
	"strings"

	"chainguard.dev/reviewflow/retry"
	"github.com/chainguard-dev/clog"
)

// Request is a single-turn prompt to a model.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is the text a model returned and what it cost.
type Response struct {
	Text             string
	PromptTokens     int64
	CompletionTokens int64
}

// Model completes prompts.
type Model interface {
	// Name is the provider model name, e.g. "claude-sonnet-4-5".
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}

// backend is a provider-specific completion call.
type backend interface {
	complete(ctx context.Context, model string, req Request) (Response, error)
	// transient reports whether err is worth retrying.
	transient(err error) bool
}

// Credentials holds the API keys of the supported providers.
type Credentials struct {
	Anthropic string
	Gemini    string
	OpenAI    string
}

// Option configures a Model.
type Option func(*model)

// WithRetryPolicy overrides the retry policy for transient provider errors.
func WithRetryPolicy(p retry.Policy) Option {
	return func(m *model) { m.policy = p }
}

// Providers of the supported model families.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
)

// Provider maps a model name to its provider by prefix:
//   - "claude-" is Anthropic
//   - "gemini-" is the Gemini API
//   - "gpt-", "o1", "o3", "o4" are OpenAI
func Provider(name string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.HasPrefix(lower, "claude-"):
		return ProviderAnthropic, nil
	case strings.HasPrefix(lower, "gemini-"):
		return ProviderGemini, nil
	case strings.HasPrefix(lower, "gpt-"), strings.HasPrefix(lower, "o1"),
		strings.HasPrefix(lower, "o3"), strings.HasPrefix(lower, "o4"):
		return ProviderOpenAI, nil
	default:
		return "", fmt.Errorf("unsupported model: %s (expected claude-*, gemini-*, or gpt-*)", name)
	}
}

// Key returns the API key for provider.
func (c Credentials) Key(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return c.Anthropic
	case ProviderGemini:
		return c.Gemini
	case ProviderOpenAI:
		return c.OpenAI
	}
	return ""
}

// NewModel creates a Model for name using the provider chosen by Provider.
func NewModel(ctx context.Context, name string, creds Credentials, opts ...Option) (Model, error) {
	provider, err := Provider(name)
	if err != nil {
		return nil, err
	}
	key := creds.Key(provider)
	if key == "" {
		return nil, fmt.Errorf("%s api key is required for %s", provider, name)
	}

	switch provider {
	case ProviderAnthropic:
		return NewClaude(newAnthropicClient(key), name, opts...), nil
	case ProviderGemini:
		client, err := newGeminiClient(ctx, key, "")
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		return NewGemini(client, name, opts...), nil
	default:
		return NewOpenAI(newOpenAIClient(key), name, opts...), nil
	}
}

// model wraps a backend with retries and token accounting.
type model struct {
	name    string
	backend backend
	policy  retry.Policy
	metrics *tokenMetrics
}

func newModel(name string, b backend, opts ...Option) *model {
	m := &model{
		name:    name,
		backend: b,
		policy:  retry.Default(),
		metrics: sharedMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *model) Name() string { return m.name }

func (m *model) Complete(ctx context.Context, req Request) (Response, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}

	resp, err := retry.Do(ctx, m.policy, "complete", m.backend.transient, func(ctx context.Context) (Response, error) {
		return m.backend.complete(ctx, m.name, req)
	})
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", m.name, err)
	}

	m.metrics.record(ctx, m.name, resp.PromptTokens, resp.CompletionTokens)
	clog.FromContext(ctx).With("model", m.name).
		With("prompt_tokens", resp.PromptTokens).
		With("completion_tokens", resp.CompletionTokens).
		Debug("Model call completed")

	if strings.TrimSpace(resp.Text) == "" {
		return Response{}, fmt.Errorf("%s returned an empty response", m.name)
	}
	return resp, nil
}

const defaultMaxTokens = 16000
