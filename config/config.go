/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package config loads reviewflow settings from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chainguard.dev/reviewflow/agent"
	"chainguard.dev/reviewflow/githubpr"
	"chainguard.dev/reviewflow/pipeline"
	"github.com/sethvargo/go-envconfig"
)

// Config is the process configuration.
type Config struct {
	// GitHub
	GitHubToken string `env:"GITHUB_PAT,required"`
	Repository  string `env:"GITHUB_REPOSITORY,required"`
	BaseBranch  string `env:"GITHUB_BASE_BRANCH,default=main"`
	Identity    string `env:"REVIEWFLOW_IDENTITY,default=reviewflow"`
	MergeMethod string `env:"MERGE_METHOD,default=squash"`

	// CodeRabbit
	CodeRabbitKey  string `env:"CODERABBIT_API_KEY,required"`
	CodeRabbitBase string `env:"CODERABBIT_BASE_URL,default=https://api.coderabbit.ai/api/v1"`
	LogLevel       string `env:"CODERABBIT_LOG_LEVEL,default=info"`

	// Agent
	Model        string `env:"AGENT_MODEL,default=claude-sonnet-4-5"`
	AnthropicKey string `env:"ANTHROPIC_API_KEY"`
	GeminiKey    string `env:"GEMINI_API_KEY"`
	OpenAIKey    string `env:"OPENAI_API_KEY"`

	// Pipeline
	ReviewPolicy      string        `env:"REVIEW_POLICY,default=merge-regardless"`
	StepTimeout       time.Duration `env:"STEP_TIMEOUT,default=10m"`
	IncludeCIFindings bool          `env:"INCLUDE_CI_FINDINGS,default=false"`

	// Optional sinks
	RedisAddr   string `env:"REDIS_ADDR"`
	RedisPrefix string `env:"REDIS_PREFIX,default=reviewflow"`
	MetricsAddr string `env:"METRICS_ADDR"`
}

// Load reads the configuration from the process environment and validates it.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads the configuration through l and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks rules that span fields or need parsing.
func (c *Config) Validate() error {
	var errs []error
	if _, _, err := githubpr.SplitRepository(c.Repository); err != nil {
		errs = append(errs, fmt.Errorf("GITHUB_REPOSITORY: %w", err))
	}
	if strings.TrimSpace(c.BaseBranch) == "" {
		errs = append(errs, errors.New("GITHUB_BASE_BRANCH cannot be empty"))
	}
	switch c.MergeMethod {
	case "merge", "squash", "rebase":
	default:
		errs = append(errs, fmt.Errorf("MERGE_METHOD: unknown method %q", c.MergeMethod))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, fmt.Errorf("REVIEW_POLICY: %w", err))
	}
	if c.StepTimeout < 0 {
		errs = append(errs, errors.New("STEP_TIMEOUT cannot be negative"))
	}
	if provider, err := agent.Provider(c.Model); err != nil {
		errs = append(errs, fmt.Errorf("AGENT_MODEL: %w", err))
	} else if c.Credentials().Key(provider) == "" {
		errs = append(errs, fmt.Errorf("AGENT_MODEL %s needs the %s api key", c.Model, provider))
	}
	return errors.Join(errs...)
}

// Owner returns the owner half of Repository.
func (c *Config) Owner() string {
	owner, _, _ := githubpr.SplitRepository(c.Repository)
	return owner
}

// Repo returns the name half of Repository.
func (c *Config) Repo() string {
	_, repo, _ := githubpr.SplitRepository(c.Repository)
	return repo
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("CODERABBIT_LOG_LEVEL: %w", err)
	}
	return level, nil
}

// Policy parses ReviewPolicy.
func (c *Config) Policy() (pipeline.ReReviewPolicy, error) {
	return pipeline.ParseReReviewPolicy(c.ReviewPolicy)
}

// Credentials returns the model provider keys.
func (c *Config) Credentials() agent.Credentials {
	return agent.Credentials{
		Anthropic: c.AnthropicKey,
		Gemini:    c.GeminiKey,
		OpenAI:    c.OpenAIKey,
	}
}
