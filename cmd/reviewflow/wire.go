/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"

	"chainguard.dev/reviewflow/agent"
	"chainguard.dev/reviewflow/coderabbit"
	"chainguard.dev/reviewflow/config"
	"chainguard.dev/reviewflow/githubpr"
	"chainguard.dev/reviewflow/pipeline"
	"chainguard.dev/reviewflow/review"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// collaborators builds the production adapters for cfg. The returned cleanup
// removes the local clones.
func collaborators(ctx context.Context, cfg *config.Config) (pipeline.Collaborators, func(), error) {
	log := clog.FromContext(ctx)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHubToken})
	gh := github.NewClient(nil).WithAuthToken(cfg.GitHubToken)

	ws, err := githubpr.NewWorkspace(ts, cfg.Identity, cfg.Owner(), cfg.Repo())
	if err != nil {
		return pipeline.Collaborators{}, nil, err
	}
	cleanup := func() {
		if err := ws.Close(); err != nil {
			log.With("error", err.Error()).Warn("Failed to remove clones")
		}
	}
	fail := func(err error) (pipeline.Collaborators, func(), error) {
		cleanup()
		return pipeline.Collaborators{}, nil, err
	}

	publisher, err := githubpr.NewPublisher(ws, gh, cfg.BaseBranch)
	if err != nil {
		return fail(err)
	}
	merger, err := githubpr.NewMerger(gh, githubpr.WithMergeMethod(cfg.MergeMethod))
	if err != nil {
		return fail(err)
	}

	rabbit, err := coderabbit.New(ctx, cfg.CodeRabbitKey, coderabbit.WithBaseURL(cfg.CodeRabbitBase))
	if err != nil {
		return fail(fmt.Errorf("creating coderabbit client: %w", err))
	}
	var reviewer pipeline.ReviewService = rabbit
	if cfg.IncludeCIFindings {
		checks, err := githubpr.NewCheckReviewer(githubv4.NewClient(oauth2.NewClient(ctx, ts)))
		if err != nil {
			return fail(err)
		}
		if reviewer, err = review.NewCombined(rabbit, checks); err != nil {
			return fail(err)
		}
	}

	model, err := agent.NewModel(ctx, cfg.Model, cfg.Credentials())
	if err != nil {
		return fail(fmt.Errorf("creating model: %w", err))
	}

	producerOpts := []agent.ProducerOption{agent.WithRepository(cfg.Repository)}
	if layout, err := ws.Layout(ctx, cfg.BaseBranch); err != nil {
		log.With("error", err.Error()).Warn("Could not list repository files, generating without layout")
	} else {
		producerOpts = append(producerOpts, agent.WithLayout(layout))
	}
	producer, err := agent.NewProducer(model, producerOpts...)
	if err != nil {
		return fail(err)
	}

	files, err := githubpr.NewFiles(ws, gh)
	if err != nil {
		return fail(err)
	}
	fixer, err := agent.NewFixer(model, files)
	if err != nil {
		return fail(err)
	}

	return pipeline.Collaborators{
		Producer:  producer,
		Publisher: publisher,
		Reviewer:  reviewer,
		Fixer:     fixer,
		Merger:    merger,
	}, cleanup, nil
}
