/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package pipeline implements the review-fix-reverify orchestration loop.

An Orchestrator turns a feature description into a merged reviewable unit by
driving five collaborators in a fixed order:

	CodeProducer -> ChangePublisher -> ReviewService -> (FixApplier -> ReviewService) -> MergeExecutor

The fix and re-review steps run only when the first review reports findings,
and they run at most once per execution. Fix attempts are best effort: each
finding is attempted independently and a failed fix never aborts the run.

# Collaborators

Collaborators are explicit capability interfaces resolved at construction:

	orch, err := pipeline.New(pipeline.Collaborators{
		Producer:  producer,
		Publisher: publisher,
		Reviewer:  reviewer,
		Fixer:     fixer,
		Merger:    merger,
	}, pipeline.WithObserver(progress.NewLogger()))

Every collaborator call receives a context.Context. After publishing, the
context also carries the unit id (see UnitFromContext) so that adapters like a
fix applier can locate the branch they should push to.

# Errors

Execute returns either a MergeOutcome or a *PipelineError naming the step
that failed. The underlying collaborator failure is wrapped in one of
*GenerationError, *PublishError, *ReviewError or *MergeError, and per-step
deadlines surface as *StepTimeoutError:

	outcome, err := orch.Execute(ctx, "Add user authentication feature")
	var perr *pipeline.PipelineError
	if errors.As(err, &perr) {
		log.Printf("failed while %s: %v", perr.Step, perr.Err)
	}

# Progress

Each transition is reported to the injected Observer as an Event. Observers
must not block for long; they run on the pipeline's goroutine.
*/
package pipeline
