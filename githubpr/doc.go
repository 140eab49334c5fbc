/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package githubpr implements the pipeline collaborators that talk to GitHub.
//
// A reviewable unit is a pull request, identified as "owner/repo#number".
//
//   - Workspace leases clones of a repository, applies change sets on a fresh
//     branch, commits them, and pushes.
//   - Publisher pushes a change set and opens a pull request for it.
//   - Merger merges a pull request, reporting closed, conflicting, or refused
//     pull requests as outcomes rather than errors.
//   - CheckReviewer turns failing CI check runs into review findings.
//   - Files reads and commits individual files on a pull request's head
//     branch, for use by the fix applier.
package githubpr
