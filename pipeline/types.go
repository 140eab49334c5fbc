/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package pipeline

import (
	"fmt"
	"slices"
	"strings"
)

// FileChange is a single file modification within a ChangeSet.
type FileChange struct {
	// Path is relative to the repository root, using forward slashes.
	Path string `json:"path"`
	// Content is the full new content of the file. Ignored when Delete is set.
	Content string `json:"content,omitempty"`
	// Diff is an optional human-readable diff of the change.
	Diff string `json:"diff,omitempty"`
	// Delete removes the file instead of writing it.
	Delete bool `json:"delete,omitempty"`
}

// ChangeSet is the ordered set of file modifications produced for a feature.
type ChangeSet struct {
	Title   string       `json:"title"`
	Summary string       `json:"summary,omitempty"`
	Files   []FileChange `json:"files"`
}

// Paths returns the touched paths in order.
func (c ChangeSet) Paths() []string {
	paths := make([]string, 0, len(c.Files))
	for _, f := range c.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// Clone returns a deep copy of the change set.
func (c ChangeSet) Clone() ChangeSet {
	c.Files = slices.Clone(c.Files)
	return c
}

// UnitID is an opaque identifier for a published change set.
type UnitID string

func (u UnitID) String() string { return string(u) }

// Severity grades a finding. The zero value means unspecified.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity normalizes a reviewer-supplied severity string.
// Unknown values map to the unspecified severity.
func ParseSeverity(s string) Severity {
	switch sev := Severity(normalize(s)); sev {
	case SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev
	case "warning", "minor":
		return SeverityLow
	case "major", "error":
		return SeverityHigh
	default:
		return ""
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Location points at the code a finding refers to.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
}

func (l Location) String() string {
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.Path, l.Line)
	}
	return l.Path
}

// Finding is one issue reported by a review service.
type Finding struct {
	Message  string    `json:"message"`
	Severity Severity  `json:"severity,omitempty"`
	Location *Location `json:"location,omitempty"`
	// Source names the reviewer that reported the finding, e.g. "coderabbit" or "ci".
	Source string `json:"source,omitempty"`
}

// Verdict is the overall conclusion of a review.
type Verdict string

const (
	VerdictApproved         Verdict = "approved"
	VerdictChangesRequested Verdict = "changes_requested"
)

// ReviewResult is the structured output of one review call.
type ReviewResult struct {
	Findings []Finding `json:"findings"`
	Verdict  Verdict   `json:"verdict"`
}

// MergeStatus is the terminal state of a reviewable unit.
type MergeStatus string

const (
	MergeStatusMerged  MergeStatus = "merged"
	MergeStatusBlocked MergeStatus = "blocked"
	MergeStatusFailed  MergeStatus = "failed"
)

// MergeOutcome is the terminal artifact of the pipeline.
type MergeOutcome struct {
	Status  MergeStatus `json:"status"`
	SHA     string      `json:"sha,omitempty"`
	Message string      `json:"message,omitempty"`
}
