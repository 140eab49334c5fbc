/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubpr

import (
	"fmt"
	"strconv"
	"strings"

	"chainguard.dev/reviewflow/pipeline"
)

// FormatUnitID identifies a pull request as "owner/repo#number".
func FormatUnitID(owner, repo string, number int) pipeline.UnitID {
	return pipeline.UnitID(fmt.Sprintf("%s/%s#%d", owner, repo, number))
}

// ParseUnitID splits a unit id produced by FormatUnitID.
func ParseUnitID(unit pipeline.UnitID) (owner, repo string, number int, err error) {
	slug, num, ok := strings.Cut(string(unit), "#")
	if !ok {
		return "", "", 0, fmt.Errorf("unit %q is not of the form owner/repo#number", unit)
	}
	owner, repo, err = SplitRepository(slug)
	if err != nil {
		return "", "", 0, fmt.Errorf("unit %q: %w", unit, err)
	}
	number, err = strconv.Atoi(num)
	if err != nil || number <= 0 {
		return "", "", 0, fmt.Errorf("unit %q has an invalid pull request number", unit)
	}
	return owner, repo, number, nil
}

// SplitRepository splits "owner/repo".
func SplitRepository(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(s, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("repository %q is not of the form owner/repo", s)
	}
	return owner, repo, nil
}
