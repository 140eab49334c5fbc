/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// extractJSON pulls a JSON document out of a model reply. Fences are paired in
// order, so the closing fence of one block is never read as the opening fence
// of the next. It prefers the first ```json block, then the first unlabeled
// block, and otherwise takes the outermost object in the text outside other
// fenced blocks.
func extractJSON(reply string) (string, error) {
	type block struct {
		lang string
		body string
	}
	var (
		blocks  []block
		outside []string
		open    = -1
		lang    string
	)
	lines := strings.Split(reply, "\n")
	for i, line := range lines {
		fence := strings.TrimSpace(line)
		switch {
		case open < 0 && strings.HasPrefix(fence, "```"):
			open, lang = i, strings.TrimSpace(strings.TrimPrefix(fence, "```"))
		case open >= 0 && fence == "```":
			blocks = append(blocks, block{lang: lang, body: strings.TrimSpace(strings.Join(lines[open+1:i], "\n"))})
			open = -1
		case open < 0:
			outside = append(outside, line)
		}
	}
	if open >= 0 {
		// Unterminated block.
		outside = append(outside, lines[open+1:]...)
	}

	pick := -1
	for i, b := range blocks {
		if b.lang == "json" {
			pick = i
			break
		}
		if b.lang == "" && pick < 0 {
			pick = i
		}
	}
	if pick >= 0 {
		if blocks[pick].body == "" {
			return "", errors.New("empty code block in reply")
		}
		return blocks[pick].body, nil
	}

	text := strings.Join(outside, "\n")
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", errors.New("no JSON object in reply")
	}
	return text[start : end+1], nil
}

// decode extracts and unmarshals a JSON reply into T.
func decode[T any](reply string) (T, error) {
	var out T
	body, err := extractJSON(reply)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return out, fmt.Errorf("decoding reply: %w", err)
	}
	return out, nil
}
