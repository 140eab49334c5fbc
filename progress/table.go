/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package progress

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"chainguard.dev/reviewflow/pipeline"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// newTable creates a markdown-style table with the formatting used for run summaries.
func newTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		MaxWidth: 120,
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

// Table renders events as a markdown table, one row per event.
// Elapsed time is measured from the first event.
func Table(w io.Writer, events []pipeline.Event) error {
	table := newTable([]string{"Elapsed", "Step", "Unit", "Message", "Details"}, w)

	var start time.Time
	if len(events) > 0 {
		start = events[0].Time
	}
	for _, e := range events {
		row := []string{
			e.Time.Sub(start).Round(time.Millisecond).String(),
			string(e.Step),
			string(e.Unit),
			e.Message,
			formatFields(e.Fields),
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("appending row: %w", err)
		}
	}
	return table.Render()
}

// formatFields renders fields as sorted key=value pairs.
func formatFields(fields map[string]any) string {
	keys := slices.Sorted(maps.Keys(fields))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}
