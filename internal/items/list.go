package items

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/huddleboard/huddle/pkg/board"
)

// OutputFormat specifies how to format the item list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated content
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete items as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// FilterCriteria defines filtering options for the list command.
// All filters are ANDed together.
type FilterCriteria struct {
	SinceTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	ColumnGlob       string // Glob pattern for column title, empty = no filter
	Author           string // Exact match for author name, empty = no filter
	VotedOnly        bool   // Only items with at least one vote
	IncludeDrafts    bool   // Include staged drafts (hidden by default)
}

// matchesFilter returns true if the item matches all filter criteria.
func (fc *FilterCriteria) matchesFilter(item *board.Item, columnTitle string) bool {
	// Drafts are hidden unless explicitly requested
	if item.IsStaged && !fc.IncludeDrafts {
		return false
	}

	// Time filtering
	if fc.SinceTimestampMs > 0 && item.CreatedAtMs < fc.SinceTimestampMs {
		return false
	}
	if fc.UntilTimestampMs > 0 && item.CreatedAtMs > fc.UntilTimestampMs {
		return false
	}

	// Column filtering - glob pattern matching against the column title
	if fc.ColumnGlob != "" {
		matched, err := filepath.Match(fc.ColumnGlob, columnTitle)
		if err != nil || !matched {
			return false
		}
	}

	// Author filtering - exact match on author name
	if fc.Author != "" && item.AuthorName != fc.Author {
		return false
	}

	if fc.VotedOnly && item.TotalVotes() == 0 {
		return false
	}

	return true
}

// ListItems retrieves all items on the board and writes them to the provided writer.
// Applies filter criteria if provided. Items are sorted by creation time for
// stable chronological output. Column IDs are resolved to titles via the
// board config.
func ListItems(ctx context.Context, client *board.Client, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	items, err := client.FetchItems(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch items: %w", err)
	}

	var columns []board.Column
	config, err := client.FetchConfig(ctx)
	if err != nil && !board.IsNotFound(err) {
		return fmt.Errorf("failed to fetch board config: %w", err)
	}
	if config != nil {
		columns = config.Columns
	}

	titles := make(map[string]string, len(columns))
	for _, col := range columns {
		titles[col.ID] = col.Title
	}

	if filters != nil {
		filtered := items[:0]
		for _, item := range items {
			if filters.matchesFilter(item, titles[item.ColumnID]) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	// Sort by creation time (oldest first) for chronological output
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAtMs != items[j].CreatedAtMs {
			return items[i].CreatedAtMs < items[j].CreatedAtMs
		}
		return items[i].ID < items[j].ID
	})

	// Format output based on requested format
	switch format {
	case OutputFormatDefault:
		FormatTable(w, items, columns, client.BoardName())
	case OutputFormatJSONL:
		if err := FormatJSONL(w, items); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}
