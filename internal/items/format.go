package items

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/huddleboard/huddle/pkg/board"
)

// FormatTable writes items as a formatted table to the provided writer.
// The table includes columns: ID, KIND, COLUMN, AUTHOR, VOTES, AGE, and CONTENT (truncated).
// Returns the number of items formatted.
func FormatTable(w io.Writer, items []*board.Item, columns []board.Column, boardName string) int {
	if len(items) == 0 {
		fmt.Fprintf(w, "No items found on board '%s'\n", boardName)
		return 0
	}

	titles := make(map[string]string, len(columns))
	for _, col := range columns {
		titles[col.ID] = col.Title
	}

	// Print header
	fmt.Fprintf(w, "Items on board '%s':\n\n", boardName)

	// Print header row
	fmt.Fprintf(w, "%-10s %-7s %-20s %-14s %-6s %-8s %s\n",
		"ID", "KIND", "COLUMN", "AUTHOR", "VOTES", "AGE", "CONTENT")
	fmt.Fprintf(w, "%-10s %-7s %-20s %-14s %-6s %-8s %s\n",
		"----------", "-------", "--------------------", "--------------", "------", "--------", "----------------------------------------")

	// Print data rows
	for _, item := range items {
		fmt.Fprintf(w, "%-10s %-7s %-20s %-14s %-6s %-8s %s\n",
			formatID(item.ID),
			formatKind(item),
			formatColumn(titles, item.ColumnID),
			formatAuthor(item.AuthorName),
			formatVotes(item.TotalVotes()),
			formatTimestamp(item.CreatedAtMs),
			formatContent(item),
		)
	}

	// Print count
	countMsg := "item"
	if len(items) != 1 {
		countMsg = "items"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(items), countMsg)

	return len(items)
}

// FormatJSONL writes items as line-delimited JSON (JSONL) to the provided writer.
// Each item is written as a single JSON object on its own line.
// This format is ideal for streaming and processing with tools like jq.
func FormatJSONL(w io.Writer, items []*board.Item) error {
	for _, item := range items {
		// Marshal item to JSON (compact, no indentation)
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal item to JSON: %w", err)
		}

		// Write as single line
		_, err = fmt.Fprintf(w, "%s\n", string(data))
		if err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes a single item as pretty-printed JSON to the provided writer.
// Used in get mode to display complete item details.
func FormatSingleJSON(w io.Writer, item *board.Item) error {
	// Marshal to pretty JSON
	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal item to JSON: %w", err)
	}

	// Write to output
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	// Add newline for clean output
	fmt.Fprintln(w)

	return nil
}

// formatID truncates item ID to first 8 characters for compact display.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatKind distinguishes groups, grouped cards, and drafts.
func formatKind(item *board.Item) string {
	switch {
	case item.IsGroup():
		return "group"
	case item.IsStaged:
		return "draft"
	case item.ParentID != "":
		return "member"
	default:
		return "card"
	}
}

// formatColumn resolves a column ID to its title, truncated for table display.
// Unknown column IDs fall back to the raw ID.
func formatColumn(titles map[string]string, columnID string) string {
	title, ok := titles[columnID]
	if !ok {
		title = columnID
	}
	if len(title) > 20 {
		return title[:17] + "..."
	}
	return title
}

// formatContent truncates content to first line with max 40 characters for table display.
// Multi-line content shows only the first line. Empty content returns "-".
func formatContent(item *board.Item) string {
	if item.Content == "" {
		return "-"
	}

	// Get first non-empty line
	lines := strings.Split(item.Content, "\n")
	var firstLine string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			firstLine = trimmed
			break
		}
	}

	// If all lines were empty
	if firstLine == "" {
		return "-"
	}

	// Truncate to 40 chars (shorter for compact display)
	if len(firstLine) > 40 {
		return firstLine[:37] + "..."
	}

	return firstLine
}

// formatAuthor formats the author name for table display.
// Empty values return "-".
func formatAuthor(name string) string {
	if name == "" {
		return "-"
	}
	if len(name) > 14 {
		return name[:11] + "..."
	}
	return name
}

// formatVotes formats the vote total for table display.
// Shows "-" for unvoted items.
func formatVotes(total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", total)
}

// formatTimestamp formats Unix timestamp in milliseconds to human-readable time.
// Shows relative time like "2m ago", "1h ago", etc.
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	// Convert ms to time
	t := time.Unix(timestampMs/1000, (timestampMs%1000)*1000000)

	// Calculate time difference from now
	diff := time.Since(t)

	// Format as relative time
	if diff < time.Minute {
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	} else {
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
