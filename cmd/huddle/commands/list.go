package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/huddleboard/huddle/internal/items"
	"github.com/huddleboard/huddle/internal/printer"
	"github.com/huddleboard/huddle/internal/resolver"
	"github.com/huddleboard/huddle/internal/timespec"
)

var (
	listOutputFormat string
	listSince        string
	listUntil        string
	listColumn       string
	listAuthor       string
	listVotedOnly    bool
	listDrafts       bool
)

var listCmd = &cobra.Command{
	Use:   "list [ITEM_ID]",
	Short: "Inspect board items with filtering",
	Long: `Inspect board items in list or get mode.

List Mode (no ITEM_ID):
  Displays items matching filters as a table or JSONL stream. Your staged
  drafts are hidden unless --drafts is given.

Get Mode (with ITEM_ID):
  Displays complete details of a single item as pretty-printed JSON.
  Supports short IDs (e.g., "abc123" instead of full UUID).

Output Formats (list mode only):
  default - Human-readable table with ID, Column, Author, Votes, and Content
  jsonl   - Line-delimited JSON, one item per line

Examples:
  # List all published items
  huddle list

  # Filter by column and recency
  huddle list --column="What went*" --since=1h

  # Items as JSONL for piping to jq
  huddle list --output=jsonl | jq 'select(.kind=="group") | .id'

  # Get specific item by short ID
  huddle list abc123

  # Only voted items by one author
  huddle list --author=ada --voted`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	listCmd.Flags().StringVar(&listSince, "since", "", "Show items after time (duration or RFC3339)")
	listCmd.Flags().StringVar(&listUntil, "until", "", "Show items before time (duration or RFC3339)")
	listCmd.Flags().StringVar(&listColumn, "column", "", "Filter by column title (glob pattern)")
	listCmd.Flags().StringVar(&listAuthor, "author", "", "Filter by author name (exact match)")
	listCmd.Flags().BoolVar(&listVotedOnly, "voted", false, "Only items with at least one vote")
	listCmd.Flags().BoolVar(&listDrafts, "drafts", false, "Include staged drafts")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Determine mode based on arguments
	isGetMode := len(args) > 0

	// Validate output format (only applies to list mode)
	var outputFormat items.OutputFormat
	if !isGetMode {
		switch listOutputFormat {
		case "default":
			outputFormat = items.OutputFormatDefault
		case "jsonl":
			outputFormat = items.OutputFormatJSONL
		default:
			return printer.Error(
				"invalid output format",
				fmt.Sprintf("Unknown format: %s", listOutputFormat),
				[]string{"Valid formats: default, jsonl"},
			)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newBoardClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if isGetMode {
		itemID, err := resolver.ResolveItemID(ctx, client, args[0])
		if err != nil {
			var ambiguous *resolver.AmbiguousError
			if errors.As(err, &ambiguous) {
				return printer.AmbiguousID(ambiguous.ShortID, ambiguous.Matches)
			}
			return err
		}
		return items.GetItem(ctx, client, itemID, os.Stdout)
	}

	filters := &items.FilterCriteria{
		ColumnGlob:    listColumn,
		Author:        listAuthor,
		VotedOnly:     listVotedOnly,
		IncludeDrafts: listDrafts,
	}
	filters.SinceTimestampMs, filters.UntilTimestampMs, err = timespec.ParseRange(listSince, listUntil)
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use a Go duration like 30m, or an RFC3339 timestamp"},
		)
	}

	return items.ListItems(ctx, client, outputFormat, filters, os.Stdout)
}
