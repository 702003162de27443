package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/huddleboard/huddle/internal/engine"
	"github.com/huddleboard/huddle/internal/printer"
	"github.com/huddleboard/huddle/pkg/board"
)

var (
	addColumn string
	addDraft  bool
)

var addCmd = &cobra.Command{
	Use:   "add CONTENT",
	Short: "Post a card to the board",
	Long: `Post a card to a column on the board.

By default the card is published immediately and visible to everyone.
With --draft it is staged: only you see it until 'huddle publish'
releases it.

Examples:
  # Post to the first column
  huddle add "CI pipeline was green all sprint"

  # Post to a specific column by title (glob patterns work)
  huddle add "Standups ran long" --column="What didn't*"

  # Stage a draft for later
  huddle add "Rotate the retro facilitator" --column=Ideas --draft`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addColumn, "column", "c", "", "Target column title (glob pattern, default: first column)")
	addCmd.Flags().BoolVar(&addDraft, "draft", false, "Stage the card instead of publishing it")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	sess, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	column, err := resolveColumn(sess.Engine, addColumn)
	if err != nil {
		return err
	}

	item, err := sess.Engine.AddItem(args[0], column.ID, addDraft)
	if err != nil {
		return fmt.Errorf("failed to add item: %w", err)
	}

	// Wait for the backend confirmation so the printed ID is the durable one,
	// not the optimistic placeholder.
	sess.Engine.Flush()
	confirmedID := sess.Engine.ConfirmedID(item.ID)

	if addDraft {
		printer.Success("Staged draft in '%s'\n", column.Title)
	} else {
		printer.Success("Posted to '%s'\n", column.Title)
	}
	printer.Info("ID: %s\n", confirmedID)
	return nil
}

// resolveColumn matches a column title glob against the board's columns.
// An empty pattern selects the first column. Exactly one column must match.
func resolveColumn(eng *engine.Engine, pattern string) (board.Column, error) {
	columns := eng.Columns()
	if len(columns) == 0 {
		return board.Column{}, fmt.Errorf("board has no columns")
	}
	if pattern == "" {
		return columns[0], nil
	}

	var matches []board.Column
	for _, col := range columns {
		if ok, err := filepath.Match(pattern, col.Title); err == nil && ok {
			matches = append(matches, col)
		} else if col.Title == pattern || col.ID == pattern {
			matches = append(matches, col)
		}
	}

	switch len(matches) {
	case 0:
		titles := make([]string, 0, len(columns))
		for _, col := range columns {
			titles = append(titles, col.Title)
		}
		return board.Column{}, printer.ErrorWithContext(
			"no matching column",
			fmt.Sprintf("No column matches %q.", pattern),
			map[string]string{"Columns": fmt.Sprintf("%v", titles)},
			nil,
		)
	case 1:
		return matches[0], nil
	default:
		return board.Column{}, printer.Error(
			"ambiguous column",
			fmt.Sprintf("%d columns match %q.", len(matches), pattern),
			[]string{"Use a more specific title pattern"},
		)
	}
}
