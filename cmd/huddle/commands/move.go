package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huddleboard/huddle/internal/printer"
	"github.com/huddleboard/huddle/internal/resolver"
)

var moveCmd = &cobra.Command{
	Use:   "move ITEM_ID COLUMN",
	Short: "Move an item to another column",
	Long: `Move an item to another column.

Moving into an action-list column (like the voting results column) copies
the item instead of moving it; the original stays where it is.

Examples:
  huddle move abc123 Ideas
  huddle move abc123 "Voting Results*"`,
	Args: cobra.ExactArgs(2),
	RunE: runMove,
}

var groupCmd = &cobra.Command{
	Use:   "group DRAGGED_ID TARGET_ID",
	Short: "Group one item with another",
	Long: `Drop one item onto another, the keyboard equivalent of a drag.

Dropping a card onto a lone card forms a new group holding both. Dropping
onto a group (or a card already in one) joins that group. Dragging a group
onto a card absorbs it; dragging a group onto a group merges them.

A group whose membership falls to one dissolves automatically.

Examples:
  huddle group abc123 def456`,
	Args: cobra.ExactArgs(2),
	RunE: runGroup,
}

var rmCmd = &cobra.Command{
	Use:   "rm ITEM_ID",
	Short: "Delete an item",
	Long: `Delete an item from the board.

Deleting a group releases its members back to the board; they are not
deleted with it.`,
	Args: cobra.ExactArgs(1),
	RunE: runRm,
}

func init() {
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(rmCmd)
}

// resolveSessionItem resolves a short item ID against the backend before an
// engine intent uses it.
func resolveSessionItem(sess *session, cmd *cobra.Command, shortID string) (string, error) {
	itemID, err := resolver.ResolveItemID(cmd.Context(), sess.Client, shortID)
	if err != nil {
		var ambiguous *resolver.AmbiguousError
		if errors.As(err, &ambiguous) {
			return "", printer.AmbiguousID(ambiguous.ShortID, ambiguous.Matches)
		}
		return "", err
	}
	return itemID, nil
}

func runMove(cmd *cobra.Command, args []string) error {
	sess, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	itemID, err := resolveSessionItem(sess, cmd, args[0])
	if err != nil {
		return err
	}
	column, err := resolveColumn(sess.Engine, args[1])
	if err != nil {
		return err
	}

	if err := sess.Engine.MoveItem(itemID, column.ID, nil); err != nil {
		return fmt.Errorf("failed to move item: %w", err)
	}

	if column.IsActionList() {
		printer.Success("Copied into '%s'\n", column.Title)
	} else {
		printer.Success("Moved to '%s'\n", column.Title)
	}
	return nil
}

func runGroup(cmd *cobra.Command, args []string) error {
	sess, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	draggedID, err := resolveSessionItem(sess, cmd, args[0])
	if err != nil {
		return err
	}
	targetID, err := resolveSessionItem(sess, cmd, args[1])
	if err != nil {
		return err
	}

	if err := sess.Engine.GroupItem(draggedID, targetID); err != nil {
		return fmt.Errorf("failed to group items: %w", err)
	}

	printer.Success("Grouped %s with %s\n", args[0], args[1])
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	sess, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	itemID, err := resolveSessionItem(sess, cmd, args[0])
	if err != nil {
		return err
	}

	if err := sess.Engine.DeleteItem(itemID); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	printer.Success("Deleted %s\n", args[0])
	return nil
}
