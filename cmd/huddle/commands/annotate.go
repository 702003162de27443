package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/huddleboard/huddle/internal/printer"
)

var commentCmd = &cobra.Command{
	Use:   "comment ITEM_ID TEXT",
	Short: "Comment on an item",
	Args:  cobra.ExactArgs(2),
	RunE:  runComment,
}

var reactCmd = &cobra.Command{
	Use:   "react ITEM_ID EMOJI",
	Short: "Toggle an emoji reaction on an item",
	Long: `Toggle your emoji reaction on an item.

Reacting with an emoji you already used removes your reaction; a reaction
nobody holds anymore disappears from the item.

Examples:
  huddle react abc123 👍`,
	Args: cobra.ExactArgs(2),
	RunE: runReact,
}

var actionCmd = &cobra.Command{
	Use:   "action ITEM_ID TEXT",
	Short: "Attach a follow-up task to an item",
	Args:  cobra.ExactArgs(2),
	RunE:  runAction,
}

var actionDoneCmd = &cobra.Command{
	Use:   "done ITEM_ID ACTION_ID",
	Short: "Toggle a follow-up task's done state",
	Args:  cobra.ExactArgs(2),
	RunE:  runActionDone,
}

var timerCmd = &cobra.Command{
	Use:   "timer DURATION",
	Short: "Start the shared countdown timer",
	Long: `Start the board's shared countdown timer, visible to everyone.

Examples:
  huddle timer 5m
  huddle timer 0s   # clear the timer`,
	Args: cobra.ExactArgs(1),
	RunE: runTimer,
}

func init() {
	actionCmd.AddCommand(actionDoneCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(reactCmd)
	rootCmd.AddCommand(actionCmd)
	rootCmd.AddCommand(timerCmd)
}

func runComment(cmd *cobra.Command, args []string) error {
	sess, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	itemID, err := resolveSessionItem(sess, cmd, args[0])
	if err != nil {
		return err
	}
	if err := sess.Engine.AddComment(itemID, args[1]); err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}

	printer.Success("Comment added to %s\n", args[0])
	return nil
}

func runReact(cmd *cobra.Command, args []string) error {
	sess, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	itemID, err := resolveSessionItem(sess, cmd, args[0])
	if err != nil {
		return err
	}
	if err := sess.Engine.ToggleReaction(itemID, args[1]); err != nil {
		return fmt.Errorf("failed to toggle reaction: %w", err)
	}

	printer.Success("Reaction toggled on %s\n", args[0])
	return nil
}

func runAction(cmd *cobra.Command, args []string) error {
	sess, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	itemID, err := resolveSessionItem(sess, cmd, args[0])
	if err != nil {
		return err
	}
	if err := sess.Engine.AddActionItem(itemID, args[1]); err != nil {
		return fmt.Errorf("failed to add action item: %w", err)
	}

	printer.Success("Action item added to %s\n", args[0])
	return nil
}

func runActionDone(cmd *cobra.Command, args []string) error {
	sess, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	itemID, err := resolveSessionItem(sess, cmd, args[0])
	if err != nil {
		return err
	}
	if err := sess.Engine.ToggleActionItem(itemID, args[1]); err != nil {
		return fmt.Errorf("failed to toggle action item: %w", err)
	}

	printer.Success("Action item toggled on %s\n", args[0])
	return nil
}

func runTimer(cmd *cobra.Command, args []string) error {
	d, err := time.ParseDuration(args[0])
	if err != nil {
		return printer.Error(
			"invalid duration",
			fmt.Sprintf("Could not parse %q as a duration.", args[0]),
			[]string{"Use a Go duration like 5m or 90s; 0s clears the timer"},
		)
	}

	sess, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	until := int64(0)
	if d > 0 {
		until = time.Now().Add(d).UnixMilli()
	}
	if err := sess.Engine.SetTimer(until); err != nil {
		return fmt.Errorf("failed to set timer: %w", err)
	}

	if until == 0 {
		printer.Success("Timer cleared\n")
	} else {
		printer.Success("Timer running for %s\n", d)
	}
	return nil
}
