package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huddleboard/huddle/internal/printer"
)

var publishCmd = &cobra.Command{
	Use:   "publish [COLUMN]",
	Short: "Publish your staged drafts",
	Long: `Publish your staged drafts in a column, making them visible to everyone.

Only your own drafts are published; other participants' drafts stay
hidden. Without a column, drafts in every column are published.

Examples:
  huddle publish
  huddle publish "What went well"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPublish,
}

var handCmd = &cobra.Command{
	Use:   "hand",
	Short: "Raise or lower your hand",
	Long: `Toggle your raised hand, visible to every connected participant.

Examples:
  huddle hand
  huddle hand --lower-all`,
	RunE: runHand,
}

var lowerAll bool

func init() {
	handCmd.Flags().BoolVar(&lowerAll, "lower-all", false, "Lower every raised hand on the board")
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(handCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	sess, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	columns := sess.Engine.Columns()
	if len(args) == 1 {
		column, err := resolveColumn(sess.Engine, args[0])
		if err != nil {
			return err
		}
		columns = columns[:0]
		columns = append(columns, column)
	}

	for _, column := range columns {
		if err := sess.Engine.PublishAll(column.ID); err != nil {
			return fmt.Errorf("failed to publish drafts in %q: %w", column.Title, err)
		}
	}

	printer.Success("Drafts published\n")
	return nil
}

func runHand(cmd *cobra.Command, args []string) error {
	sess, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	if lowerAll {
		sess.Engine.LowerAllHands()
		printer.Success("All hands lowered\n")
		return nil
	}

	sess.Engine.RaiseHand()
	if sess.Engine.User().HandRaised {
		printer.Success("Hand raised\n")
	} else {
		printer.Success("Hand lowered\n")
	}
	return nil
}
