package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/huddleboard/huddle/internal/printer"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show board layout, participants, and session state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	sess, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	config := sess.Engine.Config()
	items := sess.Engine.Items()

	perColumn := map[string]int{}
	for _, item := range items {
		if !item.IsStaged {
			perColumn[item.ColumnID]++
		}
	}

	printer.Info("Board: %s\n\n", sess.Client.BoardName())

	printer.Info("Columns:\n")
	for _, col := range config.Columns {
		marker := ""
		if col.IsActionList() {
			marker = " (action list)"
		}
		printer.Printf("  %s %s%s: %d items\n",
			printer.Theme(col.ColorTheme).Sprint("●"), col.Title, marker, perColumn[col.ID])
	}

	printer.Info("\nParticipants:\n")
	for _, user := range sess.Engine.Participants() {
		hand := ""
		if user.HandRaised {
			hand = " ✋"
		}
		printer.Printf("  %s%s\n", printer.Author(user.Name, user.Color), hand)
	}

	if voting := config.Voting; voting != nil {
		printer.Info("\nVoting: open, %d votes per participant (%d used)\n",
			voting.VotesPerParticipant, sess.Engine.VotesUsed())
	}
	if until := config.Timer.RunningUntilMs; until > time.Now().UnixMilli() {
		remaining := time.Duration(until-time.Now().UnixMilli()) * time.Millisecond
		printer.Info("Timer: %s remaining\n", remaining.Round(time.Second))
	}

	return nil
}
