package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huddleboard/huddle/internal/engine"
	"github.com/huddleboard/huddle/internal/printer"
	"github.com/huddleboard/huddle/pkg/board"
)

var (
	voteRetract     bool
	voteStartBudget int
	voteStartMulti  bool
	voteStartAnon   bool
)

var voteCmd = &cobra.Command{
	Use:   "vote ITEM_ID",
	Short: "Cast or retract a vote on an item",
	Long: `Cast a vote on an item during an active voting session.

Votes are limited by the session's per-user budget. Unless the session
allows multiple votes per card, a second vote on the same item is
rejected.

Examples:
  huddle vote abc123
  huddle vote abc123 --retract`,
	Args: cobra.ExactArgs(1),
	RunE: runVote,
}

var voteStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Open a voting session",
	Long: `Open a voting session on the board.

Examples:
  huddle vote start --budget 5
  huddle vote start --budget 3 --multiple`,
	RunE: runVoteStart,
}

var voteEndCmd = &cobra.Command{
	Use:   "end",
	Short: "Close the voting session and publish results",
	Long: `Close the active voting session.

Every item that received votes is copied into a results column (created on
demand). If nothing was voted on, the board's columns are left untouched.`,
	RunE: runVoteEnd,
}

func init() {
	voteCmd.Flags().BoolVar(&voteRetract, "retract", false, "Take a vote back instead of casting one")
	voteStartCmd.Flags().IntVar(&voteStartBudget, "budget", 5, "Votes each participant may cast")
	voteStartCmd.Flags().BoolVar(&voteStartMulti, "multiple", false, "Allow stacking votes on one item")
	voteStartCmd.Flags().BoolVar(&voteStartAnon, "anonymous", false, "Hide who voted in item details")
	voteCmd.AddCommand(voteStartCmd)
	voteCmd.AddCommand(voteEndCmd)
	rootCmd.AddCommand(voteCmd)
}

func runVote(cmd *cobra.Command, args []string) error {
	sess, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	itemID, err := resolveSessionItem(sess, cmd, args[0])
	if err != nil {
		return err
	}

	delta := 1
	if voteRetract {
		delta = -1
	}

	err = sess.Engine.CastVote(itemID, delta)
	switch {
	case errors.Is(err, engine.ErrVotingInactive):
		return printer.Error(
			"no voting session",
			"Voting is not currently open on this board.",
			[]string{"Start one with 'huddle vote start'"},
		)
	case errors.Is(err, engine.ErrVoteBudgetExhausted):
		return printer.Error(
			"out of votes",
			fmt.Sprintf("You have used all %d of your votes.", sess.Engine.Config().Voting.VotesPerParticipant),
			[]string{"Retract one with 'huddle vote ITEM --retract'"},
		)
	case errors.Is(err, engine.ErrVoteLimitPerCard):
		return printer.Error(
			"already voted",
			"This session allows one vote per item.",
			nil,
		)
	case err != nil:
		return fmt.Errorf("failed to cast vote: %w", err)
	}

	if voteRetract {
		printer.Success("Vote retracted from %s\n", args[0])
	} else {
		remaining := sess.Engine.Config().Voting.VotesPerParticipant - sess.Engine.VotesUsed()
		printer.Success("Voted for %s (%d votes left)\n", args[0], remaining)
	}
	return nil
}

func runVoteStart(cmd *cobra.Command, args []string) error {
	sess, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	cfg := board.VotingConfig{
		VotesPerParticipant:  voteStartBudget,
		Anonymous:            voteStartAnon,
		AllowMultiplePerCard: voteStartMulti,
	}
	if err := sess.Engine.StartVoting(cfg); err != nil {
		return fmt.Errorf("failed to start voting: %w", err)
	}

	printer.Success("Voting open: %d votes per participant\n", voteStartBudget)
	return nil
}

func runVoteEnd(cmd *cobra.Command, args []string) error {
	sess, err := startSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	if !sess.Engine.VotingActive() {
		printer.Warning("No voting session is open\n")
		return nil
	}

	if err := sess.Engine.EndVoting(); err != nil {
		return fmt.Errorf("failed to end voting: %w", err)
	}

	printer.Success("Voting closed\n")
	if _, ok := sess.Engine.Config().ColumnByTitle(board.ResultsColumnTitle); ok {
		printer.Info("Voted items copied to '%s'\n", board.ResultsColumnTitle)
	}
	return nil
}
