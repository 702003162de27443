package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/huddleboard/huddle/internal/printer"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init BOARD_NAME",
	Short: "Create a huddle.yml for a new board",
	Long: `Create a huddle.yml configuration file for a board in the current directory.

The generated file carries the board name, your identity, the Redis
connection, and the default three-lane retro layout. Edit it to change
columns or permissions before the first session connects; the first
session to reach the board seeds its configuration.

Use --force to overwrite an existing huddle.yml.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing huddle.yml")
	rootCmd.AddCommand(initCmd)
}

const configTemplate = `version: "1.0"

redis:
  addr: "localhost:6379"

board:
  name: "%s"
  # permissions:
  #   edit_others: true
  #   move_others: true
  #   delete_others: true

user:
  name: "%s"
  color: "teal"

# columns:
#   - title: "What went well"
#     color: "green"
#   - title: "What didn't go well"
#     color: "red"
#   - title: "Ideas"
#     color: "blue"
`

func runInit(cmd *cobra.Command, args []string) error {
	boardName := args[0]

	if !forceInit {
		if _, err := os.Stat(configPath); err == nil {
			return printer.Error(
				"huddle.yml already exists",
				fmt.Sprintf("%s is already present in this directory.", configPath),
				[]string{
					"Edit the existing file",
					"Re-run with --force to overwrite it",
				},
			)
		}
	}

	userName := os.Getenv("USER")
	if userName == "" {
		userName = "participant"
	}

	content := fmt.Sprintf(configTemplate, boardName, userName)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}

	printer.Success("Created %s for board '%s'\n", configPath, boardName)
	printer.Info("Edit user.name and the column layout, then run 'huddle add' to post your first card.\n")
	return nil
}
