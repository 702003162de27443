package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/huddleboard/huddle/internal/printer"
	"github.com/huddleboard/huddle/internal/watch"
)

var watchOutputFormat string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor real-time board activity",
	Long: `Monitor real-time board activity.

Streams card posts, grouping changes, votes, timer updates, raised hands,
and participant presence as they occur.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch the board
  huddle watch

  # Export events as JSON
  huddle watch --output=json > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Validate output format
	var formatter watch.Formatter
	switch watchOutputFormat {
	case "default":
		formatter = watch.NewFormatter(os.Stdout)
	case "json":
		formatter = watch.NewJSONFormatter(os.Stdout)
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newBoardClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	printer.Info("Watching board '%s' (Ctrl+C to stop)\n", cfg.Board.Name)
	return watch.Watch(ctx, client, formatter)
}
