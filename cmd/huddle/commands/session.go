package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/huddleboard/huddle/internal/config"
	"github.com/huddleboard/huddle/internal/engine"
	"github.com/huddleboard/huddle/internal/printer"
	"github.com/huddleboard/huddle/pkg/board"
)

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", config.DefaultFileName, "Path to huddle.yml")
}

// loadConfig reads huddle.yml, translating the common failure modes into
// actionable errors.
func loadConfig() (*config.HuddleConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, printer.Error(
				"no huddle.yml found",
				fmt.Sprintf("Could not read %s.", configPath),
				[]string{
					"Run 'huddle init' to create one",
					"Pass --config with the path to an existing huddle.yml",
				},
			)
		}
		return nil, printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": configPath},
			nil,
		)
	}
	return cfg, nil
}

// newBoardClient connects to the configured board and verifies the
// connection.
func newBoardClient(ctx context.Context, cfg *config.HuddleConfig) (*board.Client, error) {
	client, err := board.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Board.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create board client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"cannot reach Redis",
			err.Error(),
			map[string]string{
				"Board": cfg.Board.Name,
				"Redis": cfg.Redis.Addr,
			},
			[]string{"Check that Redis is running and redis.addr in huddle.yml is correct"},
		)
	}

	return client, nil
}

// localUser derives a stable participant identity from the config. The ID is
// deterministic per board and name so reconnecting resumes the same identity.
func localUser(cfg *config.HuddleConfig) board.User {
	return board.User{
		ID:    fmt.Sprintf("user-%s", cfg.User.Name),
		Name:  cfg.User.Name,
		Color: cfg.User.Color,
	}
}

// session is a running engine bound to one CLI invocation.
type session struct {
	Engine *engine.Engine
	Client *board.Client

	cancel context.CancelFunc
	runErr chan error
}

// startSession connects to the board and runs an engine until the session is
// closed. Blocks until the initial load completed.
func startSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	client, err := newBoardClient(ctx, cfg)
	if err != nil {
		cancel()
		return nil, err
	}

	eng := engine.New(client, localUser(cfg), cfg.BoardDefaults())
	runErr := make(chan error, 1)
	go func() {
		runErr <- eng.Run(ctx)
	}()

	select {
	case <-eng.Ready():
	case err := <-runErr:
		cancel()
		client.Close()
		if err == nil {
			err = fmt.Errorf("session ended before the board loaded")
		}
		return nil, err
	}

	return &session{Engine: eng, Client: client, cancel: cancel, runErr: runErr}, nil
}

// Close flushes in-flight writes, stops the engine, and releases the
// connection.
func (s *session) Close() {
	s.Engine.Flush()
	s.cancel()
	<-s.runErr
	s.Client.Close()
}
