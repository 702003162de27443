package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/huddleboard/huddle/pkg/board"
)

// DefaultFileName is the config file looked for in the working directory.
const DefaultFileName = "huddle.yml"

// HuddleConfig represents the top-level huddle.yml configuration
type HuddleConfig struct {
	Version string         `yaml:"version"`
	Redis   *RedisConfig   `yaml:"redis,omitempty"`
	Board   BoardConfig    `yaml:"board"`
	User    UserConfig     `yaml:"user"`
	Columns []ColumnConfig `yaml:"columns,omitempty"`
}

// RedisConfig specifies how to reach the shared Redis instance
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"` // Default: localhost:6379
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// BoardConfig names the board this session joins and its board-wide rules
type BoardConfig struct {
	Name        string             `yaml:"name"`
	Permissions *PermissionsConfig `yaml:"permissions,omitempty"`
}

// PermissionsConfig controls whether participants may act on items they did
// not author. All three default to true.
type PermissionsConfig struct {
	EditOthers   *bool `yaml:"edit_others,omitempty"`
	MoveOthers   *bool `yaml:"move_others,omitempty"`
	DeleteOthers *bool `yaml:"delete_others,omitempty"`
}

// UserConfig is the local participant's identity
type UserConfig struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color,omitempty"`
}

// ColumnConfig describes one column seeded when this session creates the
// board
type ColumnConfig struct {
	Title      string `yaml:"title"`
	Color      string `yaml:"color,omitempty"`
	ActionList bool   `yaml:"action_list,omitempty"`
}

var validColors = map[string]bool{
	"":       true,
	"red":    true,
	"orange": true,
	"yellow": true,
	"green":  true,
	"teal":   true,
	"blue":   true,
	"purple": true,
	"pink":   true,
	"gray":   true,
}

// Validate performs strict validation on the configuration and applies
// defaults for omitted sections
func (c *HuddleConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Board.Name == "" {
		return fmt.Errorf("board.name is required")
	}

	if c.User.Name == "" {
		return fmt.Errorf("user.name is required")
	}
	if !validColors[c.User.Color] {
		return fmt.Errorf("user.color: invalid color: %s", c.User.Color)
	}

	// Apply default Redis config if missing
	if c.Redis == nil {
		c.Redis = &RedisConfig{Addr: "localhost:6379"}
	} else if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0, got %d", c.Redis.DB)
	}

	titles := make(map[string]bool)
	for i, col := range c.Columns {
		if col.Title == "" {
			return fmt.Errorf("columns[%d]: title is required", i)
		}
		if titles[col.Title] {
			return fmt.Errorf("duplicate column title '%s': column titles must be unique", col.Title)
		}
		titles[col.Title] = true
		if !validColors[col.Color] {
			return fmt.Errorf("column '%s': invalid color: %s", col.Title, col.Color)
		}
	}

	return nil
}

// BoardDefaults converts the configured columns and permissions into the
// board config seeded when this session is the first to reach the board.
// With no columns configured, the classic three-lane retro layout is used.
func (c *HuddleConfig) BoardDefaults() *board.BoardConfig {
	columns := []ColumnConfig{
		{Title: "What went well", Color: "green"},
		{Title: "What didn't go well", Color: "red"},
		{Title: "Ideas", Color: "blue"},
	}
	if len(c.Columns) > 0 {
		columns = c.Columns
	}

	cfg := &board.BoardConfig{
		Permissions: board.Permissions{
			EditOthers:   true,
			MoveOthers:   true,
			DeleteOthers: true,
		},
	}
	if p := c.Board.Permissions; p != nil {
		if p.EditOthers != nil {
			cfg.Permissions.EditOthers = *p.EditOthers
		}
		if p.MoveOthers != nil {
			cfg.Permissions.MoveOthers = *p.MoveOthers
		}
		if p.DeleteOthers != nil {
			cfg.Permissions.DeleteOthers = *p.DeleteOthers
		}
	}

	for _, col := range columns {
		mode := board.ViewModeBoard
		if col.ActionList {
			mode = board.ViewModeActionList
		}
		cfg.Columns = append(cfg.Columns, board.Column{
			ID:         board.NewID(),
			Title:      col.Title,
			ColorTheme: col.Color,
			ViewMode:   mode,
		})
	}
	return cfg
}

// Load reads and validates huddle.yml from the specified path
func Load(path string) (*HuddleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config HuddleConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
