package board

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TempIDPrefix marks client-generated placeholder IDs. A temp ID exists only
// between an optimistic local insert and its server confirmation; it is never
// written to Redis.
const TempIDPrefix = "temp-"

// ResultsColumnTitle is the reserved title of the derived results column that
// voted items are cloned into when a voting session ends. The column is
// created once and reused by title on subsequent sessions.
const ResultsColumnTitle = "Voting Results / Action Items"

// ItemKind distinguishes ordinary cards from group containers.
type ItemKind string

const (
	// ItemKindCard is a regular retrospective card.
	ItemKindCard ItemKind = "card"

	// ItemKindGroup is a container whose members are other items referencing
	// it via ParentID. Groups never nest.
	ItemKindGroup ItemKind = "group"
)

// ViewMode selects how a column renders and, more importantly here, how drops
// into it behave. Dropping into an action-list column from another column
// clones the item instead of moving it.
type ViewMode string

const (
	ViewModeBoard      ViewMode = "board"
	ViewModeActionList ViewMode = "action-list"
)

// Item is the central entity on a board: a card, or a group of cards.
type Item struct {
	ID          string         `json:"id"`
	Content     string         `json:"content"`
	ColumnID    string         `json:"column_id"`
	ParentID    string         `json:"parent_id,omitempty"` // set only on members of a group
	Kind        ItemKind       `json:"kind"`
	IsStaged    bool           `json:"is_staged"`              // staged items are private drafts
	Votes       map[string]int `json:"votes"`                  // authorID -> count; zero counts are never stored
	Reactions   []Reaction     `json:"reactions"`
	Comments    []Comment      `json:"comments"`
	ActionItems []ActionItem   `json:"action_items"`
	AuthorID    string         `json:"author_id"`
	AuthorName  string         `json:"author_name"`  // denormalized snapshot at creation time
	AuthorColor string         `json:"author_color"`
	CreatedAtMs int64          `json:"created_at_ms"`
}

// Reaction is an emoji reaction with the set of users who added it.
// The count is always derived from the author list, never stored.
type Reaction struct {
	Emoji   string   `json:"emoji"`
	Authors []string `json:"authors"`
}

// Count returns the number of users who added this reaction.
func (r Reaction) Count() int {
	return len(r.Authors)
}

// HasAuthor reports whether the given user has added this reaction.
func (r Reaction) HasAuthor(userID string) bool {
	for _, a := range r.Authors {
		if a == userID {
			return true
		}
	}
	return false
}

// Comment is a threaded note on an item.
type Comment struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	AuthorName  string `json:"author_name"`
	AuthorColor string `json:"author_color,omitempty"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

// ActionItem is a follow-up task attached to an item.
type ActionItem struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Done       bool   `json:"done"`
	AssigneeID string `json:"assignee_id,omitempty"`
}

// Column is a vertical lane on the board.
type Column struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	ColorTheme string   `json:"color_theme"`
	ViewMode   ViewMode `json:"view_mode,omitempty"` // empty means ViewModeBoard
}

// IsActionList reports whether drops into this column clone rather than move.
func (c Column) IsActionList() bool {
	return c.ViewMode == ViewModeActionList
}

// User is a board participant. The participant set for a session is the union
// of persisted members and currently connected users (presence).
type User struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Role           string `json:"role,omitempty"`
	Color          string `json:"color"`
	HandRaised     bool   `json:"hand_raised"`
	HandRaisedAtMs int64  `json:"hand_raised_at_ms,omitempty"`
}

// VotingConfig describes an active voting session. Its presence on the board
// config is what makes voting active; ending a session clears it entirely.
type VotingConfig struct {
	VotesPerParticipant  int  `json:"votes_per_participant"`
	Anonymous            bool `json:"anonymous"`
	AllowMultiplePerCard bool `json:"allow_multiple_per_card"`
}

// Permissions are board-wide flags controlling whether participants may act
// on items they did not author. Violations are silently ignored, not errors.
type Permissions struct {
	EditOthers   bool `json:"edit_others"`
	MoveOthers   bool `json:"move_others"`
	DeleteOthers bool `json:"delete_others"`
}

// Timer is the shared countdown shown to all participants. Zero means no
// timer is running.
type Timer struct {
	RunningUntilMs int64 `json:"running_until_ms"`
}

// BoardConfig is the non-item state of a board: columns, permissions, the
// voting session (if active) and the shared timer.
type BoardConfig struct {
	Columns     []Column      `json:"columns"`
	Voting      *VotingConfig `json:"voting,omitempty"`
	Permissions Permissions   `json:"permissions"`
	Timer       Timer         `json:"timer"`
}

// Clone returns a deep copy of the config.
func (c *BoardConfig) Clone() *BoardConfig {
	dup := *c
	dup.Columns = make([]Column, len(c.Columns))
	copy(dup.Columns, c.Columns)
	if c.Voting != nil {
		voting := *c.Voting
		dup.Voting = &voting
	}
	return &dup
}

// ColumnByID returns the column with the given ID, or false when absent.
func (c *BoardConfig) ColumnByID(id string) (Column, bool) {
	for _, col := range c.Columns {
		if col.ID == id {
			return col, true
		}
	}
	return Column{}, false
}

// ColumnByTitle returns the first column with the given title, or false.
func (c *BoardConfig) ColumnByTitle(title string) (Column, bool) {
	for _, col := range c.Columns {
		if col.Title == title {
			return col, true
		}
	}
	return Column{}, false
}

// NewTempID returns a fresh client-side placeholder ID for an optimistic
// insert. Temp IDs are replaced wholesale by the server-assigned ID on
// confirmation; they must never be merged by value.
func NewTempID() string {
	return TempIDPrefix + uuid.New().String()
}

// IsTempID reports whether an ID is a client-side placeholder.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// NewID returns a server-side item ID.
func NewID() string {
	return uuid.New().String()
}

// TotalVotes returns the sum of all users' vote counts on the item.
func (i *Item) TotalVotes() int {
	total := 0
	for _, n := range i.Votes {
		total += n
	}
	return total
}

// VotesBy returns the given user's vote count on the item. Absence of the
// user's key means zero.
func (i *Item) VotesBy(userID string) int {
	return i.Votes[userID]
}

// IsGroup reports whether the item is a group container.
func (i *Item) IsGroup() bool {
	return i.Kind == ItemKindGroup
}

// Normalize replaces nil collections with empty ones and strips zero-count
// vote entries. Remote records can arrive with missing nested collections;
// normalizing at the boundary keeps one malformed message from corrupting
// the reconciliation pipeline.
func (i *Item) Normalize() {
	if i.Votes == nil {
		i.Votes = map[string]int{}
	}
	for userID, n := range i.Votes {
		if n <= 0 {
			delete(i.Votes, userID)
		}
	}
	if i.Reactions == nil {
		i.Reactions = []Reaction{}
	}
	if i.Comments == nil {
		i.Comments = []Comment{}
	}
	if i.ActionItems == nil {
		i.ActionItems = []ActionItem{}
	}
	if i.Kind == "" {
		i.Kind = ItemKindCard
	}
}

// Clone returns a deep copy of the item. Mutating the copy never affects the
// original.
func (i *Item) Clone() *Item {
	dup := *i
	dup.Votes = make(map[string]int, len(i.Votes))
	for userID, n := range i.Votes {
		dup.Votes[userID] = n
	}
	dup.Reactions = make([]Reaction, len(i.Reactions))
	for idx, r := range i.Reactions {
		authors := make([]string, len(r.Authors))
		copy(authors, r.Authors)
		dup.Reactions[idx] = Reaction{Emoji: r.Emoji, Authors: authors}
	}
	dup.Comments = make([]Comment, len(i.Comments))
	copy(dup.Comments, i.Comments)
	dup.ActionItems = make([]ActionItem, len(i.ActionItems))
	copy(dup.ActionItems, i.ActionItems)
	return &dup
}

// Validate checks if the Item has valid field values.
// Returns an error if any validation fails.
func (i *Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item ID cannot be empty")
	}

	if i.ColumnID == "" {
		return fmt.Errorf("item column ID cannot be empty")
	}

	if err := i.Kind.Validate(); err != nil {
		return fmt.Errorf("invalid item kind: %w", err)
	}

	// Groups never nest.
	if i.Kind == ItemKindGroup && i.ParentID != "" {
		return fmt.Errorf("group item cannot have a parent")
	}

	if i.ParentID == i.ID && i.ID != "" {
		return fmt.Errorf("item cannot be its own parent")
	}

	for userID, n := range i.Votes {
		if n < 0 {
			return fmt.Errorf("negative vote count %d for user %s", n, userID)
		}
	}

	for idx, r := range i.Reactions {
		if r.Emoji == "" {
			return fmt.Errorf("reaction at index %d has empty emoji", idx)
		}
	}

	return nil
}

// Validate checks if the ItemKind is a valid enum value.
func (k ItemKind) Validate() error {
	switch k {
	case ItemKindCard, ItemKindGroup:
		return nil
	default:
		return fmt.Errorf("unknown item kind: %q", k)
	}
}

// Validate checks if the ViewMode is a valid enum value. The empty string is
// accepted and means ViewModeBoard.
func (m ViewMode) Validate() error {
	switch m {
	case "", ViewModeBoard, ViewModeActionList:
		return nil
	default:
		return fmt.Errorf("unknown view mode: %q", m)
	}
}

// Validate checks if the VotingConfig has valid field values.
func (v *VotingConfig) Validate() error {
	if v.VotesPerParticipant < 1 {
		return fmt.Errorf("votes per participant must be >= 1, got %d", v.VotesPerParticipant)
	}
	return nil
}

// Validate checks if the BoardConfig has valid field values.
func (c *BoardConfig) Validate() error {
	if len(c.Columns) == 0 {
		return fmt.Errorf("board must have at least one column")
	}

	seen := make(map[string]bool, len(c.Columns))
	for _, col := range c.Columns {
		if col.ID == "" {
			return fmt.Errorf("column ID cannot be empty")
		}
		if seen[col.ID] {
			return fmt.Errorf("duplicate column ID: %s", col.ID)
		}
		seen[col.ID] = true

		if col.Title == "" {
			return fmt.Errorf("column %s: title cannot be empty", col.ID)
		}
		if err := col.ViewMode.Validate(); err != nil {
			return fmt.Errorf("column %s: %w", col.ID, err)
		}
	}

	if c.Voting != nil {
		if err := c.Voting.Validate(); err != nil {
			return fmt.Errorf("invalid voting config: %w", err)
		}
	}

	return nil
}
