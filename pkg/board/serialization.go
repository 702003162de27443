package board

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Complex fields like
// the vote map and nested collections are JSON-encoded into single hash
// fields. This provides a balance between queryability (individual fields)
// and flexibility (complex structures).

// ItemToHash converts an Item struct to a Redis hash format.
// Collection fields are JSON-encoded. Zero-count vote entries are stripped so
// the stored payload stays minimal and equality-comparable.
func ItemToHash(i *Item) (map[string]interface{}, error) {
	votes := make(map[string]int, len(i.Votes))
	for userID, n := range i.Votes {
		if n > 0 {
			votes[userID] = n
		}
	}

	votesJSON, err := json.Marshal(votes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal votes: %w", err)
	}

	reactionsJSON, err := json.Marshal(i.Reactions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reactions: %w", err)
	}

	commentsJSON, err := json.Marshal(i.Comments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal comments: %w", err)
	}

	actionItemsJSON, err := json.Marshal(i.ActionItems)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action items: %w", err)
	}

	hash := map[string]interface{}{
		"id":            i.ID,
		"content":       i.Content,
		"column_id":     i.ColumnID,
		"parent_id":     i.ParentID,
		"kind":          string(i.Kind),
		"is_staged":     strconv.FormatBool(i.IsStaged),
		"votes":         string(votesJSON),
		"reactions":     string(reactionsJSON),
		"comments":      string(commentsJSON),
		"action_items":  string(actionItemsJSON),
		"author_id":     i.AuthorID,
		"author_name":   i.AuthorName,
		"author_color":  i.AuthorColor,
		"created_at_ms": i.CreatedAtMs,
	}

	return hash, nil
}

// HashToItem converts a Redis hash to an Item struct.
// JSON fields are decoded back to Go types; missing collections become empty.
func HashToItem(hash map[string]string) (*Item, error) {
	var votes map[string]int
	if votesJSON := hash["votes"]; votesJSON != "" {
		if err := json.Unmarshal([]byte(votesJSON), &votes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal votes: %w", err)
		}
	}

	var reactions []Reaction
	if reactionsJSON := hash["reactions"]; reactionsJSON != "" {
		if err := json.Unmarshal([]byte(reactionsJSON), &reactions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reactions: %w", err)
		}
	}

	var comments []Comment
	if commentsJSON := hash["comments"]; commentsJSON != "" {
		if err := json.Unmarshal([]byte(commentsJSON), &comments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal comments: %w", err)
		}
	}

	var actionItems []ActionItem
	if actionItemsJSON := hash["action_items"]; actionItemsJSON != "" {
		if err := json.Unmarshal([]byte(actionItemsJSON), &actionItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal action_items: %w", err)
		}
	}

	isStaged, _ := strconv.ParseBool(hash["is_staged"])
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	item := &Item{
		ID:          hash["id"],
		Content:     hash["content"],
		ColumnID:    hash["column_id"],
		ParentID:    hash["parent_id"],
		Kind:        ItemKind(hash["kind"]),
		IsStaged:    isStaged,
		Votes:       votes,
		Reactions:   reactions,
		Comments:    comments,
		ActionItems: actionItems,
		AuthorID:    hash["author_id"],
		AuthorName:  hash["author_name"],
		AuthorColor: hash["author_color"],
		CreatedAtMs: createdAtMs,
	}

	item.Normalize()

	return item, nil
}

// ConfigToHash converts a BoardConfig struct to a Redis hash format.
func ConfigToHash(c *BoardConfig) (map[string]interface{}, error) {
	columnsJSON, err := json.Marshal(c.Columns)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal columns: %w", err)
	}

	permissionsJSON, err := json.Marshal(c.Permissions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal permissions: %w", err)
	}

	hash := map[string]interface{}{
		"columns":        string(columnsJSON),
		"permissions":    string(permissionsJSON),
		"timer_until_ms": c.Timer.RunningUntilMs,
	}

	// A board with no active voting session stores an empty voting field.
	// The session is cleared, not flagged off, when voting ends.
	if c.Voting != nil {
		votingJSON, err := json.Marshal(c.Voting)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal voting config: %w", err)
		}
		hash["voting"] = string(votingJSON)
	} else {
		hash["voting"] = ""
	}

	return hash, nil
}

// HashToConfig converts a Redis hash to a BoardConfig struct.
func HashToConfig(hash map[string]string) (*BoardConfig, error) {
	var columns []Column
	if columnsJSON := hash["columns"]; columnsJSON != "" {
		if err := json.Unmarshal([]byte(columnsJSON), &columns); err != nil {
			return nil, fmt.Errorf("failed to unmarshal columns: %w", err)
		}
	}
	if columns == nil {
		columns = []Column{}
	}

	var permissions Permissions
	if permissionsJSON := hash["permissions"]; permissionsJSON != "" {
		if err := json.Unmarshal([]byte(permissionsJSON), &permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	var voting *VotingConfig
	if votingJSON := hash["voting"]; votingJSON != "" {
		voting = &VotingConfig{}
		if err := json.Unmarshal([]byte(votingJSON), voting); err != nil {
			return nil, fmt.Errorf("failed to unmarshal voting config: %w", err)
		}
	}

	timerUntilMs, _ := strconv.ParseInt(hash["timer_until_ms"], 10, 64)

	config := &BoardConfig{
		Columns:     columns,
		Voting:      voting,
		Permissions: permissions,
		Timer:       Timer{RunningUntilMs: timerUntilMs},
	}

	return config, nil
}
