package items

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/huddleboard/huddle/pkg/board"
)

// GetItem retrieves a single item by ID and writes it as pretty-printed JSON to the writer.
// Returns an error if the item ID is invalid or the item does not exist.
// Uses IsNotFound() to distinguish "not found" errors from other errors.
func GetItem(ctx context.Context, client *board.Client, itemID string, w io.Writer) error {
	// Validate item ID format
	if _, err := uuid.Parse(itemID); err != nil {
		return fmt.Errorf("invalid item ID format: must be a valid UUID")
	}

	// Fetch item from the board
	item, err := client.GetItem(ctx, itemID)
	if err != nil {
		if board.IsNotFound(err) {
			return &ItemNotFoundError{ItemID: itemID}
		}
		return fmt.Errorf("failed to fetch item: %w", err)
	}

	// Format and write as JSON
	if err := FormatSingleJSON(w, item); err != nil {
		return fmt.Errorf("failed to format item: %w", err)
	}

	return nil
}

// ItemNotFoundError represents a specific "item not found" error.
// This allows callers to distinguish not-found errors from other failures.
type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item with ID '%s' not found", e.ItemID)
}

// IsNotFound returns true if the error is an ItemNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*ItemNotFoundError)
	return ok
}
