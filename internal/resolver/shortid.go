// Package resolver turns the short ID prefixes users type into the full
// item IDs the board stores.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/huddleboard/huddle/pkg/board"
)

// MinShortIDLength is the minimum accepted prefix length. Six characters
// keeps prefixes easy to type while making collisions rare on boards of
// realistic size.
const MinShortIDLength = 6

// NotFoundError indicates no item matched the short ID prefix.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no items found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple items matched the short ID prefix.
// Matches carries every full ID the prefix matched.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d items", e.ShortID, len(e.Matches))
}

// IsNotFoundError reports whether err is a NotFoundError.
func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ResolveItemID resolves a short ID prefix to a full item ID. A full UUID is
// verified against the board and returned as-is; anything shorter is treated
// as a prefix and must match exactly one item. Prefixes shorter than
// MinShortIDLength are rejected before touching the backend.
func ResolveItemID(ctx context.Context, client *board.Client, shortID string) (string, error) {
	if len(shortID) == 36 {
		if _, err := uuid.Parse(shortID); err == nil {
			if _, err := client.GetItem(ctx, shortID); err != nil {
				if board.IsNotFound(err) {
					return "", fmt.Errorf("item not found: %s", shortID)
				}
				return "", fmt.Errorf("failed to verify item existence: %w", err)
			}
			return shortID, nil
		}
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	matches, err := client.ScanItems(ctx, shortID)
	if err != nil {
		return "", fmt.Errorf("failed to search for item: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}
