package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/huddleboard/huddle/pkg/board"
)

// PollForItem polls until an item with the given ID exists on the board.
// Returns the item or an error if timeout occurs.
// Polls every 200ms for the specified timeout duration.
func PollForItem(ctx context.Context, client *board.Client, itemID string, timeout time.Duration) (*board.Item, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for item after %v", timeout)

		case <-ticker.C:
			item, err := client.GetItem(ctx, itemID)
			if err != nil {
				if board.IsNotFound(err) {
					// Not found yet, continue polling
					continue
				}
				return nil, fmt.Errorf("failed to query for item: %w", err)
			}

			// Success!
			return item, nil
		}
	}
}

// Watch subscribes to the board's change stream and writes a formatted line
// per event until the context is cancelled. Decode errors from the stream
// are reported but do not stop the watch.
func Watch(ctx context.Context, client *board.Client, formatter Formatter) error {
	sub, err := client.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to board events: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			formatter.FormatError(err)

		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := formatter.Format(&event); err != nil {
				return fmt.Errorf("failed to format event: %w", err)
			}
		}
	}
}
