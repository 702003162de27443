package board

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by board name to enable
// multiple boards to safely coexist on a single Redis server.
//
// Key pattern: huddle:{board_name}:{entity}:{id}
// Channel pattern: huddle:{board_name}:{event_type}_events

// ItemKey returns the Redis key for an item hash.
// Pattern: huddle:{board_name}:item:{item_id}
func ItemKey(boardName, itemID string) string {
	return fmt.Sprintf("huddle:%s:item:%s", boardName, itemID)
}

// ItemIndexKey returns the Redis key for the set of all item IDs on a board.
// The index makes a full fetch a set read plus per-item hash reads instead of
// a keyspace scan.
// Pattern: huddle:{board_name}:items
func ItemIndexKey(boardName string) string {
	return fmt.Sprintf("huddle:%s:items", boardName)
}

// ConfigKey returns the Redis key for the board configuration hash.
// Pattern: huddle:{board_name}:config
func ConfigKey(boardName string) string {
	return fmt.Sprintf("huddle:%s:config", boardName)
}

// PresenceKey returns the Redis key for a participant's presence
// registration. Presence keys carry a TTL; an expired key means the
// participant disconnected without saying goodbye.
// Pattern: huddle:{board_name}:presence:{user_id}
func PresenceKey(boardName, userID string) string {
	return fmt.Sprintf("huddle:%s:presence:%s", boardName, userID)
}

// PresenceKeyPattern returns the match pattern for all presence keys on a
// board, for use with SCAN.
func PresenceKeyPattern(boardName string) string {
	return fmt.Sprintf("huddle:%s:presence:*", boardName)
}

// ItemEventsChannel returns the Pub/Sub channel name for item row-change
// events.
// Pattern: huddle:{board_name}:item_events
func ItemEventsChannel(boardName string) string {
	return fmt.Sprintf("huddle:%s:item_events", boardName)
}

// ConfigEventsChannel returns the Pub/Sub channel name for board config
// row-change events.
// Pattern: huddle:{board_name}:config_events
func ConfigEventsChannel(boardName string) string {
	return fmt.Sprintf("huddle:%s:config_events", boardName)
}

// BroadcastEventsChannel returns the Pub/Sub channel name for ephemeral
// fire-and-forget signals. Broadcast messages are never persisted.
// Pattern: huddle:{board_name}:broadcast_events
func BroadcastEventsChannel(boardName string) string {
	return fmt.Sprintf("huddle:%s:broadcast_events", boardName)
}

// PresenceEventsChannel returns the Pub/Sub channel name for presence
// snapshots.
// Pattern: huddle:{board_name}:presence_events
func PresenceEventsChannel(boardName string) string {
	return fmt.Sprintf("huddle:%s:presence_events", boardName)
}
