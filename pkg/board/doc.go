// Package board provides the shared data model and the Redis-backed sync
// client for a huddle retrospective board. The board is the central shared
// state system: every connected participant interacts with the same set of
// items and the same board configuration through this package's records.
//
// Items and the board configuration are stored as Redis hashes. Every write
// publishes a row-change event on a Pub/Sub channel after the write succeeds,
// so remote clients can reconcile their local view without polling. Ephemeral
// signals (hand raises, timer pings) travel on a separate broadcast channel
// and are never persisted.
//
// All Redis keys and channels are namespaced by board name to enable multiple
// boards to safely coexist on a single Redis server.
package board
