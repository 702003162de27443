package board

import (
	"encoding/json"
	"fmt"
)

// Inbound event stream types
//
// The subscription delivers a closed union of three message classes: row
// changes (persisted inserts/updates/deletes of items and board config),
// ephemeral broadcasts, and presence snapshots. Unknown shapes are rejected
// at this boundary so downstream reconciliation never sees them.

// EventKind identifies which class of message an Event carries.
type EventKind string

const (
	// EventKindRowChange is a persisted insert/update/delete of a record.
	EventKindRowChange EventKind = "row_change"

	// EventKindBroadcast is an ephemeral fire-and-forget signal.
	EventKindBroadcast EventKind = "broadcast"

	// EventKindPresence is a snapshot of currently connected participants.
	EventKindPresence EventKind = "presence"
)

// Table identifies which record type a row change applies to.
type Table string

const (
	TableItems  Table = "items"
	TableConfig Table = "config"
)

// RowOp is the mutation type of a row-change event.
type RowOp string

const (
	RowOpInsert RowOp = "insert"
	RowOpUpdate RowOp = "update"
	RowOpDelete RowOp = "delete"
)

// Validate checks if the RowOp is a valid enum value.
func (op RowOp) Validate() error {
	switch op {
	case RowOpInsert, RowOpUpdate, RowOpDelete:
		return nil
	default:
		return fmt.Errorf("unknown row op: %q", op)
	}
}

// RowChange describes a persisted mutation. Exactly one of Item and Config is
// set, matching Table. Delivery is at-least-once: consumers must treat a
// repeated event for the same record as an update, not a duplicate insert.
type RowChange struct {
	Table  Table        `json:"table"`
	Op     RowOp        `json:"op"`
	Item   *Item        `json:"item,omitempty"`
	Config *BoardConfig `json:"config,omitempty"`
}

// Broadcast is an ephemeral signal. The payload shape is event-specific and
// left to the two endpoints that agree on the event name.
type Broadcast struct {
	Event    string          `json:"event"`
	SenderID string          `json:"sender_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Well-known broadcast event names.
const (
	// BroadcastHandRaise toggles a participant's raised hand. Payload is a
	// HandRaisePayload.
	BroadcastHandRaise = "hand_raise"

	// BroadcastLowerAllHands lowers every raised hand. No payload.
	BroadcastLowerAllHands = "lower_all_hands"
)

// HandRaisePayload is the payload of a BroadcastHandRaise event.
type HandRaisePayload struct {
	UserID     string `json:"user_id"`
	Raised     bool   `json:"raised"`
	RaisedAtMs int64  `json:"raised_at_ms,omitempty"`
}

// Event is the closed union delivered by a Subscription.
type Event struct {
	Kind         EventKind
	RowChange    *RowChange // set when Kind == EventKindRowChange
	Broadcast    *Broadcast // set when Kind == EventKindBroadcast
	Participants []User     // set when Kind == EventKindPresence
}

// decodeRowChange parses a row-change wire payload and normalizes the
// embedded record. Returns an error for malformed or incomplete payloads.
func decodeRowChange(payload []byte) (*RowChange, error) {
	var rc RowChange
	if err := json.Unmarshal(payload, &rc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal row change: %w", err)
	}

	if err := rc.Op.Validate(); err != nil {
		return nil, err
	}

	switch rc.Table {
	case TableItems:
		if rc.Item == nil {
			return nil, fmt.Errorf("row change for table %q has no item record", rc.Table)
		}
		rc.Item.Normalize()
	case TableConfig:
		if rc.Config == nil {
			return nil, fmt.Errorf("row change for table %q has no config record", rc.Table)
		}
	default:
		return nil, fmt.Errorf("unknown row change table: %q", rc.Table)
	}

	return &rc, nil
}

// decodeBroadcast parses a broadcast wire payload.
func decodeBroadcast(payload []byte) (*Broadcast, error) {
	var b Broadcast
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal broadcast: %w", err)
	}
	if b.Event == "" {
		return nil, fmt.Errorf("broadcast has empty event name")
	}
	return &b, nil
}

// decodePresence parses a presence snapshot wire payload.
func decodePresence(payload []byte) ([]User, error) {
	var users []User
	if err := json.Unmarshal(payload, &users); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence snapshot: %w", err)
	}
	return users, nil
}
