package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/huddleboard/huddle/pkg/board"
)

// Formatter renders board events for display.
type Formatter interface {
	Format(event *board.Event) error
	FormatError(err error)
}

// NewFormatter returns the default human-readable formatter writing to w.
func NewFormatter(w io.Writer) Formatter {
	return &defaultFormatter{writer: w}
}

type defaultFormatter struct {
	writer io.Writer
}

func (f *defaultFormatter) Format(event *board.Event) error {
	switch event.Kind {
	case board.EventKindRowChange:
		return f.formatRowChange(event.RowChange)
	case board.EventKindBroadcast:
		return f.formatBroadcast(event.Broadcast)
	case board.EventKindPresence:
		return f.formatPresence(event.Participants)
	default:
		_, err := fmt.Fprintf(f.writer, "%s ❓ Unknown event kind: %s\n", timestamp(), event.Kind)
		return err
	}
}

func (f *defaultFormatter) FormatError(err error) {
	fmt.Fprintf(f.writer, "%s ⚠️  Stream error: %v\n", timestamp(), err)
}

func (f *defaultFormatter) formatRowChange(rc *board.RowChange) error {
	if rc == nil {
		return nil
	}

	if rc.Table == board.TableConfig {
		_, err := fmt.Fprintf(f.writer, "%s ⚙️  Board Updated: %d columns\n", timestamp(), len(rc.Config.Columns))
		return err
	}

	item := rc.Item
	var line string
	switch rc.Op {
	case board.RowOpInsert:
		line = fmt.Sprintf("➕ Item Added: by=%s, id=%s", author(item), shortID(item.ID))
		if item.IsGroup() {
			line = fmt.Sprintf("📦 Group Formed: %q, id=%s", item.Content, shortID(item.ID))
		}
	case board.RowOpUpdate:
		line = fmt.Sprintf("✏️  Item Updated: by=%s, id=%s", author(item), shortID(item.ID))
		if item.ParentID != "" {
			line = fmt.Sprintf("📦 Item Grouped: id=%s into group %s", shortID(item.ID), shortID(item.ParentID))
		}
	case board.RowOpDelete:
		line = fmt.Sprintf("🗑  Item Deleted: id=%s", shortID(item.ID))
	}

	_, err := fmt.Fprintf(f.writer, "%s %s\n", timestamp(), line)
	return err
}

func (f *defaultFormatter) formatBroadcast(b *board.Broadcast) error {
	if b == nil {
		return nil
	}

	var line string
	switch b.Event {
	case board.BroadcastHandRaise:
		var payload board.HandRaisePayload
		if err := json.Unmarshal(b.Payload, &payload); err != nil {
			return fmt.Errorf("failed to decode hand raise payload: %w", err)
		}
		if payload.Raised {
			line = fmt.Sprintf("✋ Hand Raised: by=%s", payload.UserID)
		} else {
			line = fmt.Sprintf("🙌 Hand Lowered: by=%s", payload.UserID)
		}
	case board.BroadcastLowerAllHands:
		line = "🙌 All Hands Lowered"
	default:
		line = fmt.Sprintf("📣 Broadcast: %s", b.Event)
	}

	_, err := fmt.Fprintf(f.writer, "%s %s\n", timestamp(), line)
	return err
}

func (f *defaultFormatter) formatPresence(participants []board.User) error {
	names := make([]string, 0, len(participants))
	for _, user := range participants {
		names = append(names, user.Name)
	}
	_, err := fmt.Fprintf(f.writer, "%s 👥 Present (%d): %s\n", timestamp(), len(participants), strings.Join(names, ", "))
	return err
}

// NewJSONFormatter returns a formatter emitting one JSON object per event,
// suitable for piping into jq.
func NewJSONFormatter(w io.Writer) Formatter {
	return &jsonFormatter{writer: w}
}

type jsonFormatter struct {
	writer io.Writer
}

func (f *jsonFormatter) Format(event *board.Event) error {
	record := map[string]interface{}{
		"kind": event.Kind,
	}
	switch event.Kind {
	case board.EventKindRowChange:
		record["row_change"] = event.RowChange
	case board.EventKindBroadcast:
		record["broadcast"] = event.Broadcast
	case board.EventKindPresence:
		record["participants"] = event.Participants
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(f.writer, "%s\n", data)
	return err
}

func (f *jsonFormatter) FormatError(err error) {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	fmt.Fprintf(f.writer, "%s\n", data)
}

func author(item *board.Item) string {
	if item.AuthorName == "" {
		return "unknown"
	}
	return item.AuthorName
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}
