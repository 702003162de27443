package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceTTL is how long a presence registration lives without a heartbeat.
// Clients should re-announce at a fraction of this interval.
const PresenceTTL = 30 * time.Second

// Client provides board-scoped Redis operations: CRUD on items and board
// configuration, presence registration, ephemeral broadcasts, and the inbound
// event subscription. All keys and channels are automatically namespaced with
// the board name. The client is thread-safe and can be used concurrently from
// multiple goroutines.
//
// Every persisted write publishes the corresponding row-change event after
// the write succeeds, so a mutation's direct response and its event-stream
// echo can reach a consumer in either order.
type Client struct {
	rdb       *redis.Client
	boardName string
}

// NewClient creates a new sync client for the specified board.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - boardName: board identifier (must not be empty)
//
// Returns an error if boardName is empty.
func NewClient(redisOpts *redis.Options, boardName string) (*Client, error) {
	if boardName == "" {
		return nil, fmt.Errorf("board name cannot be empty")
	}

	return &Client{
		rdb:       redis.NewClient(redisOpts),
		boardName: boardName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// BoardName returns the board this client is scoped to.
func (c *Client) BoardName() string {
	return c.boardName
}

// CreateItem writes an item to Redis and publishes an insert event.
// A temp or empty ID is replaced with a fresh server-assigned ID; the stored
// record is returned so callers can reconcile their optimistic placeholder.
// Validates the item before writing.
func (c *Client) CreateItem(ctx context.Context, item *Item) (*Item, error) {
	stored := item.Clone()
	if stored.ID == "" || IsTempID(stored.ID) {
		stored.ID = NewID()
	}
	if stored.CreatedAtMs == 0 {
		stored.CreatedAtMs = time.Now().UnixMilli()
	}
	stored.Normalize()

	if err := stored.Validate(); err != nil {
		return nil, fmt.Errorf("invalid item: %w", err)
	}

	hash, err := ItemToHash(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize item: %w", err)
	}

	key := ItemKey(c.boardName, stored.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return nil, fmt.Errorf("failed to write item to Redis: %w", err)
	}

	if err := c.rdb.SAdd(ctx, ItemIndexKey(c.boardName), stored.ID).Err(); err != nil {
		return nil, fmt.Errorf("failed to index item: %w", err)
	}

	if err := c.publishRowChange(ctx, RowOpInsert, stored); err != nil {
		return nil, err
	}

	return stored, nil
}

// GetItem retrieves an item by ID.
// Returns (nil, redis.Nil) if the item doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetItem(ctx context.Context, itemID string) (*Item, error) {
	key := ItemKey(c.boardName, itemID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read item from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys.
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	item, err := HashToItem(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize item: %w", err)
	}

	return item, nil
}

// ItemPatch is a partial update of an item. Nil fields are left untouched;
// non-nil fields replace the stored value wholesale (documented
// last-write-wins, no field-level merging).
type ItemPatch struct {
	Content     *string
	ColumnID    *string
	ParentID    *string // empty string clears the parent
	IsStaged    *bool
	Votes       map[string]int
	Reactions   []Reaction
	Comments    []Comment
	ActionItems []ActionItem
	AuthorName  *string
	AuthorColor *string
}

// hash converts the patch's set fields to Redis hash fields.
func (p *ItemPatch) hash() (map[string]interface{}, error) {
	fields := map[string]interface{}{}

	if p.Content != nil {
		fields["content"] = *p.Content
	}
	if p.ColumnID != nil {
		fields["column_id"] = *p.ColumnID
	}
	if p.ParentID != nil {
		fields["parent_id"] = *p.ParentID
	}
	if p.IsStaged != nil {
		fields["is_staged"] = strconv.FormatBool(*p.IsStaged)
	}
	if p.Votes != nil {
		votes := make(map[string]int, len(p.Votes))
		for userID, n := range p.Votes {
			if n > 0 {
				votes[userID] = n
			}
		}
		votesJSON, err := json.Marshal(votes)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal votes: %w", err)
		}
		fields["votes"] = string(votesJSON)
	}
	if p.Reactions != nil {
		reactionsJSON, err := json.Marshal(p.Reactions)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal reactions: %w", err)
		}
		fields["reactions"] = string(reactionsJSON)
	}
	if p.Comments != nil {
		commentsJSON, err := json.Marshal(p.Comments)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal comments: %w", err)
		}
		fields["comments"] = string(commentsJSON)
	}
	if p.ActionItems != nil {
		actionItemsJSON, err := json.Marshal(p.ActionItems)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal action items: %w", err)
		}
		fields["action_items"] = string(actionItemsJSON)
	}
	if p.AuthorName != nil {
		fields["author_name"] = *p.AuthorName
	}
	if p.AuthorColor != nil {
		fields["author_color"] = *p.AuthorColor
	}

	return fields, nil
}

// UpdateItem applies a partial update to an item and publishes an update
// event carrying the full post-update record.
// Returns (nil, redis.Nil) if the item doesn't exist.
func (c *Client) UpdateItem(ctx context.Context, itemID string, patch ItemPatch) (*Item, error) {
	key := ItemKey(c.boardName, itemID)

	exists, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check item existence: %w", err)
	}
	if exists == 0 {
		return nil, redis.Nil
	}

	fields, err := patch.hash()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize patch: %w", err)
	}

	if len(fields) > 0 {
		if err := c.rdb.HSet(ctx, key, fields).Err(); err != nil {
			return nil, fmt.Errorf("failed to update item in Redis: %w", err)
		}
	}

	updated, err := c.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if err := c.publishRowChange(ctx, RowOpUpdate, updated); err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteItem removes an item and publishes a delete event carrying the last
// known record. Deleting a non-existent item is a no-op, which makes
// concurrent dissolve repairs from multiple clients safe.
func (c *Client) DeleteItem(ctx context.Context, itemID string) error {
	record, err := c.GetItem(ctx, itemID)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	key := ItemKey(c.boardName, itemID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete item from Redis: %w", err)
	}

	if err := c.rdb.SRem(ctx, ItemIndexKey(c.boardName), itemID).Err(); err != nil {
		return fmt.Errorf("failed to unindex item: %w", err)
	}

	return c.publishRowChange(ctx, RowOpDelete, record)
}

// FetchItems retrieves all items on the board, ordered by creation time.
// Items deleted between the index read and the hash read are skipped.
func (c *Client) FetchItems(ctx context.Context) ([]*Item, error) {
	ids, err := c.rdb.SMembers(ctx, ItemIndexKey(c.boardName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read item index: %w", err)
	}

	items := make([]*Item, 0, len(ids))
	for _, id := range ids {
		item, err := c.GetItem(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		items = append(items, item)
	}

	sort.Slice(items, func(a, b int) bool {
		if items[a].CreatedAtMs != items[b].CreatedAtMs {
			return items[a].CreatedAtMs < items[b].CreatedAtMs
		}
		return items[a].ID < items[b].ID
	})

	return items, nil
}

// ScanItems returns the IDs of all items whose ID starts with the given
// prefix. Used by the CLI to resolve short IDs.
func (c *Client) ScanItems(ctx context.Context, prefix string) ([]string, error) {
	ids, err := c.rdb.SMembers(ctx, ItemIndexKey(c.boardName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read item index: %w", err)
	}

	var matches []string
	for _, id := range ids {
		if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
			matches = append(matches, id)
		}
	}

	return matches, nil
}

// FetchConfig retrieves the board configuration.
// Returns (nil, redis.Nil) if the board has never been configured.
func (c *Client) FetchConfig(ctx context.Context) (*BoardConfig, error) {
	hashData, err := c.rdb.HGetAll(ctx, ConfigKey(c.boardName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read board config from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	config, err := HashToConfig(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize board config: %w", err)
	}

	return config, nil
}

// UpdateConfig replaces the board configuration (full replacement) and
// publishes a config row-change event. Validates the config before writing.
func (c *Client) UpdateConfig(ctx context.Context, config *BoardConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid board config: %w", err)
	}

	key := ConfigKey(c.boardName)
	existed, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check config existence: %w", err)
	}

	hash, err := ConfigToHash(config)
	if err != nil {
		return fmt.Errorf("failed to serialize board config: %w", err)
	}

	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write board config to Redis: %w", err)
	}

	op := RowOpUpdate
	if existed == 0 {
		op = RowOpInsert
	}

	rc := RowChange{Table: TableConfig, Op: op, Config: config}
	payload, err := json.Marshal(&rc)
	if err != nil {
		return fmt.Errorf("failed to marshal config event: %w", err)
	}

	channel := ConfigEventsChannel(c.boardName)
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish config event: %w", err)
	}

	return nil
}

// SendBroadcast publishes an ephemeral fire-and-forget signal. Broadcasts are
// not persisted and skip the row-change path entirely, to minimize latency
// for transient UI state like hand raises.
func (c *Client) SendBroadcast(ctx context.Context, event, senderID string, payload interface{}) error {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal broadcast payload: %w", err)
		}
		raw = data
	}

	b := Broadcast{Event: event, SenderID: senderID, Payload: raw}
	data, err := json.Marshal(&b)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast: %w", err)
	}

	channel := BroadcastEventsChannel(c.boardName)
	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish broadcast: %w", err)
	}

	return nil
}

// AnnouncePresence registers a participant as connected and publishes a
// fresh presence snapshot. The registration expires after PresenceTTL unless
// re-announced, so crashed clients drop out of the participant list on their
// own.
func (c *Client) AnnouncePresence(ctx context.Context, user User) error {
	data, err := json.Marshal(&user)
	if err != nil {
		return fmt.Errorf("failed to marshal presence record: %w", err)
	}

	key := PresenceKey(c.boardName, user.ID)
	if err := c.rdb.Set(ctx, key, data, PresenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to write presence record: %w", err)
	}

	return c.publishPresence(ctx)
}

// RetirePresence removes a participant's presence registration and publishes
// a fresh snapshot. Called on clean disconnect.
func (c *Client) RetirePresence(ctx context.Context, userID string) error {
	key := PresenceKey(c.boardName, userID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete presence record: %w", err)
	}

	return c.publishPresence(ctx)
}

// FetchPresence returns the currently connected participants, sorted by name
// then ID for stable output.
func (c *Client) FetchPresence(ctx context.Context) ([]User, error) {
	var users []User

	iter := c.rdb.Scan(ctx, 0, PresenceKeyPattern(c.boardName), 0).Iterator()
	for iter.Next(ctx) {
		data, err := c.rdb.Get(ctx, iter.Val()).Result()
		if err != nil {
			// Key expired between scan and read.
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("failed to read presence record: %w", err)
		}

		var user User
		if err := json.Unmarshal([]byte(data), &user); err != nil {
			return nil, fmt.Errorf("failed to unmarshal presence record: %w", err)
		}
		users = append(users, user)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan presence keys: %w", err)
	}

	sort.Slice(users, func(a, b int) bool {
		if users[a].Name != users[b].Name {
			return users[a].Name < users[b].Name
		}
		return users[a].ID < users[b].ID
	})

	return users, nil
}

// publishPresence publishes the current participant snapshot.
func (c *Client) publishPresence(ctx context.Context) error {
	users, err := c.FetchPresence(ctx)
	if err != nil {
		return err
	}
	if users == nil {
		users = []User{}
	}

	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("failed to marshal presence snapshot: %w", err)
	}

	channel := PresenceEventsChannel(c.boardName)
	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish presence snapshot: %w", err)
	}

	return nil
}

// publishRowChange publishes an item row-change event carrying the full
// record.
func (c *Client) publishRowChange(ctx context.Context, op RowOp, item *Item) error {
	rc := RowChange{Table: TableItems, Op: op, Item: item}
	payload, err := json.Marshal(&rc)
	if err != nil {
		return fmt.Errorf("failed to marshal item event: %w", err)
	}

	channel := ItemEventsChannel(c.boardName)
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish item event: %w", err)
	}

	return nil
}

// Subscription represents an active Pub/Sub subscription to board events.
// Caller must call Close() when done to clean up resources.
// Subscriptions deliver decoded Event unions via the Events() channel.
type Subscription struct {
	events <-chan Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of board events.
// The channel will be closed when the subscription is closed or the context
// is cancelled.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe subscribes to all event classes for this board: item and config
// row changes, ephemeral broadcasts, and presence snapshots, merged into one
// decoded stream. Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 16) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub
// (at-most-once delivery per subscriber); consumers heal via idempotent
// re-checks rather than relying on complete delivery.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	itemCh := ItemEventsChannel(c.boardName)
	configCh := ConfigEventsChannel(c.boardName)
	broadcastCh := BroadcastEventsChannel(c.boardName)
	presenceCh := PresenceEventsChannel(c.boardName)

	pubsub := c.rdb.Subscribe(ctx, itemCh, configCh, broadcastCh, presenceCh)

	eventsChan := make(chan Event, 16)
	errorsChan := make(chan error, 16)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				event, err := decodeMessage(msg.Channel, []byte(msg.Payload), itemCh, configCh, broadcastCh, presenceCh)
				if err != nil {
					// Send error on error channel, skip message.
					select {
					case errorsChan <- err:
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// decodeMessage maps a raw Pub/Sub message onto the Event union based on the
// channel it arrived on.
func decodeMessage(channel string, payload []byte, itemCh, configCh, broadcastCh, presenceCh string) (Event, error) {
	switch channel {
	case itemCh, configCh:
		rc, err := decodeRowChange(payload)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: EventKindRowChange, RowChange: rc}, nil

	case broadcastCh:
		b, err := decodeBroadcast(payload)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: EventKindBroadcast, Broadcast: b}, nil

	case presenceCh:
		users, err := decodePresence(payload)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: EventKindPresence, Participants: users}, nil

	default:
		return Event{}, fmt.Errorf("message on unexpected channel: %q", channel)
	}
}

// IsNotFound returns true if the error is a Redis "key not found" error
// (redis.Nil). Use this to check if GetItem or FetchConfig returned
// "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
