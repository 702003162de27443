package board

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-board")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func testItem() *Item {
	return &Item{
		Content:     "daily standup is too long",
		ColumnID:    "col-a",
		Kind:        ItemKindCard,
		AuthorID:    "user-alice",
		AuthorName:  "Alice",
		AuthorColor: "teal",
	}
}

func nextEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case event := <-sub.Events():
		return event
	case err := <-sub.Errors():
		t.Fatalf("subscription error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-board", client.BoardName())
	})

	t.Run("rejects empty board name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "board name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestCreateItem(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("assigns server ID and timestamp", func(t *testing.T) {
		stored, err := client.CreateItem(ctx, testItem())
		require.NoError(t, err)

		assert.NotEmpty(t, stored.ID)
		assert.False(t, IsTempID(stored.ID))
		assert.NotZero(t, stored.CreatedAtMs)

		retrieved, err := client.GetItem(ctx, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, stored, retrieved)
	})

	t.Run("replaces temp ID", func(t *testing.T) {
		item := testItem()
		item.ID = NewTempID()

		stored, err := client.CreateItem(ctx, item)
		require.NoError(t, err)
		assert.False(t, IsTempID(stored.ID))

		// The temp ID never reaches Redis.
		_, err = client.GetItem(ctx, item.ID)
		assert.True(t, IsNotFound(err))
	})

	t.Run("rejects invalid item", func(t *testing.T) {
		item := testItem()
		item.ColumnID = ""

		_, err := client.CreateItem(ctx, item)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid item")
	})

	t.Run("publishes insert event", func(t *testing.T) {
		sub, err := client.Subscribe(ctx)
		require.NoError(t, err)
		defer sub.Close()
		time.Sleep(10 * time.Millisecond)

		stored, err := client.CreateItem(ctx, testItem())
		require.NoError(t, err)

		event := nextEvent(t, sub)
		require.Equal(t, EventKindRowChange, event.Kind)
		assert.Equal(t, TableItems, event.RowChange.Table)
		assert.Equal(t, RowOpInsert, event.RowChange.Op)
		assert.Equal(t, stored.ID, event.RowChange.Item.ID)
	})
}

func TestGetItem_NotFound(t *testing.T) {
	client, _ := setupTestClient(t)

	retrieved, err := client.GetItem(context.Background(), NewID())
	assert.Nil(t, retrieved)
	assert.True(t, IsNotFound(err))
}

func TestUpdateItem(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("applies partial patch", func(t *testing.T) {
		stored, err := client.CreateItem(ctx, testItem())
		require.NoError(t, err)

		content := "standup should be async"
		staged := true
		updated, err := client.UpdateItem(ctx, stored.ID, ItemPatch{
			Content:  &content,
			IsStaged: &staged,
		})
		require.NoError(t, err)

		assert.Equal(t, content, updated.Content)
		assert.True(t, updated.IsStaged)
		// Untouched fields survive.
		assert.Equal(t, stored.ColumnID, updated.ColumnID)
		assert.Equal(t, stored.AuthorID, updated.AuthorID)
	})

	t.Run("empty parent ID clears membership", func(t *testing.T) {
		item := testItem()
		item.ParentID = "group-1"
		stored, err := client.CreateItem(ctx, item)
		require.NoError(t, err)

		cleared := ""
		updated, err := client.UpdateItem(ctx, stored.ID, ItemPatch{ParentID: &cleared})
		require.NoError(t, err)
		assert.Empty(t, updated.ParentID)
	})

	t.Run("replaces vote map wholesale", func(t *testing.T) {
		item := testItem()
		item.Votes = map[string]int{"user-alice": 1, "user-bob": 2}
		stored, err := client.CreateItem(ctx, item)
		require.NoError(t, err)

		updated, err := client.UpdateItem(ctx, stored.ID, ItemPatch{
			Votes: map[string]int{"user-alice": 2},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"user-alice": 2}, updated.Votes)
	})

	t.Run("returns redis.Nil for unknown item", func(t *testing.T) {
		content := "nope"
		_, err := client.UpdateItem(ctx, NewID(), ItemPatch{Content: &content})
		assert.True(t, IsNotFound(err))
	})

	t.Run("publishes update event with full record", func(t *testing.T) {
		stored, err := client.CreateItem(ctx, testItem())
		require.NoError(t, err)

		sub, err := client.Subscribe(ctx)
		require.NoError(t, err)
		defer sub.Close()
		time.Sleep(10 * time.Millisecond)

		content := "updated content"
		_, err = client.UpdateItem(ctx, stored.ID, ItemPatch{Content: &content})
		require.NoError(t, err)

		event := nextEvent(t, sub)
		require.Equal(t, EventKindRowChange, event.Kind)
		assert.Equal(t, RowOpUpdate, event.RowChange.Op)
		assert.Equal(t, content, event.RowChange.Item.Content)
		assert.Equal(t, stored.AuthorID, event.RowChange.Item.AuthorID)
	})
}

func TestDeleteItem(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("removes item and index entry", func(t *testing.T) {
		stored, err := client.CreateItem(ctx, testItem())
		require.NoError(t, err)

		require.NoError(t, client.DeleteItem(ctx, stored.ID))

		_, err = client.GetItem(ctx, stored.ID)
		assert.True(t, IsNotFound(err))

		items, err := client.FetchItems(ctx)
		require.NoError(t, err)
		for _, item := range items {
			assert.NotEqual(t, stored.ID, item.ID)
		}
	})

	t.Run("deleting unknown item is a no-op", func(t *testing.T) {
		assert.NoError(t, client.DeleteItem(ctx, NewID()))
	})

	t.Run("publishes delete event with last record", func(t *testing.T) {
		stored, err := client.CreateItem(ctx, testItem())
		require.NoError(t, err)

		sub, err := client.Subscribe(ctx)
		require.NoError(t, err)
		defer sub.Close()
		time.Sleep(10 * time.Millisecond)

		require.NoError(t, client.DeleteItem(ctx, stored.ID))

		event := nextEvent(t, sub)
		require.Equal(t, EventKindRowChange, event.Kind)
		assert.Equal(t, RowOpDelete, event.RowChange.Op)
		assert.Equal(t, stored.ID, event.RowChange.Item.ID)
	})
}

func TestFetchItems(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("empty board", func(t *testing.T) {
		items, err := client.FetchItems(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("ordered by creation time", func(t *testing.T) {
		late := testItem()
		late.CreatedAtMs = 5000
		early := testItem()
		early.CreatedAtMs = 1000

		storedLate, err := client.CreateItem(ctx, late)
		require.NoError(t, err)
		storedEarly, err := client.CreateItem(ctx, early)
		require.NoError(t, err)

		items, err := client.FetchItems(ctx)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, storedEarly.ID, items[0].ID)
		assert.Equal(t, storedLate.ID, items[1].ID)
	})
}

func TestScanItems(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	item := testItem()
	item.ID = "abc123-full-id"
	item.CreatedAtMs = 1000
	_, err := client.CreateItem(ctx, item)
	require.NoError(t, err)

	// CreateItem keeps non-temp IDs as given; verify prefix resolution.
	matches, err := client.ScanItems(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc123-full-id"}, matches)

	matches, err = client.ScanItems(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestConfig(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("fetch before configure returns redis.Nil", func(t *testing.T) {
		_, err := client.FetchConfig(ctx)
		assert.True(t, IsNotFound(err))
	})

	t.Run("update then fetch round-trips", func(t *testing.T) {
		cfg := &BoardConfig{
			Columns: []Column{
				{ID: "col-a", Title: "What went well", ColorTheme: "green"},
			},
			Permissions: Permissions{EditOthers: true},
		}
		require.NoError(t, client.UpdateConfig(ctx, cfg))

		got, err := client.FetchConfig(ctx)
		require.NoError(t, err)
		assert.Equal(t, cfg, got)
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		err := client.UpdateConfig(ctx, &BoardConfig{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid board config")
	})

	t.Run("first write publishes insert, second publishes update", func(t *testing.T) {
		fresh, err := NewClient(&redis.Options{Addr: clientAddr(t, client)}, "config-events-board")
		require.NoError(t, err)
		t.Cleanup(func() { fresh.Close() })

		sub, err := fresh.Subscribe(ctx)
		require.NoError(t, err)
		defer sub.Close()
		time.Sleep(10 * time.Millisecond)

		cfg := &BoardConfig{Columns: []Column{{ID: "col-a", Title: "Ideas"}}}
		require.NoError(t, fresh.UpdateConfig(ctx, cfg))

		event := nextEvent(t, sub)
		require.Equal(t, EventKindRowChange, event.Kind)
		assert.Equal(t, TableConfig, event.RowChange.Table)
		assert.Equal(t, RowOpInsert, event.RowChange.Op)

		require.NoError(t, fresh.UpdateConfig(ctx, cfg))
		event = nextEvent(t, sub)
		assert.Equal(t, RowOpUpdate, event.RowChange.Op)
	})
}

// clientAddr digs the Redis address back out of an existing test client so a
// second board client can share the same miniredis.
func clientAddr(t *testing.T, c *Client) string {
	t.Helper()
	return c.rdb.Options().Addr
}

func TestBroadcast(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()
	time.Sleep(10 * time.Millisecond)

	payload := HandRaisePayload{UserID: "user-alice", Raised: true, RaisedAtMs: 1000}
	require.NoError(t, client.SendBroadcast(ctx, BroadcastHandRaise, "user-alice", payload))

	event := nextEvent(t, sub)
	require.Equal(t, EventKindBroadcast, event.Kind)
	assert.Equal(t, BroadcastHandRaise, event.Broadcast.Event)
	assert.Equal(t, "user-alice", event.Broadcast.SenderID)
	assert.NotEmpty(t, event.Broadcast.Payload)
}

func TestPresence(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("announce and fetch", func(t *testing.T) {
		alice := User{ID: "user-alice", Name: "Alice", Color: "teal"}
		bob := User{ID: "user-bob", Name: "Bob", Color: "red"}
		require.NoError(t, client.AnnouncePresence(ctx, bob))
		require.NoError(t, client.AnnouncePresence(ctx, alice))

		users, err := client.FetchPresence(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "Alice", users[0].Name)
		assert.Equal(t, "Bob", users[1].Name)
	})

	t.Run("retire removes registration", func(t *testing.T) {
		require.NoError(t, client.RetirePresence(ctx, "user-bob"))

		users, err := client.FetchPresence(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "user-alice", users[0].ID)
	})

	t.Run("announce publishes snapshot", func(t *testing.T) {
		sub, err := client.Subscribe(ctx)
		require.NoError(t, err)
		defer sub.Close()
		time.Sleep(10 * time.Millisecond)

		eve := User{ID: "user-eve", Name: "Eve", Color: "purple", HandRaised: true}
		require.NoError(t, client.AnnouncePresence(ctx, eve))

		event := nextEvent(t, sub)
		require.Equal(t, EventKindPresence, event.Kind)
		names := make([]string, 0, len(event.Participants))
		for _, u := range event.Participants {
			names = append(names, u.Name)
		}
		assert.Contains(t, names, "Eve")
	})

	t.Run("registration expires without heartbeat", func(t *testing.T) {
		client, mr := setupTestClient(t)
		require.NoError(t, client.AnnouncePresence(ctx, User{ID: "user-ghost", Name: "Ghost"}))

		mr.FastForward(PresenceTTL + time.Second)

		users, err := client.FetchPresence(ctx)
		require.NoError(t, err)
		assert.Empty(t, users)
	})
}

func TestSubscribe(t *testing.T) {
	client, _ := setupTestClient(t)

	t.Run("malformed payloads surface on error channel", func(t *testing.T) {
		ctx := context.Background()
		sub, err := client.Subscribe(ctx)
		require.NoError(t, err)
		defer sub.Close()
		time.Sleep(10 * time.Millisecond)

		require.NoError(t, client.rdb.Publish(ctx, ItemEventsChannel("test-board"), "{not json").Err())

		select {
		case err := <-sub.Errors():
			assert.Error(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for decode error")
		}

		// A valid event still arrives after the bad one was skipped.
		_, err = client.CreateItem(ctx, testItem())
		require.NoError(t, err)
		event := nextEvent(t, sub)
		assert.Equal(t, EventKindRowChange, event.Kind)
	})

	t.Run("context cancellation closes channels", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		sub, err := client.Subscribe(ctx)
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)

		cancel()

		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok, "events channel should be closed")
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for events channel to close")
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		sub, err := client.Subscribe(context.Background())
		require.NoError(t, err)
		assert.NoError(t, sub.Close())
		assert.NoError(t, sub.Close())
	})
}
