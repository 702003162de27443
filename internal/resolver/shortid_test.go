package resolver

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddleboard/huddle/pkg/board"
)

func setupClient(t *testing.T) *board.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "retro")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func createItem(t *testing.T, client *board.Client, columnID string) *board.Item {
	t.Helper()
	item, err := client.CreateItem(context.Background(), &board.Item{
		Content:  "needs discussion",
		ColumnID: columnID,
		Kind:     board.ItemKindCard,
	})
	require.NoError(t, err)
	return item
}

func TestResolveItemID_FullUUID(t *testing.T) {
	client := setupClient(t)
	item := createItem(t, client, "col-1")

	resolved, err := ResolveItemID(context.Background(), client, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, resolved)
}

func TestResolveItemID_FullUUIDNotFound(t *testing.T) {
	client := setupClient(t)

	_, err := ResolveItemID(context.Background(), client, "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item not found")
}

func TestResolveItemID_TooShort(t *testing.T) {
	client := setupClient(t)

	_, err := ResolveItemID(context.Background(), client, "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 6 characters")
}

func TestResolveItemID_PrefixMatch(t *testing.T) {
	client := setupClient(t)
	item := createItem(t, client, "col-1")

	resolved, err := ResolveItemID(context.Background(), client, item.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, item.ID, resolved)
}

func TestResolveItemID_NoMatch(t *testing.T) {
	client := setupClient(t)
	createItem(t, client, "col-1")

	_, err := ResolveItemID(context.Background(), client, "zzzzzz")
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
}

func TestResolveItemID_Ambiguous(t *testing.T) {
	client := setupClient(t)
	for _, id := range []string{"abc123-first", "abc123-second"} {
		_, err := client.CreateItem(context.Background(), &board.Item{
			ID:       id,
			Content:  "needs discussion",
			ColumnID: "col-1",
			Kind:     board.ItemKindCard,
		})
		require.NoError(t, err)
	}

	_, err := ResolveItemID(context.Background(), client, "abc123")
	var ambiguous *AmbiguousError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, "abc123", ambiguous.ShortID)
	assert.Len(t, ambiguous.Matches, 2)
}
