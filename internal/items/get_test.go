package items

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddleboard/huddle/pkg/board"
)

func TestGetItem(t *testing.T) {
	t.Run("existing item as pretty JSON", func(t *testing.T) {
		client := setupBoard(t)
		created := addCard(t, client, "Retro cadence works", "col-well", board.Item{AuthorName: "ada"})

		var buf bytes.Buffer
		err := GetItem(context.Background(), client, created.ID, &buf)
		require.NoError(t, err)

		var item board.Item
		require.NoError(t, json.Unmarshal(buf.Bytes(), &item))
		assert.Equal(t, created.ID, item.ID)
		assert.Equal(t, "Retro cadence works", item.Content)
	})

	t.Run("invalid ID format", func(t *testing.T) {
		client := setupBoard(t)

		var buf bytes.Buffer
		err := GetItem(context.Background(), client, "not-a-uuid", &buf)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid item ID format")
	})

	t.Run("missing item yields typed not-found error", func(t *testing.T) {
		client := setupBoard(t)

		var buf bytes.Buffer
		err := GetItem(context.Background(), client, "550e8400-e29b-41d4-a716-446655440000", &buf)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})
}
