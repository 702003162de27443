package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddleboard/huddle/pkg/board"
)

func card(id, columnID string) *board.Item {
	return &board.Item{
		ID:          id,
		Content:     "card " + id,
		ColumnID:    columnID,
		Kind:        board.ItemKindCard,
		AuthorID:    "user-alice",
		CreatedAtMs: 1000,
	}
}

func group(id, columnID string) *board.Item {
	g := card(id, columnID)
	g.Kind = board.ItemKindGroup
	g.Content = "Group"
	return g
}

func TestInsert(t *testing.T) {
	s := New()

	err := s.Insert(card("item-1", "col-a"))
	require.NoError(t, err)

	got, ok := s.Get("item-1")
	require.True(t, ok)
	assert.Equal(t, "card item-1", got.Content)
	assert.Equal(t, 1, s.Len())
}

func TestInsert_Duplicate(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(card("item-1", "col-a")))

	err := s.Insert(card("item-1", "col-a"))
	assert.ErrorIs(t, err, ErrExists)
	assert.Equal(t, 1, s.Len())
}

func TestInsert_InvalidItem(t *testing.T) {
	s := New()

	err := s.Insert(&board.Item{ID: "item-1"}) // missing column
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestGet_ReturnsDeepCopy(t *testing.T) {
	s := New()
	item := card("item-1", "col-a")
	item.Votes = map[string]int{"user-bob": 2}
	require.NoError(t, s.Insert(item))

	got, ok := s.Get("item-1")
	require.True(t, ok)
	got.Content = "mutated"
	got.Votes["user-bob"] = 99

	again, ok := s.Get("item-1")
	require.True(t, ok)
	assert.Equal(t, "card item-1", again.Content)
	assert.Equal(t, 2, again.Votes["user-bob"])
}

func TestUpsert_DegradesToUpdate(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(card("item-1", "col-a")))

	// The same record arriving again must not duplicate or error.
	replay := card("item-1", "col-a")
	replay.Content = "edited remotely"
	require.NoError(t, s.Upsert(replay))

	got, ok := s.Get("item-1")
	require.True(t, ok)
	assert.Equal(t, "edited remotely", got.Content)
	assert.Equal(t, 1, s.Len())
}

func TestUpsert_MaintainsChildIndex(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(group("group-1", "col-a")))
	require.NoError(t, s.Insert(group("group-2", "col-a")))

	member := card("item-1", "col-a")
	member.ParentID = "group-1"
	require.NoError(t, s.Upsert(member))
	assert.Equal(t, 1, s.MemberCount("group-1"))

	// Remote update moving the member to another group re-buckets it.
	moved := member.Clone()
	moved.ParentID = "group-2"
	require.NoError(t, s.Upsert(moved))

	assert.Equal(t, 0, s.MemberCount("group-1"))
	assert.Equal(t, 1, s.MemberCount("group-2"))
}

func TestReplaceID(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(card("temp-1", "col-a")))

	confirmed := card("item-real", "col-a")
	require.NoError(t, s.ReplaceID("temp-1", confirmed))

	assert.False(t, s.Has("temp-1"))
	assert.True(t, s.Has("item-real"))
	assert.Equal(t, 1, s.Len())
}

func TestReplaceID_Idempotent(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(card("temp-1", "col-a")))

	confirmed := card("item-real", "col-a")
	require.NoError(t, s.ReplaceID("temp-1", confirmed))
	require.NoError(t, s.ReplaceID("temp-1", confirmed))

	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Has("item-real"))
}

func TestReplaceID_AfterRemoteDelivery(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(card("temp-1", "col-a")))

	// The change stream races the create response and delivers first.
	confirmed := card("item-real", "col-a")
	require.NoError(t, s.Upsert(confirmed))
	require.NoError(t, s.ReplaceID("temp-1", confirmed))

	assert.False(t, s.Has("temp-1"))
	assert.True(t, s.Has("item-real"))
	assert.Equal(t, 1, s.Len())
}

func TestUpdate(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(card("item-1", "col-a")))

	err := s.Update("item-1", func(i *board.Item) {
		i.Content = "updated"
	})
	require.NoError(t, err)

	got, _ := s.Get("item-1")
	assert.Equal(t, "updated", got.Content)
}

func TestUpdate_NotFound(t *testing.T) {
	s := New()
	err := s.Update("nope", func(i *board.Item) {})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_ReindexesParentChange(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(group("group-1", "col-a")))
	member := card("item-1", "col-a")
	member.ParentID = "group-1"
	require.NoError(t, s.Insert(member))
	require.Equal(t, 1, s.MemberCount("group-1"))

	err := s.Update("item-1", func(i *board.Item) {
		i.ParentID = ""
	})
	require.NoError(t, err)
	assert.Equal(t, 0, s.MemberCount("group-1"))
}

func TestDelete(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(group("group-1", "col-a")))
	member := card("item-1", "col-a")
	member.ParentID = "group-1"
	require.NoError(t, s.Insert(member))

	s.Delete("item-1")
	assert.False(t, s.Has("item-1"))
	assert.Equal(t, 0, s.MemberCount("group-1"))
}

func TestDelete_UnknownIDIsNoOp(t *testing.T) {
	s := New()
	s.Delete("nope")
	assert.Equal(t, 0, s.Len())
}

func TestReparent_AdoptsGroupPlacement(t *testing.T) {
	s := New()
	g := group("group-1", "col-b")
	g.IsStaged = true
	require.NoError(t, s.Insert(g))
	require.NoError(t, s.Insert(card("item-1", "col-a")))

	require.NoError(t, s.Reparent("item-1", "group-1"))

	got, _ := s.Get("item-1")
	assert.Equal(t, "group-1", got.ParentID)
	assert.Equal(t, "col-b", got.ColumnID)
	assert.True(t, got.IsStaged)
	assert.Equal(t, 1, s.MemberCount("group-1"))
}

func TestReparent_ClearParent(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(group("group-1", "col-a")))
	member := card("item-1", "col-a")
	member.ParentID = "group-1"
	require.NoError(t, s.Insert(member))

	require.NoError(t, s.Reparent("item-1", ""))

	got, _ := s.Get("item-1")
	assert.Empty(t, got.ParentID)
	assert.Equal(t, 0, s.MemberCount("group-1"))
}

func TestReparent_RejectsNonGroupTarget(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(card("item-1", "col-a")))
	require.NoError(t, s.Insert(card("item-2", "col-a")))

	err := s.Reparent("item-1", "item-2")
	assert.Error(t, err)

	got, _ := s.Get("item-1")
	assert.Empty(t, got.ParentID)
}

func TestReparent_RejectsSelfParent(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(card("item-1", "col-a")))

	err := s.Reparent("item-1", "item-1")
	assert.Error(t, err)
}

func TestReparent_UnknownTarget(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(card("item-1", "col-a")))

	err := s.Reparent("item-1", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetColumn_ClearsParent(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(group("group-1", "col-a")))
	member := card("item-1", "col-a")
	member.ParentID = "group-1"
	require.NoError(t, s.Insert(member))

	staged := false
	require.NoError(t, s.SetColumn("item-1", "col-b", &staged))

	got, _ := s.Get("item-1")
	assert.Equal(t, "col-b", got.ColumnID)
	assert.Empty(t, got.ParentID)
	assert.False(t, got.IsStaged)
	assert.Equal(t, 0, s.MemberCount("group-1"))
}

func TestSetColumn_NilStagedPreservesState(t *testing.T) {
	s := New()
	item := card("item-1", "col-a")
	item.IsStaged = true
	require.NoError(t, s.Insert(item))

	require.NoError(t, s.SetColumn("item-1", "col-b", nil))

	got, _ := s.Get("item-1")
	assert.True(t, got.IsStaged)
}

func TestChildren_Ordering(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(group("group-1", "col-a")))

	a := card("item-a", "col-a")
	a.ParentID = "group-1"
	a.CreatedAtMs = 3000
	b := card("item-b", "col-a")
	b.ParentID = "group-1"
	b.CreatedAtMs = 1000
	c := card("item-c", "col-a")
	c.ParentID = "group-1"
	c.CreatedAtMs = 1000
	for _, item := range []*board.Item{a, b, c} {
		require.NoError(t, s.Insert(item))
	}

	members := s.Children("group-1")
	require.Len(t, members, 3)
	assert.Equal(t, "item-b", members[0].ID)
	assert.Equal(t, "item-c", members[1].ID)
	assert.Equal(t, "item-a", members[2].ID)
}

func TestChildren_UnknownGroup(t *testing.T) {
	s := New()
	assert.Nil(t, s.Children("nope"))
}

func TestGroups(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(card("item-1", "col-a")))
	require.NoError(t, s.Insert(group("group-b", "col-a")))
	require.NoError(t, s.Insert(group("group-a", "col-a")))

	groups := s.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "group-a", groups[0].ID)
	assert.Equal(t, "group-b", groups[1].ID)
}

func TestColumns(t *testing.T) {
	s := New()
	s.SetColumns([]board.Column{
		{ID: "col-a", Title: "What went well"},
		{ID: "col-b", Title: "Ideas"},
	})

	cols := s.Columns()
	require.Len(t, cols, 2)

	// The returned slice is a copy.
	cols[0].Title = "mutated"
	col, ok := s.ColumnByID("col-a")
	require.True(t, ok)
	assert.Equal(t, "What went well", col.Title)

	_, ok = s.ColumnByID("nope")
	assert.False(t, ok)
}

func TestItems_Ordering(t *testing.T) {
	s := New()
	late := card("item-late", "col-a")
	late.CreatedAtMs = 5000
	early := card("item-early", "col-a")
	early.CreatedAtMs = 1000
	require.NoError(t, s.Insert(late))
	require.NoError(t, s.Insert(early))

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "item-early", items[0].ID)
	assert.Equal(t, "item-late", items[1].ID)
}
