// Package store holds the canonical in-memory representation of one board
// session: the item map, the column list, and a parent-to-children index
// maintained transactionally alongside the item map. Every structural
// mutation - regardless of whether it originated locally, as a server
// confirmation, or from the remote change stream - goes through the named
// primitives here, so the grouping and staging invariants have a single
// choke point.
//
// The store is not safe for concurrent use; the reconciliation engine owns
// it and serializes access.
package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/huddleboard/huddle/pkg/board"
)

// ErrExists is returned by Insert when a record with the same ID is already
// present.
var ErrExists = errors.New("item already exists")

// ErrNotFound is returned by mutation primitives targeting an unknown ID.
var ErrNotFound = errors.New("item not found")

// Store is the canonical item/column state for one board session.
type Store struct {
	items    map[string]*board.Item
	children map[string]map[string]struct{} // group ID -> member IDs
	columns  []board.Column
}

// New creates an empty store.
func New() *Store {
	return &Store{
		items:    make(map[string]*board.Item),
		children: make(map[string]map[string]struct{}),
	}
}

// SetColumns replaces the column list.
func (s *Store) SetColumns(columns []board.Column) {
	s.columns = make([]board.Column, len(columns))
	copy(s.columns, columns)
}

// Columns returns a copy of the column list.
func (s *Store) Columns() []board.Column {
	columns := make([]board.Column, len(s.columns))
	copy(columns, s.columns)
	return columns
}

// ColumnByID returns the column with the given ID, or false when absent.
func (s *Store) ColumnByID(id string) (board.Column, bool) {
	for _, col := range s.columns {
		if col.ID == id {
			return col, true
		}
	}
	return board.Column{}, false
}

// Get returns a deep copy of the item with the given ID.
func (s *Store) Get(id string) (*board.Item, bool) {
	item, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return item.Clone(), true
}

// Has reports whether an item with the given ID exists.
func (s *Store) Has(id string) bool {
	_, ok := s.items[id]
	return ok
}

// Len returns the number of items in the store.
func (s *Store) Len() int {
	return len(s.items)
}

// Items returns deep copies of all items, ordered by creation time then ID.
func (s *Store) Items() []*board.Item {
	items := make([]*board.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item.Clone())
	}
	sort.Slice(items, func(a, b int) bool {
		if items[a].CreatedAtMs != items[b].CreatedAtMs {
			return items[a].CreatedAtMs < items[b].CreatedAtMs
		}
		return items[a].ID < items[b].ID
	})
	return items
}

// Insert adds a new item. Returns ErrExists if a record with the same ID is
// already present - the caller decides whether that means "merge instead".
func (s *Store) Insert(item *board.Item) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}
	if _, ok := s.items[item.ID]; ok {
		return ErrExists
	}

	stored := item.Clone()
	stored.Normalize()
	s.items[stored.ID] = stored
	s.indexParent(stored.ID, "", stored.ParentID)
	return nil
}

// Upsert inserts the item or, when a record with the same ID already exists,
// replaces it wholesale. This is the primitive behind merging at-least-once
// remote deliveries: a repeated insert event degrades to an update instead of
// creating a duplicate.
func (s *Store) Upsert(item *board.Item) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}

	stored := item.Clone()
	stored.Normalize()

	oldParent := ""
	if existing, ok := s.items[item.ID]; ok {
		oldParent = existing.ParentID
	}
	s.items[stored.ID] = stored
	s.indexParent(stored.ID, oldParent, stored.ParentID)
	return nil
}

// ReplaceID swaps an optimistic placeholder for its server-confirmed record.
// The temp record is removed and the confirmed record inserted (or merged if
// the change stream already delivered it). Idempotent: applying the same
// replacement twice, or applying it after the confirmed record arrived via
// the remote stream, leaves exactly one record with the confirmed ID.
func (s *Store) ReplaceID(tempID string, confirmed *board.Item) error {
	if err := confirmed.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}

	if temp, ok := s.items[tempID]; ok && tempID != confirmed.ID {
		s.indexParent(tempID, temp.ParentID, "")
		delete(s.items, tempID)
	}

	return s.Upsert(confirmed)
}

// Update applies a mutation function to the item with the given ID. The
// function receives the canonical record; parent changes made through it are
// reflected in the child index. Returns ErrNotFound for unknown IDs.
func (s *Store) Update(id string, mutate func(*board.Item)) error {
	item, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}

	oldParent := item.ParentID
	mutate(item)
	item.Normalize()

	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item after update: %w", err)
	}

	s.indexParent(id, oldParent, item.ParentID)
	return nil
}

// Delete removes the item with the given ID. Member parent pointers are NOT
// touched; orphan repair is the invariant manager's job. Deleting an unknown
// ID is a no-op.
func (s *Store) Delete(id string) {
	item, ok := s.items[id]
	if !ok {
		return
	}
	s.indexParent(id, item.ParentID, "")
	delete(s.items, id)
	delete(s.children, id)
}

// Reparent points the item at a new group (or clears its parent when
// parentID is empty) and adopts the group's column and staging state,
// keeping the structural consistency between a group and its members.
func (s *Store) Reparent(id, parentID string) error {
	item, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	if parentID == id {
		return fmt.Errorf("item %s cannot be its own parent", id)
	}

	oldParent := item.ParentID

	if parentID == "" {
		item.ParentID = ""
		s.indexParent(id, oldParent, "")
		return nil
	}

	group, ok := s.items[parentID]
	if !ok {
		return ErrNotFound
	}
	if !group.IsGroup() {
		return fmt.Errorf("item %s is not a group", parentID)
	}

	item.ParentID = parentID
	item.ColumnID = group.ColumnID
	item.IsStaged = group.IsStaged
	s.indexParent(id, oldParent, parentID)
	return nil
}

// SetColumn moves the item to a column, clearing any group membership. When
// staged is non-nil, the staging state is set as well.
func (s *Store) SetColumn(id, columnID string, staged *bool) error {
	item, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}

	oldParent := item.ParentID
	item.ColumnID = columnID
	item.ParentID = ""
	if staged != nil {
		item.IsStaged = *staged
	}
	s.indexParent(id, oldParent, "")
	return nil
}

// Children returns deep copies of a group's members, ordered by creation
// time then ID.
func (s *Store) Children(groupID string) []*board.Item {
	ids, ok := s.children[groupID]
	if !ok {
		return nil
	}

	members := make([]*board.Item, 0, len(ids))
	for id := range ids {
		if item, ok := s.items[id]; ok {
			members = append(members, item.Clone())
		}
	}
	sort.Slice(members, func(a, b int) bool {
		if members[a].CreatedAtMs != members[b].CreatedAtMs {
			return members[a].CreatedAtMs < members[b].CreatedAtMs
		}
		return members[a].ID < members[b].ID
	})
	return members
}

// MemberCount returns the number of live members of a group without copying
// them.
func (s *Store) MemberCount(groupID string) int {
	return len(s.children[groupID])
}

// Groups returns deep copies of all group items.
func (s *Store) Groups() []*board.Item {
	var groups []*board.Item
	for _, item := range s.items {
		if item.IsGroup() {
			groups = append(groups, item.Clone())
		}
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].ID < groups[b].ID })
	return groups
}

// indexParent moves an item between child-index buckets. Maintained inside
// every mutation primitive so group operations never need O(n) scans.
func (s *Store) indexParent(id, oldParent, newParent string) {
	if oldParent == newParent {
		if newParent != "" {
			// Re-insert in case the item is new to the index.
			s.addChild(newParent, id)
		}
		return
	}
	if oldParent != "" {
		if members, ok := s.children[oldParent]; ok {
			delete(members, id)
			if len(members) == 0 {
				delete(s.children, oldParent)
			}
		}
	}
	if newParent != "" {
		s.addChild(newParent, id)
	}
}

func (s *Store) addChild(parentID, id string) {
	members, ok := s.children[parentID]
	if !ok {
		members = make(map[string]struct{})
		s.children[parentID] = members
	}
	members[id] = struct{}{}
}
