package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huddleboard/huddle/pkg/board"
)

// User intents
//
// Every intent follows the same shape: validate permission, apply the
// optimistic mutation to the store synchronously, then issue the backend
// call asynchronously. The intent returns once the optimistic update is
// visible locally (read-your-writes); the round-trip's result arrives later
// through the consumption loop. Operating on an item that no longer exists
// is always a silent no-op - stale IDs from races are expected, not errors.

// AddItem creates a card optimistically and returns the placeholder record.
// The placeholder's temp ID is replaced by the server-assigned ID once the
// backend confirms.
func (e *Engine) AddItem(content, columnID string, staged bool) (*board.Item, error) {
	e.mu.Lock()
	if _, ok := e.store.ColumnByID(columnID); !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("unknown column: %s", columnID)
	}

	temp := &board.Item{
		ID:          board.NewTempID(),
		Content:     content,
		ColumnID:    columnID,
		Kind:        board.ItemKindCard,
		IsStaged:    staged,
		AuthorID:    e.user.ID,
		AuthorName:  e.user.Name,
		AuthorColor: e.user.Color,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	temp.Normalize()

	if err := e.store.Insert(temp); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	snapshot := temp.Clone()
	e.dispatch(func(ctx context.Context) completion {
		confirmed, err := e.client.CreateItem(ctx, snapshot)
		if err != nil {
			return completion{op: opCreate, tempID: snapshot.ID, err: fmt.Errorf("failed to create item: %w", err)}
		}
		return completion{op: opCreate, tempID: snapshot.ID, item: confirmed}
	})

	return temp.Clone(), nil
}

// UpdateContent edits an item's text. Concurrent edits to the same content
// are last-write-wins; the visible author attribution makes that acceptable
// for low-frequency retro card edits.
func (e *Engine) UpdateContent(itemID, content string) error {
	e.mu.Lock()
	item, ok := e.store.Get(itemID)
	if !ok {
		e.mu.Unlock()
		return nil
	}
	if !e.canEditLocked(item) {
		e.mu.Unlock()
		e.denyQuietly("edit", itemID)
		return nil
	}

	if err := e.store.Update(itemID, func(i *board.Item) { i.Content = content }); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	e.dispatchUpdate(itemID, board.ItemPatch{Content: &content})
	return nil
}

// DeleteItem removes an item. Deleting a group releases its members first.
func (e *Engine) DeleteItem(itemID string) error {
	e.mu.Lock()
	item, ok := e.store.Get(itemID)
	if !ok {
		e.mu.Unlock()
		return nil
	}
	if !e.canDeleteLocked(item) {
		e.mu.Unlock()
		e.denyQuietly("delete", itemID)
		return nil
	}

	var released []string
	if item.IsGroup() {
		for _, member := range e.store.Children(itemID) {
			if err := e.store.Reparent(member.ID, ""); err == nil {
				released = append(released, member.ID)
			}
		}
	}

	e.store.Delete(itemID)
	if item.ParentID != "" {
		e.dissolveCheckLocked(item.ParentID)
	}
	e.mu.Unlock()

	detached := ""
	for _, memberID := range released {
		e.dispatchUpdate(memberID, board.ItemPatch{ParentID: &detached})
	}

	if board.IsTempID(itemID) {
		return nil
	}
	e.dispatch(func(ctx context.Context) completion {
		if err := e.client.DeleteItem(ctx, itemID); err != nil {
			return completion{op: opDelete, err: fmt.Errorf("failed to delete item: %w", err)}
		}
		return completion{op: opDelete}
	})
	return nil
}

// MoveItem relocates an item to a column, optionally changing its staging
// state. Moving into an action-list column from a different column is a
// clone, not a move: the original keeps its place and group membership.
// Moving out of a group triggers a dissolve check on the vacated group.
func (e *Engine) MoveItem(itemID, columnID string, staged *bool) error {
	e.mu.Lock()
	item, ok := e.store.Get(itemID)
	if !ok {
		e.mu.Unlock()
		return nil
	}
	if !e.canMoveLocked(item) {
		e.mu.Unlock()
		e.denyQuietly("move", itemID)
		return nil
	}
	target, ok := e.store.ColumnByID(columnID)
	if !ok {
		e.mu.Unlock()
		return nil
	}

	if target.IsActionList() && item.ColumnID != columnID {
		var members []*board.Item
		if item.IsGroup() {
			members = e.store.Children(itemID)
		}
		e.mu.Unlock()
		e.dispatchClone(item, members, columnID)
		return nil
	}

	oldParent := item.ParentID
	if err := e.store.SetColumn(itemID, columnID, staged); err != nil {
		e.mu.Unlock()
		return err
	}
	if oldParent != "" {
		e.dissolveCheckLocked(oldParent)
	}
	e.mu.Unlock()

	detached := ""
	e.dispatchUpdate(itemID, board.ItemPatch{ColumnID: &columnID, ParentID: &detached, IsStaged: staged})
	return nil
}

// ToggleReaction adds or removes the local user's reaction with the given
// emoji. A reaction whose last author leaves disappears entirely; the count
// is always derived from the author list.
func (e *Engine) ToggleReaction(itemID, emoji string) error {
	e.mu.Lock()
	if _, ok := e.store.Get(itemID); !ok {
		e.mu.Unlock()
		return nil
	}

	userID := e.user.ID
	err := e.store.Update(itemID, func(i *board.Item) {
		for idx := range i.Reactions {
			if i.Reactions[idx].Emoji != emoji {
				continue
			}
			if i.Reactions[idx].HasAuthor(userID) {
				authors := i.Reactions[idx].Authors[:0]
				for _, a := range i.Reactions[idx].Authors {
					if a != userID {
						authors = append(authors, a)
					}
				}
				if len(authors) == 0 {
					i.Reactions = append(i.Reactions[:idx], i.Reactions[idx+1:]...)
				} else {
					i.Reactions[idx].Authors = authors
				}
			} else {
				i.Reactions[idx].Authors = append(i.Reactions[idx].Authors, userID)
			}
			return
		}
		i.Reactions = append(i.Reactions, board.Reaction{Emoji: emoji, Authors: []string{userID}})
	})
	if err != nil {
		e.mu.Unlock()
		return err
	}

	updated, _ := e.store.Get(itemID)
	e.mu.Unlock()

	e.dispatchUpdate(itemID, board.ItemPatch{Reactions: updated.Reactions})
	return nil
}

// AddComment appends a comment to an item.
func (e *Engine) AddComment(itemID, text string) error {
	e.mu.Lock()
	if _, ok := e.store.Get(itemID); !ok {
		e.mu.Unlock()
		return nil
	}

	comment := board.Comment{
		ID:          uuid.New().String(),
		Text:        text,
		AuthorName:  e.user.Name,
		AuthorColor: e.user.Color,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	err := e.store.Update(itemID, func(i *board.Item) {
		i.Comments = append(i.Comments, comment)
	})
	if err != nil {
		e.mu.Unlock()
		return err
	}

	updated, _ := e.store.Get(itemID)
	e.mu.Unlock()

	e.dispatchUpdate(itemID, board.ItemPatch{Comments: updated.Comments})
	return nil
}

// AddActionItem appends a follow-up task to an item.
func (e *Engine) AddActionItem(itemID, text string) error {
	e.mu.Lock()
	if _, ok := e.store.Get(itemID); !ok {
		e.mu.Unlock()
		return nil
	}

	action := board.ActionItem{
		ID:   uuid.New().String(),
		Text: text,
	}
	err := e.store.Update(itemID, func(i *board.Item) {
		i.ActionItems = append(i.ActionItems, action)
	})
	if err != nil {
		e.mu.Unlock()
		return err
	}

	updated, _ := e.store.Get(itemID)
	e.mu.Unlock()

	e.dispatchUpdate(itemID, board.ItemPatch{ActionItems: updated.ActionItems})
	return nil
}

// ToggleActionItem flips the done state of a follow-up task. An unknown
// action ID is a no-op.
func (e *Engine) ToggleActionItem(itemID, actionID string) error {
	e.mu.Lock()
	if _, ok := e.store.Get(itemID); !ok {
		e.mu.Unlock()
		return nil
	}

	err := e.store.Update(itemID, func(i *board.Item) {
		for idx := range i.ActionItems {
			if i.ActionItems[idx].ID == actionID {
				i.ActionItems[idx].Done = !i.ActionItems[idx].Done
			}
		}
	})
	if err != nil {
		e.mu.Unlock()
		return err
	}

	updated, _ := e.store.Get(itemID)
	e.mu.Unlock()

	e.dispatchUpdate(itemID, board.ItemPatch{ActionItems: updated.ActionItems})
	return nil
}

// PublishAll publishes the local user's staged drafts in one column. Other
// users' ungrouped drafts in the same column are never touched. Groups
// containing a published draft are published along with it, together with any
// members still staged, so a group and its members never disagree on staging
// state.
func (e *Engine) PublishAll(columnID string) error {
	e.mu.Lock()

	var published []string
	groups := map[string]bool{}
	for _, item := range e.store.Items() {
		if item.ColumnID != columnID || !item.IsStaged || item.IsGroup() {
			continue
		}
		if item.AuthorID != e.user.ID {
			continue
		}
		if err := e.store.Update(item.ID, func(i *board.Item) { i.IsStaged = false }); err != nil {
			continue
		}
		published = append(published, item.ID)
		if item.ParentID != "" {
			groups[item.ParentID] = true
		}
	}
	for groupID := range groups {
		if err := e.store.Update(groupID, func(i *board.Item) { i.IsStaged = false }); err != nil {
			continue
		}
		published = append(published, groupID)
		// A group and its members never disagree on staging state, so
		// members still staged after the author filter follow the group out.
		for _, member := range e.store.Children(groupID) {
			if !member.IsStaged {
				continue
			}
			if err := e.store.Update(member.ID, func(i *board.Item) { i.IsStaged = false }); err == nil {
				published = append(published, member.ID)
			}
		}
	}
	e.mu.Unlock()

	publishedState := false
	for _, id := range published {
		e.dispatchUpdate(id, board.ItemPatch{IsStaged: &publishedState})
	}
	return nil
}

// RaiseHand toggles the local user's raised hand. The signal is ephemeral:
// it travels as a broadcast, not a row change, and is also folded into the
// next presence announcement for late joiners.
func (e *Engine) RaiseHand() {
	e.mu.Lock()
	raised := !e.user.HandRaised
	e.user.HandRaised = raised
	if raised {
		e.user.HandRaisedAtMs = time.Now().UnixMilli()
	} else {
		e.user.HandRaisedAtMs = 0
	}
	e.participants = mergeParticipants(e.participants, e.user)
	user := e.user
	e.mu.Unlock()

	payload := board.HandRaisePayload{
		UserID:     user.ID,
		Raised:     user.HandRaised,
		RaisedAtMs: user.HandRaisedAtMs,
	}
	e.dispatch(func(ctx context.Context) completion {
		if err := e.client.SendBroadcast(ctx, board.BroadcastHandRaise, user.ID, payload); err != nil {
			return completion{op: opSignal, err: fmt.Errorf("failed to broadcast hand raise: %w", err)}
		}
		if err := e.client.AnnouncePresence(ctx, user); err != nil {
			return completion{op: opSignal, err: fmt.Errorf("failed to refresh presence: %w", err)}
		}
		return completion{op: opSignal}
	})
}

// LowerAllHands lowers every raised hand on the board.
func (e *Engine) LowerAllHands() {
	e.mu.Lock()
	for idx := range e.participants {
		e.participants[idx].HandRaised = false
		e.participants[idx].HandRaisedAtMs = 0
	}
	e.user.HandRaised = false
	e.user.HandRaisedAtMs = 0
	user := e.user
	e.mu.Unlock()

	e.dispatch(func(ctx context.Context) completion {
		if err := e.client.SendBroadcast(ctx, board.BroadcastLowerAllHands, user.ID, nil); err != nil {
			return completion{op: opSignal, err: fmt.Errorf("failed to broadcast lower all hands: %w", err)}
		}
		return completion{op: opSignal}
	})
}

// PropagateRename updates the local user's display identity and explicitly
// propagates it to the author snapshots on their existing items. Without
// this, historical cards keep the identity their author had at creation
// time.
func (e *Engine) PropagateRename(name, color string) {
	e.mu.Lock()
	e.user.Name = name
	e.user.Color = color
	e.participants = mergeParticipants(e.participants, e.user)
	user := e.user

	var authored []string
	for _, item := range e.store.Items() {
		if item.AuthorID != user.ID {
			continue
		}
		err := e.store.Update(item.ID, func(i *board.Item) {
			i.AuthorName = name
			i.AuthorColor = color
		})
		if err == nil {
			authored = append(authored, item.ID)
		}
	}
	e.mu.Unlock()

	for _, id := range authored {
		e.dispatchUpdate(id, board.ItemPatch{AuthorName: &name, AuthorColor: &color})
	}
	e.dispatch(func(ctx context.Context) completion {
		if err := e.client.AnnouncePresence(ctx, user); err != nil {
			return completion{op: opSignal, err: fmt.Errorf("failed to refresh presence: %w", err)}
		}
		return completion{op: opSignal}
	})
}

// SetTimer starts (or clears, with zero) the shared countdown.
func (e *Engine) SetTimer(runningUntilMs int64) error {
	e.mu.Lock()
	if e.config == nil {
		e.mu.Unlock()
		return fmt.Errorf("board config not loaded")
	}
	e.config.Timer.RunningUntilMs = runningUntilMs
	config := e.config.Clone()
	e.mu.Unlock()

	e.dispatchConfig(config)
	return nil
}

// dispatchUpdate issues a partial item update in the background. Updates to
// placeholder IDs stay local: the backend only ever learns server-assigned
// IDs. A not-found response means the item was deleted under us - a no-op,
// per the reference-integrity policy.
func (e *Engine) dispatchUpdate(itemID string, patch board.ItemPatch) {
	if board.IsTempID(itemID) {
		return
	}
	e.dispatch(func(ctx context.Context) completion {
		updated, err := e.client.UpdateItem(ctx, itemID, patch)
		if err != nil {
			if board.IsNotFound(err) {
				return completion{op: opUpdate}
			}
			return completion{op: opUpdate, err: fmt.Errorf("failed to update item %s: %w", itemID, err)}
		}
		return completion{op: opUpdate, item: updated}
	})
}

// dispatchConfig pushes a full board config replacement in the background.
func (e *Engine) dispatchConfig(config *board.BoardConfig) {
	e.dispatch(func(ctx context.Context) completion {
		if err := e.client.UpdateConfig(ctx, config); err != nil {
			return completion{op: opConfig, err: fmt.Errorf("failed to update board config: %w", err)}
		}
		return completion{op: opConfig}
	})
}
