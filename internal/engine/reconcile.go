package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huddleboard/huddle/pkg/board"
)

// Reconciliation
//
// Remote row-change events and the engine's own mutation confirmations merge
// into the store through the handlers below. Delivery is at-least-once and a
// mutation's direct response is not ordered against its change-stream echo,
// so every handler is written to be idempotent: repeated inserts degrade to
// updates, deletes of unknown IDs are no-ops, and a confirmation arriving
// after the stream already delivered the same ID removes the optimistic
// placeholder without reinserting. Per item, the last applied mutation by
// arrival order wins.

// applyEvent routes one inbound event to its handler.
func (e *Engine) applyEvent(event board.Event) {
	switch event.Kind {
	case board.EventKindRowChange:
		switch event.RowChange.Table {
		case board.TableItems:
			e.applyItemChange(event.RowChange)
		case board.TableConfig:
			e.applyConfigChange(event.RowChange.Config)
		}
	case board.EventKindBroadcast:
		e.applyBroadcast(event.Broadcast)
	case board.EventKindPresence:
		e.applyPresence(event.Participants)
	}
}

// applyItemChange merges a remote item mutation into the store.
func (e *Engine) applyItemChange(rc *board.RowChange) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	item := rc.Item

	switch rc.Op {
	case board.RowOpInsert:
		// A repeated delivery, or the echo of a record we already confirmed,
		// degrades to an update.
		if err := e.store.Upsert(item); err != nil {
			e.logEvent("remote_insert_rejected", map[string]interface{}{
				"item_id": item.ID,
				"error":   err.Error(),
			})
		}

	case board.RowOpUpdate:
		// An update for an unknown ID becomes an insert.
		old, existed := e.store.Get(item.ID)
		if err := e.store.Upsert(item); err != nil {
			e.logEvent("remote_update_rejected", map[string]interface{}{
				"item_id": item.ID,
				"error":   err.Error(),
			})
			return
		}
		// The update may have vacated a group; re-evaluate its cardinality.
		if existed && old.ParentID != "" && old.ParentID != item.ParentID {
			e.dissolveCheckLocked(old.ParentID)
		}

	case board.RowOpDelete:
		victim, existed := e.store.Get(item.ID)
		if !existed {
			// Delete for an unknown ID is a no-op.
			return
		}
		if victim.IsGroup() {
			// Detach members immediately instead of waiting for their own
			// update events; a dangling parent reference must never be
			// observable.
			for _, member := range e.store.Children(victim.ID) {
				if err := e.store.Reparent(member.ID, ""); err != nil {
					e.logEvent("orphan_repair_failed", map[string]interface{}{
						"item_id": member.ID,
						"error":   err.Error(),
					})
				}
			}
		}
		e.store.Delete(victim.ID)
		if victim.ParentID != "" {
			e.dissolveCheckLocked(victim.ParentID)
		}
	}
}

// applyConfigChange replaces the local board configuration. Concurrent
// config edits are last-write-wins by arrival order.
func (e *Engine) applyConfigChange(config *board.BoardConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.config = config.Clone()
	e.store.SetColumns(config.Columns)
}

// applyBroadcast applies an ephemeral signal. Broadcasts never touch the
// store; they only adjust the transient participant overlay.
func (e *Engine) applyBroadcast(b *board.Broadcast) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	switch b.Event {
	case board.BroadcastHandRaise:
		var payload board.HandRaisePayload
		if err := json.Unmarshal(b.Payload, &payload); err != nil {
			e.logEvent("broadcast_malformed", map[string]interface{}{
				"event": b.Event,
				"error": err.Error(),
			})
			return
		}
		for idx := range e.participants {
			if e.participants[idx].ID == payload.UserID {
				e.participants[idx].HandRaised = payload.Raised
				e.participants[idx].HandRaisedAtMs = payload.RaisedAtMs
			}
		}
		if payload.UserID == e.user.ID {
			e.user.HandRaised = payload.Raised
			e.user.HandRaisedAtMs = payload.RaisedAtMs
		}

	case board.BroadcastLowerAllHands:
		for idx := range e.participants {
			e.participants[idx].HandRaised = false
			e.participants[idx].HandRaisedAtMs = 0
		}
		e.user.HandRaised = false
		e.user.HandRaisedAtMs = 0

	default:
		e.logEvent("broadcast_ignored", map[string]interface{}{
			"event": b.Event,
		})
	}
}

// applyPresence replaces the participant set with a fresh snapshot. Presence
// data is fresher than anything derived locally and wins on overlap, except
// that the local user's own record is always the local one.
func (e *Engine) applyPresence(participants []board.User) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.participants = mergeParticipants(participants, e.user)
}

// applyCompletion reconciles the result of one of our own backend
// round-trips. Failures leave the optimistic state in place; the error is
// surfaced (or, for background repairs, only logged).
func (e *Engine) applyCompletion(c completion) {
	if c.err != nil {
		switch c.op {
		case opRepair:
			e.logEvent("repair_failed", map[string]interface{}{
				"error": c.err.Error(),
			})
		default:
			e.logEvent("mutation_failed", map[string]interface{}{
				"op":    string(c.op),
				"error": c.err.Error(),
			})
			e.surface(c.err)
		}
		if c.op != opClone || len(c.items) == 0 {
			return
		}
		// Partial clone failure: fall through and keep what succeeded.
	}

	switch c.op {
	case opCreate:
		e.confirmCreate(c.tempID, c.item)

	case opUpdate:
		if c.item == nil {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			return
		}
		old, existed := e.store.Get(c.item.ID)
		if err := e.store.Upsert(c.item); err != nil {
			e.logEvent("confirm_update_rejected", map[string]interface{}{
				"item_id": c.item.ID,
				"error":   err.Error(),
			})
			return
		}
		if existed && old.ParentID != "" && old.ParentID != c.item.ParentID {
			e.dissolveCheckLocked(old.ParentID)
		}

	case opClone:
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			return
		}
		for _, item := range c.items {
			if err := e.store.Upsert(item); err != nil {
				e.logEvent("clone_insert_rejected", map[string]interface{}{
					"item_id": item.ID,
					"error":   err.Error(),
				})
			}
		}

	case opDelete, opConfig, opRepair, opSignal:
		// Nothing to merge: the optimistic mutation already applied and the
		// change stream carries the authoritative echo.
	}
}

// confirmCreate swaps an optimistic placeholder for its server-confirmed
// record. If the placeholder was a freshly formed group, its optimistically
// reparented members follow it to the confirmed ID, locally and remotely.
func (e *Engine) confirmCreate(tempID string, confirmed *board.Item) {
	if confirmed == nil {
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.confirmedIDs[tempID] = confirmed.ID

	members := e.store.Children(tempID)
	if err := e.store.ReplaceID(tempID, confirmed); err != nil {
		e.mu.Unlock()
		e.logEvent("confirm_create_rejected", map[string]interface{}{
			"item_id": confirmed.ID,
			"error":   err.Error(),
		})
		return
	}
	for _, member := range members {
		if err := e.store.Reparent(member.ID, confirmed.ID); err != nil {
			e.logEvent("confirm_reparent_failed", map[string]interface{}{
				"item_id": member.ID,
				"error":   err.Error(),
			})
		}
	}
	e.mu.Unlock()

	// Members were parented to the placeholder ID locally; the backend only
	// ever learns the confirmed ID.
	for _, member := range members {
		memberID := member.ID
		parentID := confirmed.ID
		columnID := confirmed.ColumnID
		isStaged := confirmed.IsStaged
		e.dispatch(func(ctx context.Context) completion {
			updated, err := e.client.UpdateItem(ctx, memberID, board.ItemPatch{
				ParentID: &parentID,
				ColumnID: &columnID,
				IsStaged: &isStaged,
			})
			if err != nil && !board.IsNotFound(err) {
				return completion{op: opUpdate, err: fmt.Errorf("failed to attach group member %s: %w", memberID, err)}
			}
			return completion{op: opUpdate, item: updated}
		})
	}
}

// dissolveCheckLocked enforces the group cardinality invariant: a group with
// one remaining member releases it and dissolves; an empty group dissolves.
// Safe to call with any ID; anything but a live group is a no-op. The caller
// must hold e.mu.
//
// The repair is applied locally first, then pushed to the backend as a
// fire-and-forget correction. Both halves are idempotent, so two clients
// racing to dissolve the same group converge on the same end state.
func (e *Engine) dissolveCheckLocked(groupID string) {
	group, ok := e.store.Get(groupID)
	if !ok || !group.IsGroup() {
		return
	}

	members := e.store.Children(groupID)
	if len(members) >= 2 {
		return
	}

	var last *board.Item
	if len(members) == 1 {
		last = members[0]
		if err := e.store.Reparent(last.ID, ""); err != nil {
			e.logEvent("dissolve_detach_failed", map[string]interface{}{
				"item_id": last.ID,
				"error":   err.Error(),
			})
		}
	}
	e.store.Delete(groupID)

	e.logEvent("group_dissolved", map[string]interface{}{
		"group_id":          groupID,
		"remaining_members": len(members),
	})

	// Placeholder groups were never written to the backend; nothing to
	// repair remotely.
	if board.IsTempID(groupID) {
		return
	}

	e.dispatch(func(ctx context.Context) completion {
		if last != nil && !board.IsTempID(last.ID) {
			detached := ""
			if _, err := e.client.UpdateItem(ctx, last.ID, board.ItemPatch{ParentID: &detached}); err != nil && !board.IsNotFound(err) {
				return completion{op: opRepair, err: fmt.Errorf("failed to detach last member of group %s: %w", groupID, err)}
			}
		}
		if err := e.client.DeleteItem(ctx, groupID); err != nil {
			return completion{op: opRepair, err: fmt.Errorf("failed to delete dissolved group %s: %w", groupID, err)}
		}
		return completion{op: opRepair}
	})
}
