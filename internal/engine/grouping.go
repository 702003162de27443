package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huddleboard/huddle/pkg/board"
)

// defaultGroupContent is the title a freshly formed group starts with.
const defaultGroupContent = "Group"

// GroupItem handles a drop of one item onto another. The behavior depends on
// what each side is:
//
//   - card onto card: a new group forms at the target's position and both
//     cards join it
//   - card onto a group (or onto a card already in a group): the card joins
//     that group
//   - group onto card: the group absorbs the card, relocating itself and its
//     members to the card's position
//   - group onto group: the dragged group's members merge into the target
//     and the dragged group is deleted
//
// Joining a group always means adopting its column and staging state. A drop
// onto itself, onto its own group or one of its own members, or onto an
// unknown ID is a no-op.
func (e *Engine) GroupItem(draggedID, targetID string) error {
	if draggedID == targetID {
		return nil
	}

	e.mu.Lock()
	dragged, ok := e.store.Get(draggedID)
	if !ok {
		e.mu.Unlock()
		return nil
	}
	target, ok := e.store.Get(targetID)
	if !ok {
		e.mu.Unlock()
		return nil
	}
	if !e.canMoveLocked(dragged) {
		e.mu.Unlock()
		e.denyQuietly("group", draggedID)
		return nil
	}

	// A drop onto a grouped card means a drop onto its group.
	if !target.IsGroup() && target.ParentID != "" {
		group, ok := e.store.Get(target.ParentID)
		if !ok {
			e.mu.Unlock()
			return nil
		}
		target = group
	}

	// The redirect can resolve to the dragged group itself when a group is
	// dropped onto one of its own members. Merging a group into itself
	// would orphan every member, so it is a no-op.
	if target.ID == dragged.ID {
		e.mu.Unlock()
		return nil
	}

	switch {
	case !dragged.IsGroup() && target.IsGroup():
		return e.joinGroupLocked(dragged, target)
	case !dragged.IsGroup() && !target.IsGroup():
		return e.formGroupLocked(dragged, target)
	case dragged.IsGroup() && !target.IsGroup():
		return e.absorbCardLocked(dragged, target)
	default:
		return e.mergeGroupsLocked(dragged, target)
	}
}

// formGroupLocked creates a group at the target card's position and moves
// both cards into it. The group record is optimistic; once the backend
// confirms, confirmCreate re-points the members at the server-assigned ID.
// Called with e.mu held; releases it.
func (e *Engine) formGroupLocked(dragged, target *board.Item) error {
	group := &board.Item{
		ID:          board.NewTempID(),
		Content:     defaultGroupContent,
		ColumnID:    target.ColumnID,
		Kind:        board.ItemKindGroup,
		IsStaged:    target.IsStaged,
		AuthorID:    e.user.ID,
		AuthorName:  e.user.Name,
		AuthorColor: e.user.Color,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	group.Normalize()

	if err := e.store.Insert(group); err != nil {
		e.mu.Unlock()
		return err
	}

	oldParent := dragged.ParentID
	if err := e.store.Reparent(target.ID, group.ID); err != nil {
		e.store.Delete(group.ID)
		e.mu.Unlock()
		return err
	}
	if err := e.store.Reparent(dragged.ID, group.ID); err != nil {
		e.mu.Unlock()
		return err
	}
	if oldParent != "" {
		e.dissolveCheckLocked(oldParent)
	}
	e.mu.Unlock()

	snapshot := group.Clone()
	e.dispatch(func(ctx context.Context) completion {
		confirmed, err := e.client.CreateItem(ctx, snapshot)
		if err != nil {
			return completion{op: opCreate, tempID: snapshot.ID, err: fmt.Errorf("failed to create group: %w", err)}
		}
		return completion{op: opCreate, tempID: snapshot.ID, item: confirmed}
	})
	return nil
}

// joinGroupLocked moves a card into an existing group, adopting the group's
// column and staging state. Called with e.mu held; releases it.
func (e *Engine) joinGroupLocked(dragged, group *board.Item) error {
	if dragged.ParentID == group.ID {
		e.mu.Unlock()
		return nil
	}

	oldParent := dragged.ParentID
	if err := e.store.Reparent(dragged.ID, group.ID); err != nil {
		e.mu.Unlock()
		return err
	}
	if oldParent != "" {
		e.dissolveCheckLocked(oldParent)
	}
	e.mu.Unlock()

	e.dispatchReparent(dragged.ID, group)
	return nil
}

// absorbCardLocked relocates a group and its members to a lone card's
// position, then pulls the card in as a member. Called with e.mu held;
// releases it.
func (e *Engine) absorbCardLocked(group, card *board.Item) error {
	columnID := card.ColumnID
	staged := card.IsStaged

	err := e.store.Update(group.ID, func(i *board.Item) {
		i.ColumnID = columnID
		i.IsStaged = staged
	})
	if err != nil {
		e.mu.Unlock()
		return err
	}

	var moved []string
	for _, member := range e.store.Children(group.ID) {
		err := e.store.Update(member.ID, func(i *board.Item) {
			i.ColumnID = columnID
			i.IsStaged = staged
		})
		if err == nil {
			moved = append(moved, member.ID)
		}
	}

	if err := e.store.Reparent(card.ID, group.ID); err != nil {
		e.mu.Unlock()
		return err
	}
	relocated := group.Clone()
	relocated.ColumnID = columnID
	relocated.IsStaged = staged
	e.mu.Unlock()

	e.dispatchUpdate(group.ID, board.ItemPatch{ColumnID: &columnID, IsStaged: &staged})
	for _, memberID := range moved {
		e.dispatchUpdate(memberID, board.ItemPatch{ColumnID: &columnID, IsStaged: &staged})
	}
	e.dispatchReparent(card.ID, relocated)
	return nil
}

// mergeGroupsLocked folds the dragged group's members into the target group
// and deletes the now-empty dragged group. Called with e.mu held; releases
// it.
func (e *Engine) mergeGroupsLocked(dragged, target *board.Item) error {
	if dragged.ID == target.ID {
		e.mu.Unlock()
		return nil
	}

	var merged []string
	for _, member := range e.store.Children(dragged.ID) {
		if err := e.store.Reparent(member.ID, target.ID); err == nil {
			merged = append(merged, member.ID)
		}
	}
	e.store.Delete(dragged.ID)
	e.mu.Unlock()

	for _, memberID := range merged {
		e.dispatchReparent(memberID, target)
	}
	if !board.IsTempID(dragged.ID) {
		draggedID := dragged.ID
		e.dispatch(func(ctx context.Context) completion {
			if err := e.client.DeleteItem(ctx, draggedID); err != nil {
				return completion{op: opDelete, err: fmt.Errorf("failed to delete merged group: %w", err)}
			}
			return completion{op: opDelete}
		})
	}
	return nil
}

// dispatchReparent issues the backend write for a membership change. When
// the group only exists as an optimistic placeholder the write is skipped;
// confirmCreate pushes every member once the group's real ID is known.
func (e *Engine) dispatchReparent(memberID string, group *board.Item) {
	if board.IsTempID(group.ID) {
		return
	}
	parentID := group.ID
	columnID := group.ColumnID
	staged := group.IsStaged
	e.dispatchUpdate(memberID, board.ItemPatch{
		ParentID: &parentID,
		ColumnID: &columnID,
		IsStaged: &staged,
	})
}

// dispatchClone copies an item, and its members when it is a group, into the
// given column as fresh published records. The originals are untouched. The
// copies materialize only on backend confirmation so that member records can
// reference the copied group's server-assigned ID directly.
func (e *Engine) dispatchClone(source *board.Item, members []*board.Item, columnID string) {
	root := source.Clone()
	root.ID = ""
	root.ColumnID = columnID
	root.ParentID = ""
	root.IsStaged = false

	memberClones := make([]*board.Item, 0, len(members))
	for _, member := range members {
		clone := member.Clone()
		clone.ID = ""
		clone.ColumnID = columnID
		clone.IsStaged = false
		memberClones = append(memberClones, clone)
	}

	e.dispatch(func(ctx context.Context) completion {
		created, err := e.client.CreateItem(ctx, root)
		if err != nil {
			return completion{op: opClone, err: fmt.Errorf("failed to clone item: %w", err)}
		}
		items := []*board.Item{created}

		var errs []error
		for _, clone := range memberClones {
			clone.ParentID = created.ID
			member, err := e.client.CreateItem(ctx, clone)
			if err != nil {
				errs = append(errs, fmt.Errorf("failed to clone group member: %w", err))
				continue
			}
			items = append(items, member)
		}
		return completion{op: opClone, items: items, err: errors.Join(errs...)}
	})
}
