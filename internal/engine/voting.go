package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/huddleboard/huddle/pkg/board"
)

// Voting intent errors. Unlike most intents, which silently ignore stale
// targets, vote rejections are returned to the caller so the UI can explain
// why the click did nothing.
var (
	ErrVotingInactive      = errors.New("no voting session is active")
	ErrVoteBudgetExhausted = errors.New("no votes remaining")
	ErrVoteLimitPerCard    = errors.New("already voted on this item")
)

// VotingActive reports whether a voting session is in progress.
func (e *Engine) VotingActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config != nil && e.config.Voting != nil
}

// VotesUsed returns how many votes the local user has cast across the board.
func (e *Engine) VotesUsed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.votesUsedLocked()
}

func (e *Engine) votesUsedLocked() int {
	used := 0
	for _, item := range e.store.Items() {
		used += item.VotesBy(e.user.ID)
	}
	return used
}

// CastVote adds (delta +1) or retracts (delta -1) one of the local user's
// votes on an item. The per-user budget and the one-vote-per-card rule are
// enforced locally before anything is written; a count that reaches zero is
// removed from the item's vote map entirely.
func (e *Engine) CastVote(itemID string, delta int) error {
	if delta != 1 && delta != -1 {
		return fmt.Errorf("vote delta must be +1 or -1, got %d", delta)
	}

	e.mu.Lock()
	if e.config == nil || e.config.Voting == nil {
		e.mu.Unlock()
		return ErrVotingInactive
	}
	voting := *e.config.Voting

	item, ok := e.store.Get(itemID)
	if !ok {
		e.mu.Unlock()
		return nil
	}

	current := item.VotesBy(e.user.ID)
	if delta > 0 {
		if e.votesUsedLocked() >= voting.VotesPerParticipant {
			e.mu.Unlock()
			return ErrVoteBudgetExhausted
		}
		if !voting.AllowMultiplePerCard && current > 0 {
			e.mu.Unlock()
			return ErrVoteLimitPerCard
		}
	} else if current == 0 {
		e.mu.Unlock()
		return nil
	}

	userID := e.user.ID
	err := e.store.Update(itemID, func(i *board.Item) {
		next := i.Votes[userID] + delta
		if next <= 0 {
			delete(i.Votes, userID)
		} else {
			i.Votes[userID] = next
		}
	})
	if err != nil {
		e.mu.Unlock()
		return err
	}

	updated, _ := e.store.Get(itemID)
	e.mu.Unlock()

	e.dispatchUpdate(itemID, board.ItemPatch{Votes: updated.Votes})
	return nil
}

// StartVoting opens a voting session with the given rules. Starting over an
// already-active session replaces its rules; accumulated votes are kept.
func (e *Engine) StartVoting(cfg board.VotingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	if e.config == nil {
		e.mu.Unlock()
		return fmt.Errorf("board config not loaded")
	}
	e.config.Voting = &cfg
	config := e.config.Clone()
	e.mu.Unlock()

	e.logEvent("voting_started", map[string]interface{}{
		"votes_per_participant":   cfg.VotesPerParticipant,
		"allow_multiple_per_card": cfg.AllowMultiplePerCard,
	})
	e.dispatchConfig(config)
	return nil
}

// EndVoting closes the active session and publishes the results: every item
// that received at least one vote is copied into a results column, created
// on demand. Closing a session where nothing was voted on leaves the board's
// columns untouched. The vote counts on the original items are preserved.
func (e *Engine) EndVoting() error {
	e.mu.Lock()
	if e.config == nil || e.config.Voting == nil {
		e.mu.Unlock()
		return nil
	}

	type voted struct {
		item    *board.Item
		members []*board.Item
	}
	var winners []voted
	for _, item := range e.store.Items() {
		if item.ParentID != "" || item.TotalVotes() == 0 {
			continue
		}
		w := voted{item: item}
		if item.IsGroup() {
			w.members = e.store.Children(item.ID)
		}
		winners = append(winners, w)
	}

	e.config.Voting = nil

	resultsID := ""
	if len(winners) > 0 {
		if col, ok := e.config.ColumnByTitle(board.ResultsColumnTitle); ok {
			resultsID = col.ID
		} else {
			column := board.Column{
				ID:         uuid.New().String(),
				Title:      board.ResultsColumnTitle,
				ColorTheme: "purple",
				ViewMode:   board.ViewModeActionList,
			}
			e.config.Columns = append(e.config.Columns, column)
			e.store.SetColumns(e.config.Columns)
			resultsID = column.ID
		}
	}
	config := e.config.Clone()
	e.mu.Unlock()

	e.logEvent("voting_ended", map[string]interface{}{
		"voted_items": len(winners),
	})
	e.dispatchConfig(config)
	for _, w := range winners {
		e.dispatchClone(w.item, w.members, resultsID)
	}
	return nil
}
