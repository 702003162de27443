// Package engine implements the board state reconciliation engine: the
// orchestration layer invoked by every user intent and every inbound sync
// event. Intents apply an optimistic mutation to the local store
// synchronously, then issue the backend call asynchronously; the call's
// completion is delivered into the same single consumption loop that handles
// remote row-change events, so both sources merge through one choke point.
//
// Each connected client runs its own engine instance against the shared
// backend. The backend is the arbiter of true state; the local store is an
// eventually-consistent cache healed through idempotent invariant re-checks
// rather than cross-client locking.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/huddleboard/huddle/internal/store"
	"github.com/huddleboard/huddle/pkg/board"
)

// completionOp identifies what kind of backend round-trip finished.
type completionOp string

const (
	opCreate completionOp = "create"
	opUpdate completionOp = "update"
	opDelete completionOp = "delete"
	opClone  completionOp = "clone"
	opConfig completionOp = "config"
	opRepair completionOp = "repair"
	opSignal completionOp = "signal"
)

// completion is the result of an asynchronous backend mutation, delivered
// into the engine's consumption loop alongside remote events.
type completion struct {
	op     completionOp
	tempID string        // optimistic placeholder ID, set for opCreate
	item   *board.Item   // confirmed record, set for opCreate/opUpdate
	items  []*board.Item // created records, set for opClone
	err    error
}

// Engine owns the canonical local state for one board session and reconciles
// local optimistic mutations, backend confirmations, and remote change
// notifications into it.
type Engine struct {
	client *board.Client
	user   board.User

	mu           sync.Mutex
	store        *store.Store
	config       *board.BoardConfig
	participants []board.User
	confirmedIDs map[string]string
	closed       bool

	defaults    *board.BoardConfig
	completions chan completion
	errs        chan error
	ready       chan struct{}
	readyOnce   sync.Once
	done        chan struct{}
	pending     sync.WaitGroup
}

// New creates an engine for the given board session. The defaults config is
// written to the backend the first time anyone opens a board that has never
// been configured. No I/O happens until Run is called.
func New(client *board.Client, user board.User, defaults *board.BoardConfig) *Engine {
	return &Engine{
		client:       client,
		user:         user,
		store:        store.New(),
		confirmedIDs: map[string]string{},
		defaults:     defaults,
		completions:  make(chan completion, 64),
		errs:         make(chan error, 16),
		ready:        make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Ready is closed once the initial fetch completed and the engine is
// consuming events.
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// Errors returns the channel carrying backend failures from asynchronous
// mutations. The optimistic local state is retained on failure; the consumer
// decides whether to retry or revert. The channel never blocks the engine -
// errors are dropped if nobody is listening.
func (e *Engine) Errors() <-chan error {
	return e.errs
}

// User returns the local participant identity.
func (e *Engine) User() board.User {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.user
}

// Run loads the board, announces presence, and blocks consuming events until
// the context is cancelled. Returns an error if the initial load or the
// subscription fails.
func (e *Engine) Run(ctx context.Context) error {
	// Subscribe before the initial fetch so no event falls between them.
	// At-least-once merging makes replaying an already-fetched change safe.
	subscription, err := e.client.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to board events: %w", err)
	}
	defer subscription.Close()

	if err := e.load(ctx); err != nil {
		return err
	}

	if err := e.client.AnnouncePresence(ctx, e.user); err != nil {
		return fmt.Errorf("failed to announce presence: %w", err)
	}

	e.logEvent("session_started", map[string]interface{}{
		"user_id": e.user.ID,
	})
	e.readyOnce.Do(func() { close(e.ready) })

	heartbeat := time.NewTicker(board.PresenceTTL / 3)
	defer heartbeat.Stop()

	defer e.teardown()

	for {
		select {
		case <-ctx.Done():
			e.logEvent("session_stopped", nil)
			return nil

		case event, ok := <-subscription.Events():
			if !ok {
				e.logEvent("subscription_closed", nil)
				return nil
			}
			e.applyEvent(event)

		case err, ok := <-subscription.Errors():
			if !ok {
				return nil
			}
			// Malformed messages are skipped; the stream continues.
			e.logEvent("subscription_error", map[string]interface{}{
				"error": err.Error(),
			})

		case c := <-e.completions:
			e.applyCompletion(c)
			e.pending.Done()

		case <-heartbeat.C:
			e.mu.Lock()
			user := e.user
			e.mu.Unlock()
			if err := e.client.AnnouncePresence(ctx, user); err != nil {
				e.logEvent("presence_heartbeat_failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}

// load seeds the store from the backend, writing the default config for a
// never-configured board.
func (e *Engine) load(ctx context.Context) error {
	config, err := e.client.FetchConfig(ctx)
	if err != nil {
		if !board.IsNotFound(err) {
			return fmt.Errorf("failed to fetch board config: %w", err)
		}
		config = e.defaults.Clone()
		if err := e.client.UpdateConfig(ctx, config); err != nil {
			return fmt.Errorf("failed to initialize board config: %w", err)
		}
	}

	items, err := e.client.FetchItems(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch items: %w", err)
	}

	participants, err := e.client.FetchPresence(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch presence: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.config = config
	e.store.SetColumns(config.Columns)
	for _, item := range items {
		if err := e.store.Upsert(item); err != nil {
			e.logEvent("load_item_rejected", map[string]interface{}{
				"item_id": item.ID,
				"error":   err.Error(),
			})
		}
	}
	e.participants = mergeParticipants(participants, e.user)

	return nil
}

// teardown marks the session closed. Any in-flight mutation result arriving
// afterwards is a safe no-op.
func (e *Engine) teardown() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	close(e.done)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.client.RetirePresence(ctx, e.user.ID); err != nil {
		e.logEvent("presence_retire_failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// dispatch runs a backend call on its own goroutine and delivers the result
// into the consumption loop. If the session is torn down before the result
// arrives, the result is discarded.
func (e *Engine) dispatch(fn func(ctx context.Context) completion) {
	e.pending.Add(1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c := fn(ctx)
		select {
		case e.completions <- c:
		case <-e.done:
			e.pending.Done()
		}
	}()
}

// Flush blocks until every dispatched backend call has finished and its
// result has been merged. Chained follow-up writes (a create confirmation
// re-pointing group members, say) are covered too. Intended for one-shot
// callers that exit right after an intent; a long-lived session never needs
// it.
func (e *Engine) Flush() {
	e.pending.Wait()
}

// surface reports a backend failure to the consumer without blocking.
func (e *Engine) surface(err error) {
	select {
	case e.errs <- err:
	default:
	}
}

// Items returns deep copies of all items, ordered by creation time.
func (e *Engine) Items() []*board.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Items()
}

// Item returns a deep copy of one item.
func (e *Engine) Item(id string) (*board.Item, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Get(id)
}

// ConfirmedID resolves an optimistic placeholder ID to the server-assigned
// ID of its record. Until the create round-trip completes, or when it failed,
// the given ID is returned unchanged. Durable IDs pass through.
func (e *Engine) ConfirmedID(id string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if confirmed, ok := e.confirmedIDs[id]; ok {
		return confirmed
	}
	return id
}

// Columns returns the board's columns.
func (e *Engine) Columns() []board.Column {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Columns()
}

// Config returns a deep copy of the board configuration.
func (e *Engine) Config() *board.BoardConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.config == nil {
		return nil
	}
	return e.config.Clone()
}

// Participants returns the current participant set: the last presence
// snapshot merged with the local user.
func (e *Engine) Participants() []board.User {
	e.mu.Lock()
	defer e.mu.Unlock()
	participants := make([]board.User, len(e.participants))
	copy(participants, e.participants)
	return participants
}

// logEvent logs a structured event in JSON format.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "engine"
	data["event_type"] = eventType
	data["board"] = e.client.BoardName()

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Engine] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}

// mergeParticipants overlays the local user onto a presence snapshot.
// Presence data is fresher and wins on overlapping entries, but the local
// user is always present (read-your-writes for profile edits).
func mergeParticipants(snapshot []board.User, local board.User) []board.User {
	merged := make([]board.User, 0, len(snapshot)+1)
	found := false
	for _, u := range snapshot {
		if u.ID == local.ID {
			merged = append(merged, local)
			found = true
			continue
		}
		merged = append(merged, u)
	}
	if !found {
		merged = append(merged, local)
	}
	return merged
}
