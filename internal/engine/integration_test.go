//go:build integration

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddleboard/huddle/internal/testutil"
	"github.com/huddleboard/huddle/pkg/board"
)

// startSessionAgainst runs an engine for one participant against a real Redis
// container until the test ends.
func startSessionAgainst(t *testing.T, env *testutil.BoardEnvironment, user board.User) *Engine {
	client, err := board.NewClient(&redis.Options{Addr: env.RedisAddr}, env.BoardName)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	eng := New(client, user, testDefaults())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-eng.Ready():
	case err := <-done:
		t.Fatalf("engine stopped before becoming ready: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for engine to become ready")
	}
	return eng
}

// waitForState polls a cross-engine condition. Real Redis round-trips are
// slower than miniredis, so the window is generous.
func waitForState(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for %s", msg)
		case <-tick.C:
			if cond() {
				return
			}
		}
	}
}

// TestSessions_ConvergeOnSharedBoard drives two live sessions through a full
// retro flow against a containerized Redis and checks that both end up with
// identical state.
func TestSessions_ConvergeOnSharedBoard(t *testing.T) {
	env := testutil.SetupBoardEnvironment(t)

	aliceEng := startSessionAgainst(t, env, board.User{ID: "user-alice", Name: "Alice", Color: "teal"})
	bobEng := startSessionAgainst(t, env, board.User{ID: "user-bob", Name: "Bob", Color: "red"})

	// Both participants add cards.
	_, err := aliceEng.AddItem("pairing worked great", "col-well", false)
	require.NoError(t, err)
	_, err = bobEng.AddItem("too many meetings", "col-bad", false)
	require.NoError(t, err)
	aliceEng.Flush()
	bobEng.Flush()

	waitForState(t, func() bool {
		return len(aliceEng.Items()) == 2 && len(bobEng.Items()) == 2
	}, "both cards to reach both sessions")

	// Alice groups her card onto Bob's.
	var aliceCard, bobCard string
	for _, item := range aliceEng.Items() {
		switch item.Content {
		case "pairing worked great":
			aliceCard = item.ID
		case "too many meetings":
			bobCard = item.ID
		}
	}
	require.NoError(t, aliceEng.GroupItem(aliceCard, bobCard))
	aliceEng.Flush()

	waitForState(t, func() bool {
		for _, item := range bobEng.Items() {
			if item.IsGroup() {
				return len(findMemberIDs(bobEng, item.ID)) == 2
			}
		}
		return false
	}, "group to reach the other session")

	// Bob votes on the group and ends the session; the results column and its
	// clones appear for Alice too.
	groupID := findGroup(t, bobEng).ID
	require.NoError(t, bobEng.StartVoting(board.VotingConfig{VotesPerParticipant: 3}))
	bobEng.Flush()
	waitForState(t, func() bool { return aliceEng.VotingActive() }, "voting to start everywhere")

	require.NoError(t, bobEng.CastVote(groupID, 1))
	require.NoError(t, bobEng.EndVoting())
	bobEng.Flush()

	waitForState(t, func() bool {
		cfg := aliceEng.Config()
		results, ok := cfg.ColumnByTitle(board.ResultsColumnTitle)
		if !ok {
			return false
		}
		cloned := 0
		for _, item := range aliceEng.Items() {
			if item.ColumnID == results.ID {
				cloned++
			}
		}
		return cloned == 3
	}, "voting results to reach the other session")

	assert.False(t, aliceEng.VotingActive())
	assert.False(t, bobEng.VotingActive())

	// Both sessions see the identical item set.
	waitForState(t, func() bool {
		return len(aliceEng.Items()) == len(bobEng.Items())
	}, "item sets to converge")
	aliceItems := aliceEng.Items()
	bobItems := bobEng.Items()
	require.Equal(t, len(aliceItems), len(bobItems))
	for i := range aliceItems {
		assert.Equal(t, aliceItems[i].ID, bobItems[i].ID)
		assert.Equal(t, aliceItems[i].Content, bobItems[i].Content)
		assert.Equal(t, aliceItems[i].ParentID, bobItems[i].ParentID)
	}
}

// TestSessions_ConcurrentDissolveHeals has both sessions race to dissolve the
// same group; the idempotent repair must leave one consistent end state.
func TestSessions_ConcurrentDissolveHeals(t *testing.T) {
	env := testutil.SetupBoardEnvironment(t)

	writer := startSessionAgainst(t, env, board.User{ID: "user-alice", Name: "Alice", Color: "teal"})
	observer := startSessionAgainst(t, env, board.User{ID: "user-bob", Name: "Bob", Color: "red"})

	_, err := writer.AddItem("one", "col-well", false)
	require.NoError(t, err)
	_, err = writer.AddItem("two", "col-well", false)
	require.NoError(t, err)
	writer.Flush()

	require.NoError(t, writer.GroupItem(itemByContent(t, writer, "one").ID, itemByContent(t, writer, "two").ID))
	writer.Flush()
	groupID := findGroup(t, writer).ID

	waitForState(t, func() bool {
		_, ok := observer.Item(groupID)
		return ok
	}, "group to reach the observer")

	// Moving one member out drops the group to a single member. The writer
	// dissolves locally and repairs the backend; the observer reaches the same
	// conclusion from the move event alone.
	require.NoError(t, writer.MoveItem(itemByContent(t, writer, "one").ID, "col-bad", nil))
	writer.Flush()

	for _, eng := range []*Engine{writer, observer} {
		waitForState(t, func() bool {
			_, ok := eng.Item(groupID)
			return !ok
		}, "group to dissolve everywhere")
	}

	waitForState(t, func() bool {
		for _, eng := range []*Engine{writer, observer} {
			if len(eng.Items()) != 2 {
				return false
			}
			for _, item := range eng.Items() {
				if item.ParentID != "" {
					return false
				}
			}
		}
		return true
	}, "surviving cards to detach everywhere")
}
