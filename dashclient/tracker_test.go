package dashclient

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// countingNotifier records every notification it receives.
type countingNotifier struct {
	mu    sync.Mutex
	calls []Outcome
}

func (n *countingNotifier) Notify(sessionID string, outcome Outcome, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, outcome)
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func (n *countingNotifier) last() Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.calls) == 0 {
		return ""
	}
	return n.calls[len(n.calls)-1]
}

func TestTrackerBeginAndImporting(t *testing.T) {
	tracker := NewTracker(nil, nil, time.Millisecond, zaptest.NewLogger(t).Sugar())

	assert.False(t, tracker.Importing("feed-1"))
	tracker.Begin("feed-1", "session-1")
	assert.True(t, tracker.Importing("feed-1"))
	assert.False(t, tracker.Resolved("session-1"))
}

// Delivering the same terminal session over both channels must produce
// exactly one notification and exactly one refresh.
func TestTrackerFirstResolutionWins(t *testing.T) {
	notifier := &countingNotifier{}
	refreshed := make(chan struct{}, 4)
	tracker := NewTracker(notifier, func() { refreshed <- struct{}{} }, time.Millisecond, zaptest.NewLogger(t).Sugar())

	tracker.Begin("feed-1", "session-1")

	// Push channel wins.
	assert.True(t, tracker.Resolve("session-1", OutcomeCompleted, "import completed"))
	// Poll channel arrives later with the same terminal outcome.
	assert.False(t, tracker.Resolve("session-1", OutcomeCompleted, "import completed"))
	assert.False(t, tracker.Resolve("session-1", OutcomeFailed, "late duplicate"))

	assert.False(t, tracker.Importing("feed-1"))
	assert.True(t, tracker.Resolved("session-1"))
	assert.Equal(t, 1, notifier.count())

	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Fatal("refresh never fired")
	}
	select {
	case <-refreshed:
		t.Fatal("refresh fired more than once")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTrackerConcurrentResolveRace(t *testing.T) {
	notifier := &countingNotifier{}
	tracker := NewTracker(notifier, nil, time.Millisecond, zaptest.NewLogger(t).Sugar())
	tracker.Begin("feed-1", "session-1")

	var wg sync.WaitGroup
	wins := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- tracker.Resolve("session-1", OutcomeCompleted, "done")
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, notifier.count())
}

// Status-unknown keeps the importing flag so the user can tell "lost
// track" from "finished", and a late real outcome can still resolve.
func TestTrackerMarkUnknownKeepsImportingFlag(t *testing.T) {
	notifier := &countingNotifier{}
	tracker := NewTracker(notifier, nil, time.Millisecond, zaptest.NewLogger(t).Sugar())

	tracker.Begin("feed-1", "session-1")
	tracker.MarkUnknown("session-1")

	assert.True(t, tracker.Importing("feed-1"))
	assert.False(t, tracker.Resolved("session-1"))
	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, OutcomeUnknown, notifier.last())

	// A late push delivery still resolves for real.
	assert.True(t, tracker.Resolve("session-1", OutcomeCompleted, "finally"))
	assert.False(t, tracker.Importing("feed-1"))
	assert.Equal(t, 2, notifier.count())
	assert.Equal(t, OutcomeCompleted, notifier.last())
}

func TestTrackerMarkUnknownAfterResolutionIsSilent(t *testing.T) {
	notifier := &countingNotifier{}
	tracker := NewTracker(notifier, nil, time.Millisecond, zaptest.NewLogger(t).Sugar())

	tracker.Begin("feed-1", "session-1")
	require.True(t, tracker.Resolve("session-1", OutcomeFailed, "import failed"))
	tracker.MarkUnknown("session-1")

	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, OutcomeFailed, notifier.last())
}

// An older session's resolution must not clear the flag a newer import of
// the same feed holds.
func TestTrackerStaleResolutionDoesNotClearNewerImport(t *testing.T) {
	tracker := NewTracker(nil, nil, time.Millisecond, zaptest.NewLogger(t).Sugar())

	tracker.Begin("feed-1", "session-old")
	tracker.Begin("feed-1", "session-new")

	assert.True(t, tracker.Resolve("session-old", OutcomeCompleted, "old done"))
	assert.True(t, tracker.Importing("feed-1"))

	assert.True(t, tracker.Resolve("session-new", OutcomeCompleted, "new done"))
	assert.False(t, tracker.Importing("feed-1"))
}
