package dashclient

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Outcome is the user-visible result of an import session.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"

	// OutcomeUnknown means the poll loop exhausted its attempt budget
	// without observing a terminal status. The importing flag is kept so
	// the user can tell "we lost track" apart from "it finished".
	OutcomeUnknown Outcome = "unknown"
)

// Notifier receives user-facing notifications. It is called at most once
// with a terminal outcome per session.
type Notifier interface {
	Notify(sessionID string, outcome Outcome, message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(sessionID string, outcome Outcome, message string)

func (f NotifierFunc) Notify(sessionID string, outcome Outcome, message string) {
	f(sessionID, outcome, message)
}

// Tracker reconciles the push and poll channels. Both may observe the same
// terminal session; whichever calls Resolve first wins, and the loser
// no-ops against the resolved set. That idempotency guard is what prevents
// duplicate notifications and refreshes.
type Tracker struct {
	mu                 sync.Mutex
	importingFeedIDs   map[string]string  // feedID -> sessionID
	sessionFeedIDs     map[string]string  // sessionID -> feedID
	resolvedSessionIDs map[string]Outcome // sessionID -> terminal outcome

	notifier      Notifier
	refresh       func()
	settlingDelay time.Duration
	logger        *zap.SugaredLogger
}

// NewTracker creates a tracker. refresh is invoked once per resolved
// session, settlingDelay after resolution, to re-read feed and session
// listings (the backing store is not read-after-write consistent from the
// dashboard's perspective). Either notifier or refresh may be nil.
func NewTracker(notifier Notifier, refresh func(), settlingDelay time.Duration, logger *zap.SugaredLogger) *Tracker {
	return &Tracker{
		importingFeedIDs:   make(map[string]string),
		sessionFeedIDs:     make(map[string]string),
		resolvedSessionIDs: make(map[string]Outcome),
		notifier:           notifier,
		refresh:            refresh,
		settlingDelay:      settlingDelay,
		logger:             logger.Named("tracker"),
	}
}

// Begin marks a feed as importing under the given session.
func (t *Tracker) Begin(feedID, sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.importingFeedIDs[feedID] = sessionID
	t.sessionFeedIDs[sessionID] = feedID
	t.logger.Debugw("Import tracked", "feed_id", feedID, "session_id", sessionID)
}

// Importing reports whether the feed currently has an unresolved import.
func (t *Tracker) Importing(feedID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.importingFeedIDs[feedID]
	return ok
}

// Resolved reports whether the session already has a terminal resolution.
func (t *Tracker) Resolved(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.resolvedSessionIDs[sessionID]
	return ok
}

// Resolve records a terminal outcome for the session. The first caller
// wins: the importing flag is cleared, the notifier fires once, and one
// listing refresh is scheduled after the settling delay. Subsequent calls
// for the same session return false and have no effect.
func (t *Tracker) Resolve(sessionID string, outcome Outcome, message string) bool {
	t.mu.Lock()
	if _, done := t.resolvedSessionIDs[sessionID]; done {
		t.mu.Unlock()
		t.logger.Debugw("Duplicate resolution ignored",
			"session_id", sessionID,
			"outcome", outcome,
		)
		return false
	}
	t.resolvedSessionIDs[sessionID] = outcome
	if feedID, ok := t.sessionFeedIDs[sessionID]; ok {
		// Only clear if this session still owns the flag; a newer import
		// for the same feed must not be unmarked by an older resolution.
		if current, importing := t.importingFeedIDs[feedID]; importing && current == sessionID {
			delete(t.importingFeedIDs, feedID)
		}
	}
	t.mu.Unlock()

	t.logger.Infow("Import resolved",
		"session_id", sessionID,
		"outcome", outcome,
	)

	if t.notifier != nil {
		t.notifier.Notify(sessionID, outcome, message)
	}
	if t.refresh != nil {
		time.AfterFunc(t.settlingDelay, t.refresh)
	}
	return true
}

// MarkUnknown surfaces a "status unknown" notification after the poll loop
// gives up. The session is NOT added to the resolved set and the importing
// flag is NOT cleared: a late push event may still deliver the real
// outcome, and the user must be able to tell "lost track" from "finished".
func (t *Tracker) MarkUnknown(sessionID string) {
	t.mu.Lock()
	if _, done := t.resolvedSessionIDs[sessionID]; done {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.logger.Warnw("Import status unknown after poll exhaustion", "session_id", sessionID)
	if t.notifier != nil {
		t.notifier.Notify(sessionID, OutcomeUnknown, "import status unknown")
	}
}
