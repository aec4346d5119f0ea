package dashclient

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/breakingdawnisback/Job-Importer/importer"
)

// Poll channel tuning. The initial delay gives the push channel first shot
// at short imports; the attempt cap bounds how long we keep asking before
// admitting we lost track.
const (
	pollInitialDelay = 2 * time.Second
	pollBackoffBase  = 2 * time.Second
	pollBackoffCap   = 20 * time.Second
	pollMaxAttempts  = 10
)

// Poller is the fallback discovery channel: it asks the status endpoint on
// a backoff schedule until it sees a terminal status, the tracker reports
// the session already resolved, or its attempt budget runs out.
type Poller struct {
	client  *Client
	tracker *Tracker
	logger  *zap.SugaredLogger

	initialDelay time.Duration
	backoffBase  time.Duration
	backoffCap   time.Duration
	maxAttempts  uint64
}

// NewPoller creates a poller with default tuning.
func NewPoller(client *Client, tracker *Tracker, logger *zap.SugaredLogger) *Poller {
	return &Poller{
		client:       client,
		tracker:      tracker,
		logger:       logger.Named("poll"),
		initialDelay: pollInitialDelay,
		backoffBase:  pollBackoffBase,
		backoffCap:   pollBackoffCap,
		maxAttempts:  pollMaxAttempts,
	}
}

// errStillRunning drives the retry loop while the session has not reached
// a terminal status yet.
var errStillRunning = retryError("import still in progress")

type retryError string

func (e retryError) Error() string { return string(e) }

// Watch polls the session until resolution or exhaustion. It blocks, so
// run it in its own goroutine, one per started import. On exhaustion the
// tracker surfaces a "status unknown" notification; the importing flag is
// deliberately left set.
func (p *Poller) Watch(ctx context.Context, sessionID string) {
	select {
	case <-time.After(p.initialDelay):
	case <-ctx.Done():
		return
	}

	backoff := retry.NewExponential(p.backoffBase)
	backoff = retry.WithCappedDuration(p.backoffCap, backoff)
	backoff = retry.WithMaxRetries(p.maxAttempts, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		// The push channel may have won while we were sleeping.
		if p.tracker.Resolved(sessionID) {
			return nil
		}

		status, _, err := p.client.Status(ctx, sessionID)
		if err != nil {
			p.logger.Debugw("Status poll failed",
				"session_id", sessionID,
				"error", err,
			)
			return retry.RetryableError(err)
		}

		switch status {
		case string(importer.StatusCompleted):
			p.tracker.Resolve(sessionID, OutcomeCompleted, "import completed")
			return nil
		case string(importer.StatusFailed):
			p.tracker.Resolve(sessionID, OutcomeFailed, "import failed")
			return nil
		case importer.StatusNotFound:
			// The session row may lag the 202 response briefly; keep
			// asking within the attempt budget.
			p.logger.Debugw("Session not visible yet", "session_id", sessionID)
			return retry.RetryableError(errStillRunning)
		default:
			return retry.RetryableError(errStillRunning)
		}
	})
	if err != nil && ctx.Err() == nil {
		p.tracker.MarkUnknown(sessionID)
	}
}
