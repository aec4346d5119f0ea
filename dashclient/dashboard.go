package dashclient

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/breakingdawnisback/Job-Importer/errors"
)

// Dashboard ties the pieces together: it starts imports over REST, tracks
// them, and runs the poll fallback for each started session. The push
// channel runs separately (see PushChannel.Run) and races the pollers
// through the shared tracker.
type Dashboard struct {
	client  *Client
	tracker *Tracker
	poller  *Poller
	logger  *zap.SugaredLogger

	wg sync.WaitGroup
}

// NewDashboard wires a REST client, tracker, and poller.
func NewDashboard(client *Client, tracker *Tracker, logger *zap.SugaredLogger) *Dashboard {
	return &Dashboard{
		client:  client,
		tracker: tracker,
		poller:  NewPoller(client, tracker, logger),
		logger:  logger.Named("dashboard"),
	}
}

// Tracker exposes the shared tracker so a push channel can be wired to it.
func (d *Dashboard) Tracker() *Tracker {
	return d.tracker
}

// StartImport kicks off an import for the feed and begins watching the
// resulting session. Returns the session id from the 202 response.
func (d *Dashboard) StartImport(ctx context.Context, feedID string) (string, error) {
	if d.tracker.Importing(feedID) {
		return "", errors.Newf("feed %s already has an import in flight", feedID)
	}

	sessionID, err := d.client.StartImport(ctx, feedID)
	if err != nil {
		return "", err
	}

	d.tracker.Begin(feedID, sessionID)
	d.logger.Infow("Import started",
		"feed_id", feedID,
		"session_id", sessionID,
	)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.poller.Watch(ctx, sessionID)
	}()

	return sessionID, nil
}

// Wait blocks until all poll watchers have finished.
func (d *Dashboard) Wait() {
	d.wg.Wait()
}
