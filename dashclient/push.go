package dashclient

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Push channel tuning.
const (
	pushReconnectBase = 1 * time.Second
	pushReconnectCap  = 30 * time.Second
	pushMaxReconnects = 6
)

// envelope is the wire form of every WebSocket message.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// terminalEventData is the subset of completion/failure payloads the
// reconciliation layer cares about.
type terminalEventData struct {
	FeedID   string `json:"feedId"`
	FeedName string `json:"feedName"`
	ImportID string `json:"importId"`
	Error    string `json:"error"`
}

// PushChannel subscribes to the server's WebSocket and feeds terminal
// events into the tracker. Delivery on this channel is at-most-once; the
// poll channel exists because this one is allowed to miss events.
type PushChannel struct {
	url     string
	tracker *Tracker
	dialer  *websocket.Dialer
	logger  *zap.SugaredLogger
	down    atomic.Bool

	reconnectBase time.Duration
	reconnectCap  time.Duration
	maxReconnects uint64
}

// NewPushChannel creates a push subscription for the given ws:// URL.
func NewPushChannel(url string, tracker *Tracker, logger *zap.SugaredLogger) *PushChannel {
	return &PushChannel{
		url:           url,
		tracker:       tracker,
		dialer:        websocket.DefaultDialer,
		logger:        logger.Named("push"),
		reconnectBase: pushReconnectBase,
		reconnectCap:  pushReconnectCap,
		maxReconnects: pushMaxReconnects,
	}
}

// Down reports whether the channel gave up reconnecting. Once down it stays
// down; the poll channel is the sole source of truth from then on.
func (p *PushChannel) Down() bool {
	return p.down.Load()
}

// Run connects and consumes events until the context is cancelled or
// reconnection attempts are exhausted. Intended to run in its own
// goroutine.
func (p *PushChannel) Run(ctx context.Context) {
	for {
		conn, err := p.connect(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.down.Store(true)
				p.logger.Warnw("Push channel permanently down",
					"url", p.url,
					"error", err,
				)
			}
			return
		}

		p.logger.Infow("Push channel connected", "url", p.url)
		p.consume(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		p.logger.Warnw("Push channel disconnected, reconnecting", "url", p.url)
	}
}

// connect dials with exponential backoff up to the attempt cap.
func (p *PushChannel) connect(ctx context.Context) (*websocket.Conn, error) {
	backoff := retry.NewExponential(p.reconnectBase)
	backoff = retry.WithCappedDuration(p.reconnectCap, backoff)
	backoff = retry.WithMaxRetries(p.maxReconnects, backoff)

	var conn *websocket.Conn
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, _, err := p.dialer.DialContext(ctx, p.url, nil)
		if err != nil {
			p.logger.Debugw("Push dial failed", "url", p.url, "error", err)
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// consume reads envelopes until the connection drops or the context is
// cancelled.
func (p *PushChannel) consume(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() == nil {
				p.logger.Debugw("Push read failed", "error", err)
			}
			return
		}
		p.handleEvent(env)
	}
}

func (p *PushChannel) handleEvent(env envelope) {
	switch env.Type {
	case "connection_established":
		p.logger.Debugw("Push channel liveness confirmed")
	case "import_completed":
		var data terminalEventData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			p.logger.Warnw("Malformed import_completed payload", "error", err)
			return
		}
		p.tracker.Resolve(data.ImportID, OutcomeCompleted, "import completed for "+data.FeedName)
	case "import_failed":
		var data terminalEventData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			p.logger.Warnw("Malformed import_failed payload", "error", err)
			return
		}
		p.tracker.Resolve(data.ImportID, OutcomeFailed, "import failed for "+data.FeedName+": "+data.Error)
	case "import_started", "import_progress":
		// Informational only; resolution is driven by terminal events.
	default:
		p.logger.Debugw("Unknown push event type", "type", env.Type)
	}
}
