// Package server exposes the job importer over HTTP and WebSocket: feed
// CRUD, import-session operations, and the real-time notification
// broadcaster.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/breakingdawnisback/Job-Importer/config"
	"github.com/breakingdawnisback/Job-Importer/feed"
	"github.com/breakingdawnisback/Job-Importer/importer"
)

// Server is the HTTP/WebSocket server plus the broadcaster hub. The hub's
// subscriber set is mutated by connect/disconnect events and read during
// broadcast; all access goes through mu.
type Server struct {
	db       *sql.DB
	cfg      config.ServerConfig
	feeds    *feed.Store
	sessions *importer.SessionStore
	jobs     *importer.JobStore
	orch     *importer.Orchestrator

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	httpServer *http.Server
	logger     *zap.SugaredLogger

	// Lifecycle management
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	broadcastDrops atomic.Int64
}

// New creates a server. The orchestrator's event sink is wired to the
// broadcaster here so session transitions reach connected clients.
func New(ctx context.Context, db *sql.DB, cfg config.ServerConfig, feeds *feed.Store, sessions *importer.SessionStore, jobs *importer.JobStore, orch *importer.Orchestrator, logger *zap.SugaredLogger) *Server {
	serverCtx, cancel := context.WithCancel(ctx)
	s := &Server{
		db:         db,
		cfg:        cfg,
		feeds:      feeds,
		sessions:   sessions,
		jobs:       jobs,
		orch:       orch,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.Named("server"),
		ctx:        serverCtx,
		cancel:     cancel,
	}
	orch.SetEvents(s)
	return s
}

// Run starts the hub event loop. It returns when the server context is
// cancelled.
func (s *Server) Run() {
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debugw("Server hub stopping due to context cancellation")
			return
		case client := <-s.register:
			s.handleClientRegister(client)
		case client := <-s.unregister:
			s.handleClientUnregister(client)
		}
	}
}

// handleClientRegister adds a new client connection and sends the
// connection_established liveness signal.
func (s *Server) handleClientRegister(client *Client) {
	s.mu.Lock()
	if len(s.clients) >= s.cfg.MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection",
			"client_id", client.id,
			"max_clients", s.cfg.MaxClients,
		)
		client.close()
		return
	}
	s.clients[client] = true
	totalClients := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected",
		"client_id", client.id,
		"total_clients", totalClients,
	)

	client.enqueue(Event{
		Type: EventConnectionEstablished,
		Data: ConnectionData{
			ClientID: client.id,
			Version:  client.serverVersion,
		},
	})
}

// handleClientUnregister removes a disconnected client.
func (s *Server) handleClientUnregister(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		totalClients := len(s.clients)
		s.mu.Unlock()

		client.close()
		s.logger.Infow("Client disconnected",
			"client_id", client.id,
			"total_clients", totalClients,
		)
		return
	}
	s.mu.Unlock()
}

// removeSlowClient removes a client whose send queue stayed full during a
// broadcast. Disconnected clients simply miss events; delivery here is
// best-effort by contract.
func (s *Server) removeSlowClient(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, client)
	s.mu.Unlock()

	client.close()
	s.logger.Warnw("Client send queue full, removing client",
		"client_id", client.id,
		"total_drops", s.broadcastDrops.Load(),
	)
}

// broadcastMessage sends an event to all connected clients. Returns the
// number of clients that accepted the message (queue not full). Delivery is
// at-most-once: no retry, no persistence.
func (s *Server) broadcastMessage(event Event) int {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		if client.enqueue(event) {
			sent++
		} else {
			s.broadcastDrops.Add(1)
			s.removeSlowClient(client)
		}
	}
	return sent
}

// clientCount reports the current number of connected clients.
func (s *Server) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
