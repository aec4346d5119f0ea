package server

import (
	"context"
	"net/http"
	"time"

	"github.com/breakingdawnisback/Job-Importer/errors"
)

// Start begins serving HTTP and WebSocket traffic on the configured listen
// address. It blocks until the listener fails or Stop is called.
func (s *Server) Start() error {
	// Start the hub in a goroutine
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run()
	}()

	mux := s.setupHTTPRoutes()
	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Infow("HTTP server listening",
		"addr", s.cfg.ListenAddr,
		"max_clients", s.cfg.MaxClients,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Stop gracefully shuts down the server and cleans up resources. In-flight
// imports are given a chance to finalize via the orchestrator's Close.
func (s *Server) Stop() error {
	s.logger.Infow("Initiating server shutdown")

	// Stop accepting HTTP traffic first
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnw("HTTP server shutdown error", "error", err)
		}
	}

	// Let running import sessions finish and stop the orchestrator
	s.orch.Close()

	// Close all client connections BEFORE cancelling context
	// This ensures readPump/writePump exit cleanly before context cancellation
	s.mu.Lock()
	clientsToClose := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clientsToClose = append(clientsToClose, client)
		delete(s.clients, client)
	}
	s.mu.Unlock()

	if len(clientsToClose) > 0 {
		s.logger.Infow("Closing client connections", "count", len(clientsToClose))
		for _, client := range clientsToClose {
			client.close()
		}
	}

	// Cancel context to signal the hub and write pumps to stop
	s.cancel()

	// Wait for goroutines with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infow("Server shutdown complete")
	case <-time.After(ShutdownTimeout):
		s.logger.Warnw("Server shutdown timed out waiting for goroutines")
	}

	if dropped := s.broadcastDrops.Load(); dropped > 0 {
		s.logger.Infow("Broadcast drops over server lifetime", "dropped", dropped)
	}
	return nil
}
