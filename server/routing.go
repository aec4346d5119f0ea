package server

import "net/http"

// setupHTTPRoutes configures all HTTP handlers on a dedicated mux.
func (s *Server) setupHTTPRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.corsMiddleware(s.HandleWebSocket))        // Real-time import notifications
	mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))       // Health check with version info
	mux.HandleFunc("/api/feeds", s.corsMiddleware(s.HandleFeeds))     // List/create feeds (GET/POST)
	mux.HandleFunc("/api/feeds/", s.corsMiddleware(s.HandleFeed))     // Feed CRUD and import trigger (GET/PUT/DELETE, POST /import)
	mux.HandleFunc("/api/imports", s.corsMiddleware(s.HandleImports)) // List import sessions (GET)
	mux.HandleFunc("/api/imports/", s.corsMiddleware(s.HandleImport)) // Session detail, status poll, delete (GET/DELETE)
	mux.HandleFunc("/api/jobs", s.corsMiddleware(s.HandleJobs))       // List imported jobs for a feed (GET)

	return mux
}

// corsMiddleware adds CORS headers to HTTP responses using configured allowed origins
// Uses the same origin validation as WebSocket connections (server.allowed_origins config)
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// If origin is present and allowed by config, set CORS headers
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}
