package ipc

import (
	"context"
	"fmt"
	"net"
	"net/http"
)

// Server wraps an HTTP server with engine-specific routing.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a Server that binds to the given address.
func NewServer(h *Handler, listenAddr string) *Server {
	mux := http.NewServeMux()

	// Health endpoint.
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Agent endpoints.
	mux.HandleFunc("GET /api/v1/agents", h.ListAgents)
	mux.HandleFunc("GET /api/v1/agents/{agentID}", h.GetAgent)

	// Document registration (pre-extracted text only).
	mux.HandleFunc("POST /api/v1/documents", h.CreateDocument)

	// Debate endpoints.
	mux.HandleFunc("POST /api/v1/debates", h.CreateDebate)
	mux.HandleFunc("GET /api/v1/debates", h.ListDebates)
	mux.HandleFunc("GET /api/v1/debates/{debateID}", h.GetDebate)
	mux.HandleFunc("POST /api/v1/debates/{debateID}/start", h.StartDebate)
	mux.HandleFunc("POST /api/v1/debates/{debateID}/cancel", h.CancelDebate)

	// Live event streams.
	mux.HandleFunc("GET /api/v1/debates/{debateID}/events/stream", h.StreamEvents)
	mux.HandleFunc("GET /api/v1/debates/{debateID}/events/ws", h.StreamEventsWS)

	// Voting.
	mux.HandleFunc("POST /api/v1/statements/{statementID}/vote", h.VoteStatement)

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: corsMiddleware(mux),
	}

	return &Server{
		httpServer: srv,
	}
}

// Start begins listening for HTTP connections. Blocks until the server stops.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// FormatListenURL turns a listen address like ":9820" into a browsable URL.
func FormatListenURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%s", host, port)
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
