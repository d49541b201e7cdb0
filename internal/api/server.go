package api

import (
	"net/http"

	"github.com/codetrek/cloudsync/internal/feed"
)

type Server struct {
	engine SyncService
	hub    *feed.Hub
	auth   Middleware
	mux    *http.ServeMux
}

// Middleware wraps the sync endpoints; nil means no authentication.
type Middleware func(next http.Handler) http.Handler

func NewServer(engine SyncService, hub *feed.Hub, authMiddleware Middleware) *Server {
	s := &Server{
		engine: engine,
		hub:    hub,
		auth:   authMiddleware,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS headers
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Sync Operations
	s.mux.Handle("POST /ops", s.protected(s.handlePush))
	s.mux.Handle("GET /pull", s.protected(s.handlePull))
	s.mux.Handle("GET /stream", s.protected(s.handleStream))

	// Document read-back
	s.mux.Handle("GET /docs/{collection}/{id}", s.protected(s.handleGetDocument))

	// Health Check
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

func (s *Server) protected(h http.HandlerFunc) http.Handler {
	if s.auth == nil {
		return h
	}
	return s.auth(h)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
