package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-whiteboard/internal/config"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/server"
	"github.com/teris-io/shortid"
)

type WhiteboardApp struct {
	log            *log.Logger
	repo           database.SessionRepository
	srv            *http.Server
	hub            *server.Hub
	allowedOrigins []string

	generateShortId func() (string, error)
	generateId      func() string
	now             func() time.Time
}

// NewWhiteboardApp mounts the relay and session routes on mux. A nil repo
// leaves the scheduled session routes unregistered.
func NewWhiteboardApp(mux *http.ServeMux, logger *log.Logger, hub *server.Hub, repo database.SessionRepository, cfg *config.Config) *WhiteboardApp {
	s := &WhiteboardApp{
		log:             logger,
		repo:            repo,
		hub:             hub,
		allowedOrigins:  cfg.AllowedOrigins,
		generateShortId: shortid.Generate,
		generateId:      uuid.NewString,
		now:             time.Now,
	}

	mux.HandleFunc("GET /ws", s.serveWs)
	mux.HandleFunc("GET /healthz", s.healthCheck)
	if repo != nil {
		mux.HandleFunc("GET /api/sessions", s.listSessions)
		mux.HandleFunc("POST /api/sessions", s.createSession)
		mux.HandleFunc("GET /api/sessions/{id}", s.getSession)
		mux.HandleFunc("DELETE /api/sessions/{id}", s.deleteSession)
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.logRequests(h)
	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *WhiteboardApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *WhiteboardApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
