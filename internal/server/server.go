package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/vincentbai/shadowtrace/internal/codec"
	"github.com/vincentbai/shadowtrace/internal/models"
)

// maxBodyBytes caps a decoded request body.
const maxBodyBytes = 4 << 20

// EventStore persists collected events.
type EventStore interface {
	InsertEvents(ctx context.Context, events []models.Event) error
	EventsForSession(ctx context.Context, sessionID string) ([]models.Event, error)
}

// RateLimit configures per-client-IP request limiting. A non-positive
// RPS disables it.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func WithRateLimit(limit RateLimit) Option {
	return func(s *Server) {
		if limit.RPS > 0 {
			s.limiter = newRateLimiter(limit.RPS, limit.Burst)
		}
	}
}

type Server struct {
	db      EventStore
	address string
	server  *http.Server
	logger  *slog.Logger
	limiter *rateLimiter
}

func NewServer(db EventStore, address string, opts ...Option) *Server {
	s := &Server{
		db:      db,
		address: address,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "collector")
	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

// handleSession stores one event posted by a client with buffering
// disabled.
func (s *Server) handleSession(w http.ResponseWriter, request *http.Request) {
	var event models.Event
	if err := decodeBody(w, request, &event); err != nil {
		http.Error(w, "Invalid event payload", http.StatusBadRequest)
		return
	}
	s.store(w, request, []models.Event{event})
}

// handleSessions stores a flushed batch.
func (s *Server) handleSessions(w http.ResponseWriter, request *http.Request) {
	var batch models.Batch
	if err := decodeBody(w, request, &batch); err != nil {
		http.Error(w, "Invalid batch payload", http.StatusBadRequest)
		return
	}
	if len(batch) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.store(w, request, batch)
}

func (s *Server) store(w http.ResponseWriter, request *http.Request, events []models.Event) {
	if err := s.db.InsertEvents(request.Context(), events); err != nil {
		s.logger.Error("storing events", "count", len(events), "error", err)
		http.Error(w, "Failed to store events", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent) // success, no body
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, request *http.Request) {
	events, err := s.db.EventsForSession(request.Context(), request.PathValue("id"))
	if err != nil {
		s.logger.Error("reading session events", "session", request.PathValue("id"), "error", err)
		http.Error(w, "Failed to read events", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", codec.ContentTypeJSON)
	if err := json.NewEncoder(w).Encode(events); err != nil {
		s.logger.Warn("writing session events", "error", err)
	}
}

// decodeBody decodes a possibly gzipped JSON or CBOR request body into v.
func decodeBody(w http.ResponseWriter, request *http.Request, v any) error {
	var body io.Reader = http.MaxBytesReader(w, request.Body, maxBodyBytes)
	if request.Header.Get("Content-Encoding") == "gzip" {
		reader, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("gzip: %w", err)
		}
		defer reader.Close()
		body = io.LimitReader(reader, maxBodyBytes)
	}
	return codec.ForContentType(request.Header.Get("Content-Type")).Decode(body, v)
}

func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /session", s.handleSession)
	mux.HandleFunc("POST /sessions", s.handleSessions)
	mux.HandleFunc("GET /sessions/{id}", s.handleSessionEvents)
	if s.limiter != nil {
		return s.limiter.middleware(mux)
	}
	return mux
}

// Run serves on listener until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, listener net.Listener) error {
	s.server = &http.Server{
		Handler:      s.setupRoutes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	done := make(chan struct{})
	defer close(done)
	if s.limiter != nil {
		go s.limiter.pruneEvery(time.Minute, done)
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("shadowtrace collector listening", "address", listener.Addr().String())
		serveErr <- s.server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownContext); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("server exited")
	return nil
}

// Start listens on the configured address and serves until SIGINT or
// SIGTERM.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx, listener)
}
