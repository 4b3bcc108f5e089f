package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/gambit.space/internal/id"
	"github.com/louisbranch/gambit.space/internal/platform/timeouts"
	"github.com/louisbranch/gambit.space/internal/services/arena/auth"
	"github.com/louisbranch/gambit.space/internal/services/arena/rules"
	"github.com/louisbranch/gambit.space/internal/services/arena/storage/sqlite"
)

// Config defines the inputs for the arena process.
type Config struct {
	HTTPAddr           string
	DBPath             string
	JWTSecret          string
	CleanupDelay       time.Duration
	TournamentCapacity int
	TournamentRounds   int
	ReadHeaderTimeout  time.Duration
	ShutdownTimeout    time.Duration
}

// Server hosts the arena HTTP and websocket surface over the
// serialized orchestration core.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	store           *sqlite.Store
}

// NewServer opens the store and wires the service, transport, and API.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	store, err := sqlite.Open(config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	tokens, err := auth.NewTokenManager(config.JWTSecret, nil)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init token manager: %w", err)
	}

	svc, err := NewService(ServiceConfig{
		Rules:              rules.NewChessAdapter(),
		Sink:               store,
		NewID:              id.NewID,
		CleanupDelay:       config.CleanupDelay,
		TournamentCapacity: config.TournamentCapacity,
		TournamentRounds:   config.TournamentRounds,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init service: %w", err)
	}

	api := &apiHandler{users: store, tokens: tokens, newID: id.NewID}
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           newHandler(svc, api, tokens),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		store:           store,
	}, nil
}

// Run creates and serves an arena server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init arena server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve arena: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("arena server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	log.Printf("arena server listening on %s", s.httpAddr)
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("arena: close store: %v", err)
		}
	}
}
