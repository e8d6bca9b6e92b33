// Package api exposes the client's read-only HTTP surface: health, status,
// the activity feed, pending actions, the leaderboard, and Prometheus
// metrics.
package api

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Server provides the HTTP endpoints.
type Server struct {
	logger      zerolog.Logger
	sessions    SessionSource
	leaderboard LeaderboardSource
	server      *http.Server
}

// NewServer creates a Server on the given port. leaderboard may be nil when
// no aggregation endpoint is configured.
func NewServer(sessions SessionSource, leaderboard LeaderboardSource, port int, logger zerolog.Logger) *Server {
	s := &Server{
		logger:      logger.With().Str("component", "api").Logger(),
		sessions:    sessions,
		leaderboard: leaderboard,
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.setupRoutes(),
	}
	return s
}

// Start binds the port and serves in the background. A bind failure is
// returned synchronously.
func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("api server is nil")
	}

	startupChan := make(chan error, 1)

	go func() {
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			startupChan <- fmt.Errorf("failed to bind to address %s: %w", s.server.Addr, err)
			return
		}
		startupChan <- nil

		err = s.server.Serve(ln)
		switch err {
		case nil:
			s.logger.Info().Msg("api server stopped normally")
		case http.ErrServerClosed:
			s.logger.Info().Msg("api server closed gracefully")
		default:
			s.logger.Error().Err(err).Msg("api server error")
		}
	}()

	select {
	case err := <-startupChan:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("api server startup timeout")
	}
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
