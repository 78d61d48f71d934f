package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service is the client-facing gateway: WebSocket connection handling plus
// the broadcast channel.
type Service struct {
	manager *ConnectionManager
	handler *Handler
}

// NewService creates the gateway service with its connection manager and
// frame handler wired together.
func NewService(config ConnectionConfig, verifier TokenVerifier, users UserDirectory, actions ActionStarter, messages MessageStore) *Service {
	manager := NewConnectionManager(config)
	handler := NewHandler(manager, verifier, users, actions, messages)

	return &Service{
		manager: manager,
		handler: handler,
	}
}

// Manager exposes the broadcast channel for the work channel consumer and
// the sweeper.
func (s *Service) Manager() *ConnectionManager {
	return s.manager
}

// Start runs the broadcast loop until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting gateway service")
	s.manager.Start(ctx)
}

// RegisterRoutes registers the WebSocket HTTP routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handler.HandleConnection)
	mux.HandleFunc("/ws/stats", s.handleStats)
	log.Info().Msg("gateway routes registered")
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	connections, rooms := s.manager.Stats()
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"connections":%d,"rooms":%d}`, connections, rooms)
}
