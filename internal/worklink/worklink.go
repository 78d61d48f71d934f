package worklink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mckays/warroom/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Config holds settings for the NATS link to the game-logic worker.
type Config struct {
	URL             string
	PendingSubject  string // core -> worker
	CompleteSubject string // worker -> core
	PrintSubject    string // worker debug passthrough
	MaxReconnects   int
	ReconnectWait   time.Duration
}

// DefaultConfig returns the default work channel configuration.
func DefaultConfig() Config {
	return Config{
		URL:             nats.DefaultURL,
		PendingSubject:  "game.actions.pending",
		CompleteSubject: "game.actions.complete",
		PrintSubject:    "game.worker.print",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
	}
}

// Resolver drives the registry's resolve transition from worker signals.
type Resolver interface {
	Resolve(ctx context.Context, id uuid.UUID, endState models.ActionEndState) (*models.ResolvedAction, error)
}

// Broadcaster reaches every connected client.
type Broadcaster interface {
	BroadcastActionComplete()
}

// Link is the work channel: it dispatches committed pending actions to the
// worker and consumes the worker's completion and debug signals. Delivery
// to the worker is at-least-once with no acknowledgment protocol; the
// registry's idempotent resolve absorbs duplicates on the way back.
type Link struct {
	nc          *nats.Conn
	config      Config
	resolver    Resolver
	broadcaster Broadcaster
}

// NewLink connects to NATS. Bind must be called with the resolver and
// broadcaster before Start; the registry depends on the link for dispatch,
// so the two are wired in two steps.
func NewLink(config Config) (*Link, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &Link{
		nc:     nc,
		config: config,
	}, nil
}

// Bind attaches the registry's resolve transition and the broadcast
// channel that completion events fan out on.
func (l *Link) Bind(resolver Resolver, broadcaster Broadcaster) {
	l.resolver = resolver
	l.broadcaster = broadcaster
}

// DispatchPendingAction publishes a committed pending action on the work
// channel. Callers must only invoke this after the registry insert
// durably succeeded.
func (l *Link) DispatchPendingAction(ctx context.Context, pending *models.PendingAction) error {
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshal pending action: %w", err)
	}

	if err := l.nc.Publish(l.config.PendingSubject, data); err != nil {
		return fmt.Errorf("publish pending action: %w", err)
	}

	log.Info().
		Str("pending_id", pending.ID.String()).
		Str("username", pending.User).
		Str("subject", l.config.PendingSubject).
		Msg("pending action dispatched to worker")
	return nil
}

// Start consumes worker signals until the context is cancelled.
func (l *Link) Start(ctx context.Context) error {
	if l.resolver == nil || l.broadcaster == nil {
		return fmt.Errorf("work channel started before Bind")
	}

	completeCh := make(chan *nats.Msg, 64)
	completeSub, err := l.nc.ChanSubscribe(l.config.CompleteSubject, completeCh)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", l.config.CompleteSubject, err)
	}
	defer completeSub.Unsubscribe()

	printCh := make(chan *nats.Msg, 64)
	printSub, err := l.nc.ChanSubscribe(l.config.PrintSubject, printCh)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", l.config.PrintSubject, err)
	}
	defer printSub.Unsubscribe()

	log.Info().
		Str("complete_subject", l.config.CompleteSubject).
		Str("print_subject", l.config.PrintSubject).
		Msg("work channel consumer started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("work channel consumer shutting down")
			return nil
		case msg := <-completeCh:
			l.handleActionComplete(ctx, msg.Data)
		case msg := <-printCh:
			// Debug passthrough from the worker, orthogonal to game state.
			log.Info().Str("worker", string(msg.Data)).Msg("worker print")
		}
	}
}

func (l *Link) handleActionComplete(ctx context.Context, data []byte) {
	id, err := parseActionID(data)
	if err != nil {
		log.Error().Err(err).Str("payload", string(data)).Msg("malformed actionComplete signal")
		return
	}

	log.Info().Str("pending_id", id.String()).Msg("action complete signal received")

	resolved, err := l.resolver.Resolve(ctx, id, models.ActionEndStateSuccess)
	if err != nil {
		log.Error().Err(err).Str("pending_id", id.String()).Msg("failed to resolve pending action")
		return
	}
	if resolved == nil {
		// Unknown or already-resolved id. Absorbed; never reaches clients.
		return
	}

	l.broadcaster.BroadcastActionComplete()
}

// parseActionID accepts the id either bare or JSON-quoted.
func parseActionID(data []byte) (uuid.UUID, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	return uuid.Parse(s)
}

// Close tears down the NATS connection.
func (l *Link) Close() {
	if l.nc != nil {
		l.nc.Close()
	}
}
