package registry

import (
	"context"
	"time"

	"github.com/mckays/warroom/internal/models"
	"github.com/rs/zerolog/log"
)

// CompletionNotifier fans a zero-payload completion event out to the
// broadcast channel.
type CompletionNotifier interface {
	BroadcastActionComplete()
}

// Sweeper periodically resolves pending actions whose deadline has passed
// as stopped. The worker remains the only source of success outcomes;
// the sweeper exists for deployments where the worker is allowed to
// abandon expired work.
type Sweeper struct {
	app      *App
	notifier CompletionNotifier
	interval time.Duration
}

func NewSweeper(app *App, notifier CompletionNotifier, interval time.Duration) *Sweeper {
	return &Sweeper{app: app, notifier: notifier, interval: interval}
}

// Run sweeps until the context is cancelled. The ticker comes from the
// app's clock, so tests can drive it with a fake clock.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.app.clock.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("expired action sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("expired action sweeper stopped")
			return
		case <-ticker.Chan():
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired, err := s.app.repo.FindExpired(ctx, s.app.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("expired action scan failed")
		return
	}

	for _, pending := range expired {
		resolved, err := s.app.Resolve(ctx, pending.ID, models.ActionEndStateStopped)
		if err != nil {
			log.Error().
				Err(err).
				Str("pending_id", pending.ID.String()).
				Msg("failed to stop expired action")
			continue
		}
		if resolved != nil {
			log.Warn().
				Str("pending_id", pending.ID.String()).
				Str("username", pending.User).
				Time("deadline", pending.Deadline).
				Msg("expired pending action stopped")
			s.notifier.BroadcastActionComplete()
		}
	}
}
