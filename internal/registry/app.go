package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mckays/warroom/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrActionInProgress means the user already has a pending action. This is
// a soft rejection; the client may retry after resolution.
var ErrActionInProgress = errors.New("user already performing action")

// RegistryRepository defines what the app layer needs from the repository.
type RegistryRepository interface {
	CreatePendingIfIdle(ctx context.Context, pending models.PendingAction) (bool, error)
	FindPendingByUser(ctx context.Context, username string) ([]models.PendingAction, error)
	FindExpired(ctx context.Context, asOf time.Time) ([]models.PendingAction, error)
	ResolvePending(ctx context.Context, id uuid.UUID, endState models.ActionEndState, at time.Time) (*models.ResolvedAction, error)
}

// ActionChecker validates that a user may perform an action and returns
// its definition.
type ActionChecker interface {
	CheckAction(ctx context.Context, username string, actionID int64) (*models.ActionDefinition, error)
}

// WorkerDispatcher pushes a committed pending action onto the work channel.
type WorkerDispatcher interface {
	DispatchPendingAction(ctx context.Context, pending *models.PendingAction) error
}

// App is the pending action state machine. Per user the states are
// Idle -> Pending -> Idle, with at most one pending action per user at
// any instant.
type App struct {
	repo       RegistryRepository
	checker    ActionChecker
	dispatcher WorkerDispatcher
	clock      clockwork.Clock
	locks      *userLocks
}

func NewApp(repo RegistryRepository, checker ActionChecker, dispatcher WorkerDispatcher, clock clockwork.Clock) *App {
	return &App{
		repo:       repo,
		checker:    checker,
		dispatcher: dispatcher,
		clock:      clock,
		locks:      newUserLocks(),
	}
}

// StartAction validates the submission, enforces the one-pending-action
// invariant, commits the pending record, and only then hands it to the
// worker. The worker never learns of an action that was not committed.
func (a *App) StartAction(ctx context.Context, username string, actionID int64) (*models.PendingAction, error) {
	def, err := a.checker.CheckAction(ctx, username, actionID)
	if err != nil {
		return nil, err
	}

	mu := a.locks.lock(username)
	defer mu.Unlock()

	existing, err := a.repo.FindPendingByUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check existing pending actions: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrActionInProgress
	}

	pending := models.PendingAction{
		ID:       uuid.New(),
		User:     username,
		Action:   *def,
		Deadline: a.clock.Now().Add(def.Duration()),
	}

	created, err := a.repo.CreatePendingIfIdle(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("create pending action: %w", err)
	}
	if !created {
		// Lost the race to a concurrent submission that slipped past the
		// keyed lock (e.g. another instance). The store stays consistent.
		return nil, ErrActionInProgress
	}

	log.Info().
		Str("username", username).
		Str("pending_id", pending.ID.String()).
		Str("action", def.Name).
		Time("deadline", pending.Deadline).
		Msg("pending action created")

	if err := a.dispatcher.DispatchPendingAction(ctx, &pending); err != nil {
		log.Error().
			Err(err).
			Str("pending_id", pending.ID.String()).
			Msg("failed to dispatch pending action to worker")
	}

	return &pending, nil
}

// Resolve consumes a completion signal for a pending action id. Unknown
// ids are a logged no-op: duplicate or late worker signals must not fault
// the registry. Returns nil when nothing was resolved.
func (a *App) Resolve(ctx context.Context, id uuid.UUID, endState models.ActionEndState) (*models.ResolvedAction, error) {
	resolved, err := a.repo.ResolvePending(ctx, id, endState, a.clock.Now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn().
				Str("pending_id", id.String()).
				Msg("completion signal for unknown pending action, ignoring")
			return nil, nil
		}
		return nil, fmt.Errorf("resolve pending action %s: %w", id, err)
	}

	log.Info().
		Str("pending_id", id.String()).
		Str("username", resolved.User).
		Str("action", resolved.Action.Name).
		Str("end_state", string(resolved.EndState)).
		Msg("pending action resolved")

	return resolved, nil
}

// PendingForUser returns the user's in-flight action, if any.
func (a *App) PendingForUser(ctx context.Context, username string) ([]models.PendingAction, error) {
	return a.repo.FindPendingByUser(ctx, username)
}
