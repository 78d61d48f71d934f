package catalog

import (
	"context"
	"errors"

	"github.com/mckays/warroom/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrActionNotAllowed means the action does not exist or the user's role
// does not match it. Clients only ever see the generic "Invalid action";
// the mismatch reason stays in the logs.
var ErrActionNotAllowed = errors.New("action not allowed")

// CatalogRepository defines what the app layer needs from the repository.
type CatalogRepository interface {
	GetActionDefinition(ctx context.Context, id int64) (*models.ActionDefinition, error)
}

// UserLookup resolves a username to its reference data.
type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// App performs the existence + authorization check for action submissions.
// Pure lookup, no side effects.
type App struct {
	repo  CatalogRepository
	users UserLookup
}

func NewApp(repo CatalogRepository, users UserLookup) *App {
	return &App{repo: repo, users: users}
}

// CheckAction returns the action definition if it exists and its required
// role matches the user's role.
func (a *App) CheckAction(ctx context.Context, username string, actionID int64) (*models.ActionDefinition, error) {
	user, err := a.users.GetUserByUsername(ctx, username)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("user lookup failed during action check")
		return nil, ErrActionNotAllowed
	}

	def, err := a.repo.GetActionDefinition(ctx, actionID)
	if err != nil {
		log.Error().
			Str("username", username).
			Int64("action_id", actionID).
			Msg("user attempted action that does not exist")
		return nil, ErrActionNotAllowed
	}

	if def.TeamRole != user.TeamRole {
		log.Error().
			Str("username", username).
			Str("action", def.Name).
			Str("required_role", string(def.TeamRole)).
			Str("user_role", string(user.TeamRole)).
			Msg("user attempted action that does not match their team role")
		return nil, ErrActionNotAllowed
	}

	return def, nil
}
