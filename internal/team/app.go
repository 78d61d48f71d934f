package team

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mckays/warroom/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrInvalidReceiver means the candidate user does not exist or is not on
// the caller's team. The gateway treats it as fatal for the connection.
var ErrInvalidReceiver = errors.New("invalid receiver")

// TeamRepository defines what the app layer needs from the repository.
type TeamRepository interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CountTeammates(ctx context.Context, teamName, username string) (int, error)
}

// App answers membership questions about users and teams.
type App struct {
	repo TeamRepository
}

func NewApp(repo TeamRepository) *App {
	return &App{repo: repo}
}

func (a *App) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return a.repo.GetUserByID(ctx, id)
}

func (a *App) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return a.repo.GetUserByUsername(ctx, username)
}

// IsTeammate reports whether candidate exists and shares a team with the
// user identified by userID. External store failures are folded into
// ErrInvalidReceiver so a raw fault never reaches the client.
func (a *App) IsTeammate(ctx context.Context, userID int64, candidate string) error {
	user, err := a.repo.GetUserByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error().Err(err).Int64("user_id", userID).Msg("membership lookup failed")
		}
		return ErrInvalidReceiver
	}

	count, err := a.repo.CountTeammates(ctx, user.Team, candidate)
	if err != nil {
		log.Error().Err(err).Str("team", user.Team).Str("candidate", candidate).Msg("teammate count failed")
		return ErrInvalidReceiver
	}
	if count == 0 {
		return fmt.Errorf("user %s is not on team %s: %w", candidate, user.Team, ErrInvalidReceiver)
	}

	return nil
}
