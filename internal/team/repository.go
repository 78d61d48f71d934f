package team

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mckays/warroom/internal/models"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `u.id, u.username, u.email, u.team_role, t.name`

func (r *Repository) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.TeamRole, &u.Team); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN teams t ON t.id = u.team_id
		WHERE u.id = $1`, id)

	user, err := r.scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN teams t ON t.id = u.team_id
		WHERE u.username = $1`, username)

	user, err := r.scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	return user, nil
}

// CountTeammates returns how many users named username belong to the team.
// Usernames are unique, so the result is 0 or 1.
func (r *Repository) CountTeammates(ctx context.Context, teamName, username string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM users u
		JOIN teams t ON t.id = u.team_id
		WHERE u.username = $1 AND t.name = $2`, username, teamName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count teammates of %s named %s: %w", teamName, username, err)
	}
	return count, nil
}
