package catalog

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

func (r *Repository) GetActionDefinition(ctx context.Context, id int64) (*models.ActionDefinition, error) {
	var def models.ActionDefinition
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, duration_minutes, description, team_role, action_type
		FROM actions
		WHERE id = $1`, id).
		Scan(&def.ID, &def.Name, &def.DurationMinutes, &def.Description, &def.TeamRole, &def.Type)
	if err != nil {
		return nil, fmt.Errorf("get action definition %d: %w", id, err)
	}
	return &def, nil
}
