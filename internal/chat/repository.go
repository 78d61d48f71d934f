package chat

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mckays/warroom/internal/models"
)

// Repository persists message history. Recording is independent of
// delivery outcome.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SaveMessage(ctx context.Context, msg models.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (message, date, sender, receiver)
		VALUES ($1, $2, $3, $4)`,
		msg.Message, msg.Date, msg.Sender, msg.Receiver)
	if err != nil {
		return fmt.Errorf("save message from %s to %s: %w", msg.Sender, msg.Receiver, err)
	}
	return nil
}
