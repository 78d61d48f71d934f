package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mckays/warroom/internal/models"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreatePendingIfIdle inserts a pending action only if the user has none.
// The guard and the insert are a single statement, so two concurrent
// submissions for the same user cannot both commit. Returns false when the
// user already had a pending action.
func (r *Repository) CreatePendingIfIdle(ctx context.Context, pending models.PendingAction) (bool, error) {
	actionBytes, err := json.Marshal(pending.Action)
	if err != nil {
		return false, fmt.Errorf("marshal action definition: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_actions (id, username, action, deadline)
		SELECT $1, $2, $3, $4
		WHERE NOT EXISTS (
			SELECT 1 FROM pending_actions WHERE username = $2
		)`,
		pending.ID, pending.User, actionBytes, pending.Deadline)
	if err != nil {
		return false, fmt.Errorf("create pending action: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create pending action: %w", err)
	}
	return rows == 1, nil
}

func (r *Repository) FindPendingByUser(ctx context.Context, username string) ([]models.PendingAction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, action, deadline
		FROM pending_actions
		WHERE username = $1`, username)
	if err != nil {
		return nil, fmt.Errorf("find pending actions for %s: %w", username, err)
	}
	defer rows.Close()

	var pending []models.PendingAction
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending action: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// FindExpired returns pending actions whose deadline is at or before asOf.
func (r *Repository) FindExpired(ctx context.Context, asOf time.Time) ([]models.PendingAction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, action, deadline
		FROM pending_actions
		WHERE deadline <= $1`, asOf)
	if err != nil {
		return nil, fmt.Errorf("find expired pending actions: %w", err)
	}
	defer rows.Close()

	var expired []models.PendingAction
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending action: %w", err)
		}
		expired = append(expired, p)
	}
	return expired, rows.Err()
}

// ResolvePending atomically deletes the pending action and records the
// resolved action in one transaction. There is no observable window where
// both or neither exist. Returns sql.ErrNoRows if the id is unknown.
func (r *Repository) ResolvePending(ctx context.Context, id uuid.UUID, endState models.ActionEndState, at time.Time) (*models.ResolvedAction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin resolve transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		username    string
		actionBytes []byte
		deadline    time.Time
	)
	err = tx.QueryRowContext(ctx, `
		DELETE FROM pending_actions
		WHERE id = $1
		RETURNING username, action, deadline`, id).
		Scan(&username, &actionBytes, &deadline)
	if err != nil {
		return nil, err
	}

	resolved := models.ResolvedAction{
		ID:         uuid.New(),
		User:       username,
		ResolvedAt: at,
		EndState:   endState,
	}
	if err := json.Unmarshal(actionBytes, &resolved.Action); err != nil {
		return nil, fmt.Errorf("unmarshal action definition: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO resolved_actions (id, username, action, resolved_at, end_state)
		VALUES ($1, $2, $3, $4, $5)`,
		resolved.ID, resolved.User, actionBytes, resolved.ResolvedAt, resolved.EndState)
	if err != nil {
		return nil, fmt.Errorf("create resolved action: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit resolve transaction: %w", err)
	}
	return &resolved, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPending(row rowScanner) (models.PendingAction, error) {
	var (
		p           models.PendingAction
		actionBytes []byte
	)
	if err := row.Scan(&p.ID, &p.User, &actionBytes, &p.Deadline); err != nil {
		return p, err
	}
	if err := json.Unmarshal(actionBytes, &p.Action); err != nil {
		return p, err
	}
	return p, nil
}
