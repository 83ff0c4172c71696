package withdrawal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRequestNotFound signals the withdraw request does not exist.
var ErrRequestNotFound = errors.New("withdrawal: request not found")

// Repository persists withdraw requests in the marketplace's data store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new pending withdraw request.
func (r *Repository) Create(ctx context.Context, req Request) (Request, error) {
	const query = `
		INSERT INTO withdraw_requests (id, user_id, amount, method, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query, req.ID, req.UserID, req.Amount, req.Method, req.Status).
		Scan(&req.CreatedAt)
	if err != nil {
		return Request{}, fmt.Errorf("withdrawal: insert request: %w", err)
	}
	return req, nil
}

// PendingByUser lists the user's pending requests, oldest first. Ordering
// matters for settlement: when several requests share an amount, the
// earliest one settles first.
func (r *Repository) PendingByUser(ctx context.Context, userID string) ([]Request, error) {
	const query = `
		SELECT id, user_id, amount, method, status, created_at
		FROM withdraw_requests
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, userID, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("withdrawal: list pending: %w", err)
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.UserID, &req.Amount, &req.Method, &req.Status, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("withdrawal: scan request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("withdrawal: iterate requests: %w", err)
	}

	return requests, nil
}

// GetByID fetches a single withdraw request.
func (r *Repository) GetByID(ctx context.Context, id string) (Request, error) {
	const query = `
		SELECT id, user_id, amount, method, status, created_at
		FROM withdraw_requests
		WHERE id = $1
	`

	var req Request
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&req.ID, &req.UserID, &req.Amount, &req.Method, &req.Status, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, fmt.Errorf("withdrawal: query request: %w", err)
	}
	return req, nil
}

// UpdateStatus transitions a withdraw request to the given status.
func (r *Repository) UpdateStatus(ctx context.Context, id, status string) error {
	const query = `
		UPDATE withdraw_requests
		SET status = $1, updated_at = now()
		WHERE id = $2
	`

	tag, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("withdrawal: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}
