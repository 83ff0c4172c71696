package storefront

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrOrderNotFound signals the requested order does not exist.
	ErrOrderNotFound = errors.New("storefront: order not found")
	// ErrMetaAlreadySet signals an exactly-once metadata attach lost to an
	// earlier write.
	ErrMetaAlreadySet = errors.New("storefront: meta already set")
)

// Repository provides access to the storefront's own data store. The gateway
// treats the store as an external collaborator; this is its pgx adapter.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetOrder fetches an order with its line items.
func (r *Repository) GetOrder(ctx context.Context, orderID string) (Order, error) {
	const query = `
		SELECT id, order_key, user_id, status, currency, total, payment_method,
		       tradesafe_transaction_id, tradesafe_deposit_id, created_at
		FROM orders
		WHERE id = $1
	`

	var order Order
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&order.ID,
		&order.OrderKey,
		&order.UserID,
		&order.Status,
		&order.Currency,
		&order.Total,
		&order.PaymentMethod,
		&order.TransactionID,
		&order.DepositID,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("storefront: query order: %w", err)
	}

	items, err := r.listItems(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *Repository) listItems(ctx context.Context, orderID string) ([]LineItem, error) {
	const query = `
		SELECT id, order_id, name, vendor_id, total
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("storefront: list items: %w", err)
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.Name, &item.VendorID, &item.Total); err != nil {
			return nil, fmt.Errorf("storefront: scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storefront: iterate items: %w", err)
	}

	return items, nil
}

// UpdateStatus transitions the order status and records the transition note.
func (r *Repository) UpdateStatus(ctx context.Context, orderID, status, note string) error {
	const query = `
		UPDATE orders
		SET status = $1, status_note = $2, updated_at = now()
		WHERE id = $3
	`

	tag, err := r.pool.Exec(ctx, query, status, note, orderID)
	if err != nil {
		return fmt.Errorf("storefront: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// AttachTransactionID records the escrow transaction id on the order. The
// write only succeeds while the column is still unset, so repeated checkouts
// cannot overwrite an earlier attach.
func (r *Repository) AttachTransactionID(ctx context.Context, orderID, transactionID string) error {
	return r.attachMeta(ctx, orderID, "tradesafe_transaction_id", transactionID)
}

// AttachDepositID records the escrow deposit id on the order, exactly once.
func (r *Repository) AttachDepositID(ctx context.Context, orderID, depositID string) error {
	return r.attachMeta(ctx, orderID, "tradesafe_deposit_id", depositID)
}

func (r *Repository) attachMeta(ctx context.Context, orderID, column, value string) error {
	query := fmt.Sprintf(`
		UPDATE orders
		SET %s = $1, updated_at = now()
		WHERE id = $2 AND %s IS NULL
	`, column, column)

	tag, err := r.pool.Exec(ctx, query, value, orderID)
	if err != nil {
		return fmt.Errorf("storefront: attach %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
			return fmt.Errorf("storefront: check order: %w", err)
		}
		if !exists {
			return ErrOrderNotFound
		}
		return ErrMetaAlreadySet
	}
	return nil
}

// EmptyCart removes all active cart rows for the user.
func (r *Repository) EmptyCart(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("storefront: empty cart: %w", err)
	}
	return nil
}

// GetUserTokenID fetches the escrow token linked to the user. An empty
// string means the user has not linked an escrow identity yet.
func (r *Repository) GetUserTokenID(ctx context.Context, userID string) (string, error) {
	const query = `
		SELECT value
		FROM user_meta
		WHERE user_id = $1 AND key = 'tradesafe_token_id'
	`

	var tokenID string
	err := r.pool.QueryRow(ctx, query, userID).Scan(&tokenID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("storefront: query user token: %w", err)
	}
	return tokenID, nil
}

// SetUserTokenID links an escrow token to the user, replacing any prior link.
func (r *Repository) SetUserTokenID(ctx context.Context, userID, tokenID string) error {
	const query = `
		INSERT INTO user_meta (user_id, key, value)
		VALUES ($1, 'tradesafe_token_id', $2)
		ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value
	`

	if _, err := r.pool.Exec(ctx, query, userID, tokenID); err != nil {
		return fmt.Errorf("storefront: set user token: %w", err)
	}
	return nil
}
