package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/twcjewels/storefront-api/internal/domain/cart"
)

const (
	getCartLinesSQL = `SELECT user_id, product_id, quantity FROM cart_lines
		WHERE user_id = $1 ORDER BY created_at`

	clearCartSQL = `DELETE FROM cart_lines WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// LinesForUser returns the user's cart lines in insertion order.
func (r *CartRepository) LinesForUser(ctx context.Context, userID string) ([]cart.Line, error) {
	rows, err := r.pool.Query(ctx, getCartLinesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting cart lines for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanCartLine)
}

// Clear deletes all of the user's cart lines. Clearing an empty cart is a
// no-op, which keeps post-payment cart cleanup retryable.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, clearCartSQL, userID)
	if err != nil {
		return fmt.Errorf("clearing cart for user %q: %w", userID, err)
	}
	return nil
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var l cart.Line
	err := row.Scan(&l.UserID, &l.ProductID, &l.Quantity)
	return l, err
}
