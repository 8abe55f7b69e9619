// Package cart holds the customer cart model consumed by checkout.
// Cart mutation endpoints (add/remove) live outside the checkout core; the
// core only reads lines and clears them after a successful order.
package cart

import "context"

// Line is a single cart entry, unique per (user, product).
type Line struct {
	UserID    string
	ProductID string
	Quantity  int
}

// Repository defines the cart operations the checkout core relies on.
type Repository interface {
	LinesForUser(ctx context.Context, userID string) ([]Line, error)
	// Clear deletes every cart line belonging to the user. Deleting an
	// already-empty cart is not an error; Clear must be safe to call twice.
	Clear(ctx context.Context, userID string) error
}
