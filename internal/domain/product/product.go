package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID   string
	Name string
	// Price is the selling price the customer is charged.
	Price decimal.Decimal
	// ActualPrice is the pre-discount display price. A zero value means no
	// separate display price is set and Price is shown as-is.
	ActualPrice decimal.Decimal
	Category    string
	Image       string
	Active      bool
}

// DisplayPrice returns the pre-discount price, falling back to the selling
// price when no actual price is set.
func (p Product) DisplayPrice() decimal.Decimal {
	if p.ActualPrice.IsZero() {
		return p.Price
	}
	return p.ActualPrice
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
