package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the subtotal, optionally
	// capped by MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a flat amount. It is intentionally not capped at
	// the subtotal; the pricing calculator floors the final total at zero.
	DiscountFixed DiscountType = "fixed"
)

// Sentinel errors, ordered the way Evaluate checks them. The order is part
// of the contract: the first failing check determines the message shown to
// the customer.
var (
	ErrEmptyCode         = errors.New("coupon code required")
	ErrNotFound          = errors.New("invalid coupon code")
	ErrExpired           = errors.New("coupon has expired")
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	ErrAlreadyUsed       = errors.New("coupon already used")
)

// MinPurchaseError reports a subtotal below the coupon's minimum. The
// configured minimum is part of the message shown to the customer.
type MinPurchaseError struct {
	Min decimal.Decimal
}

func (e *MinPurchaseError) Error() string {
	return fmt.Sprintf("minimum purchase of ₹%s required", e.Min)
}

// Coupon is an admin-managed discount rule.
type Coupon struct {
	ID            string
	Code          string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	// MinPurchase gates redemption on the order subtotal. Zero means no minimum.
	MinPurchase decimal.Decimal
	// MaxDiscount caps a percentage discount. Zero means no cap.
	MaxDiscount decimal.Decimal
	// UsageLimit caps total redemptions across all users. Zero means unlimited.
	UsageLimit int
	UsedCount  int
	ValidUntil *time.Time
	Active     bool
}

// Usage records one redemption. At most one row may ever exist per
// (coupon, user); the repository enforces that with a unique index.
type Usage struct {
	CouponID       string
	UserID         string
	OrderID        string
	DiscountAmount decimal.Decimal
}

// Repository provides coupon lookup and redemption bookkeeping.
type Repository interface {
	// FindByCode looks up an active coupon, matching codes case-insensitively.
	// Returns ErrNotFound when no active coupon matches.
	FindByCode(ctx context.Context, code string) (*Coupon, error)

	// UsageExists reports whether the user has already redeemed the coupon.
	// This backs the evaluator's fast-path check only; RecordUsage is the
	// authoritative guard.
	UsageExists(ctx context.Context, couponID, userID string) (bool, error)

	// RecordUsage inserts the usage row and increments the coupon's used
	// count in one transaction. Returns ErrAlreadyUsed when the (coupon,
	// user) pair has already been recorded.
	RecordUsage(ctx context.Context, usage Usage) error
}
