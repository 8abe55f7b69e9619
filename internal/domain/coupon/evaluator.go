package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discount is the outcome of a successful evaluation.
type Discount struct {
	Coupon *Coupon
	Amount decimal.Decimal
}

// Evaluator validates a coupon code against a purchase context and computes
// the discount amount. Evaluation has no side effects: the usage row and
// used-count increment happen at payment confirmation, not here.
type Evaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given Repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, now: time.Now}
}

// Evaluate runs the validation checks in a fixed order (empty code, lookup,
// expiry, minimum purchase, usage limit, already used) and returns the first
// failure. The order determines which message the customer sees when several
// conditions fail at once.
func (e *Evaluator) Evaluate(ctx context.Context, code, userID string, subtotal decimal.Decimal) (*Discount, error) {
	if code == "" {
		return nil, ErrEmptyCode
	}

	c, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if c.ValidUntil != nil && c.ValidUntil.Before(e.now()) {
		return nil, ErrExpired
	}

	if !c.MinPurchase.IsZero() && subtotal.LessThan(c.MinPurchase) {
		return nil, &MinPurchaseError{Min: c.MinPurchase}
	}

	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return nil, ErrUsageLimitReached
	}

	used, err := e.repo.UsageExists(ctx, c.ID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "check coupon usage")
	}
	if used {
		return nil, ErrAlreadyUsed
	}

	return &Discount{Coupon: c, Amount: computeAmount(c, subtotal)}, nil
}

// computeAmount applies the coupon's rule to the subtotal. A percentage
// discount is clamped to MaxDiscount when set; a fixed discount is returned
// as-is even when it exceeds the subtotal (the pricing calculator owns the
// zero floor on the final total).
func computeAmount(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	switch c.DiscountType {
	case DiscountPercentage:
		amount := subtotal.Mul(c.DiscountValue).Div(hundred)
		if !c.MaxDiscount.IsZero() && amount.GreaterThan(c.MaxDiscount) {
			amount = c.MaxDiscount
		}
		return amount.Round(2)
	default:
		return c.DiscountValue.Round(2)
	}
}
