package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/twcjewels/storefront-api/internal/domain/cart"
	"github.com/twcjewels/storefront-api/internal/domain/coupon"
)

// ErrVerifyTimeout is returned by Await when the gateway still reports the
// payment as in-flight after the configured number of polls.
var ErrVerifyTimeout = errors.New("payment verification timed out")

// TransactionRecord is the evidence of a payment outcome, as reported by a
// gateway poll or a webhook delivery.
type TransactionRecord struct {
	Amount           decimal.Decimal
	GatewayOrderID   string
	GatewayPaymentID string
	Payload          []byte
}

// PollConfig bounds the synchronous verification loop.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// Reconciler applies payment outcomes to orders. Both notification paths
// (client-initiated verify and gateway webhook) converge here, so Confirm
// and Fail must be idempotent: the same outcome may arrive twice, in either
// order, and must settle the order exactly once.
type Reconciler struct {
	orders  Repository
	carts   cart.Repository
	coupons coupon.Repository
	gateway PaymentGateway
	poll    PollConfig
}

// NewReconciler creates a Reconciler.
func NewReconciler(
	orders Repository,
	carts cart.Repository,
	coupons coupon.Repository,
	gateway PaymentGateway,
	poll PollConfig,
) *Reconciler {
	return &Reconciler{
		orders:  orders,
		carts:   carts,
		coupons: coupons,
		gateway: gateway,
		poll:    poll,
	}
}

// Confirm marks the order paid and performs the success side effects: audit
// row, cart clear, coupon redemption. The pending→paid conditional write is
// the idempotency gate; a second Confirm for the same order short-circuits
// at the already-paid check (or sees applied=false) and returns nil.
//
// Side effects are at most once: a failure after the transition is reported
// to the caller, but the retry stops at the already-paid guard and does not
// re-run the remaining effects. The order's paid status is the source of
// truth; the audit row, cart clear and coupon redemption are best effort
// behind it.
func (r *Reconciler) Confirm(ctx context.Context, orderID string, rec TransactionRecord) error {
	lg := zctx.From(ctx).With(zap.String("order_id", orderID))

	o, err := r.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return errors.Wrap(err, "load order")
	}
	if o.PaymentStatus == PaymentPaid {
		lg.Debug("Payment already confirmed, skipping")
		return nil
	}

	applied, err := r.orders.MarkPaid(ctx, orderID)
	if err != nil {
		return errors.Wrap(err, "mark paid")
	}
	if !applied {
		// Lost the race to a concurrent confirmation; the winner owns the
		// side effects.
		lg.Debug("Concurrent confirmation won, skipping")
		return nil
	}

	if err := r.orders.AppendTransaction(ctx, &Transaction{
		ID:               uuid.NewString(),
		OrderID:          orderID,
		Amount:           rec.Amount,
		PaymentStatus:    PaymentPaid,
		GatewayPaymentID: rec.GatewayPaymentID,
		GatewayOrderID:   rec.GatewayOrderID,
		Payload:          rec.Payload,
	}); err != nil {
		return errors.Wrap(err, "record transaction")
	}

	if err := r.carts.Clear(ctx, o.UserID); err != nil {
		return errors.Wrap(err, "clear cart")
	}

	if o.CouponID != "" {
		err := r.coupons.RecordUsage(ctx, coupon.Usage{
			CouponID:       o.CouponID,
			UserID:         o.UserID,
			OrderID:        orderID,
			DiscountAmount: o.CouponDiscount,
		})
		switch {
		case errors.Is(err, coupon.ErrAlreadyUsed):
			// Another of this user's orders already redeemed the coupon
			// between checkout and confirmation. The payment stands; only
			// the redemption is skipped.
			lg.Warn("Coupon already redeemed, usage not recorded",
				zap.String("coupon_id", o.CouponID))
		case err != nil:
			return errors.Wrap(err, "record coupon usage")
		}
	}

	lg.Info("Payment confirmed",
		zap.String("gateway_payment_id", rec.GatewayPaymentID))
	return nil
}

// Fail marks the order's payment failed. Coupon and cart are untouched: a
// failed payment never consumes a redemption, and the customer may retry
// with the same cart.
func (r *Reconciler) Fail(ctx context.Context, orderID string, rec TransactionRecord) error {
	applied, err := r.orders.MarkFailed(ctx, orderID)
	if err != nil {
		return errors.Wrap(err, "mark failed")
	}
	if !applied {
		zctx.From(ctx).Debug("Order not pending, failure not applied",
			zap.String("order_id", orderID))
		return nil
	}

	if err := r.orders.AppendTransaction(ctx, &Transaction{
		ID:               uuid.NewString(),
		OrderID:          orderID,
		Amount:           rec.Amount,
		PaymentStatus:    PaymentFailed,
		GatewayPaymentID: rec.GatewayPaymentID,
		GatewayOrderID:   rec.GatewayOrderID,
		Payload:          rec.Payload,
	}); err != nil {
		return errors.Wrap(err, "record transaction")
	}

	zctx.From(ctx).Info("Payment failed", zap.String("order_id", orderID))
	return nil
}

// Await polls the gateway until the payment settles or the poll budget runs
// out. An order still ACTIVE after MaxAttempts yields ErrVerifyTimeout; the
// webhook path settles it later.
func (r *Reconciler) Await(ctx context.Context, orderID string) (*Order, error) {
	for attempt := 0; attempt < r.poll.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.poll.Interval):
			}
		}

		status, err := r.gateway.OrderStatus(ctx, orderID)
		if err != nil {
			return nil, errors.Wrap(err, "poll gateway")
		}

		rec := TransactionRecord{
			Amount:           status.Amount,
			GatewayOrderID:   status.GatewayOrderID,
			GatewayPaymentID: status.GatewayPaymentID,
			Payload:          status.Raw,
		}

		switch status.State {
		case GatewayStateActive:
			continue
		case GatewayStatePaid:
			if err := r.Confirm(ctx, orderID, rec); err != nil {
				return nil, err
			}
			return r.orders.GetByOrderID(ctx, orderID)
		default:
			if err := r.Fail(ctx, orderID, rec); err != nil {
				return nil, err
			}
			return r.orders.GetByOrderID(ctx, orderID)
		}
	}

	return nil, ErrVerifyTimeout
}
