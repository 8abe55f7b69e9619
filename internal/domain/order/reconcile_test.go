package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twcjewels/storefront-api/internal/domain/coupon"
)

func pendingOrder(couponID string) *Order {
	return &Order{
		ID:             "row-1",
		OrderID:        "TWC-AAA111BBB222",
		UserID:         "user-1",
		Total:          d("1900"),
		CouponID:       couponID,
		CouponCode:     "SAVE100",
		CouponDiscount: d("100"),
		DeliveryStatus: DeliveryPending,
		PaymentStatus:  PaymentPending,
	}
}

func paidRecord() TransactionRecord {
	return TransactionRecord{
		Amount:           d("1900"),
		GatewayOrderID:   "cf_order_1",
		GatewayPaymentID: "cf_payment_1",
		Payload:          []byte(`{"order_status":"PAID"}`),
	}
}

func newTestReconciler(orders *mockOrderRepo, carts *mockCartRepo, coupons *mockCouponRepo, gw *mockGateway) *Reconciler {
	return NewReconciler(orders, carts, coupons, gw, PollConfig{
		Interval:    time.Millisecond,
		MaxAttempts: 3,
	})
}

func TestConfirm(t *testing.T) {
	o := pendingOrder("c1")
	orders := &mockOrderRepo{byOrderID: map[string]*Order{o.OrderID: o}}
	carts := &mockCartRepo{}
	coupons := &mockCouponRepo{}
	r := newTestReconciler(orders, carts, coupons, &mockGateway{})

	require.NoError(t, r.Confirm(context.Background(), o.OrderID, paidRecord()))

	assert.Equal(t, PaymentPaid, o.PaymentStatus)
	require.Len(t, orders.transactions, 1)
	tx := orders.transactions[0]
	assert.Equal(t, o.OrderID, tx.OrderID)
	assert.Equal(t, "cf_payment_1", tx.GatewayPaymentID)
	assert.Equal(t, PaymentPaid, tx.PaymentStatus)
	assert.NotEmpty(t, tx.ID)

	assert.Equal(t, 1, carts.clearCalls)
	require.Len(t, coupons.recorded, 1)
	usage := coupons.recorded[0]
	assert.Equal(t, "c1", usage.CouponID)
	assert.Equal(t, "user-1", usage.UserID)
	assert.Equal(t, o.OrderID, usage.OrderID)
	assert.True(t, d("100").Equal(usage.DiscountAmount))
}

func TestConfirm_Idempotent(t *testing.T) {
	o := pendingOrder("c1")
	orders := &mockOrderRepo{byOrderID: map[string]*Order{o.OrderID: o}}
	carts := &mockCartRepo{}
	coupons := &mockCouponRepo{}
	r := newTestReconciler(orders, carts, coupons, &mockGateway{})

	// Verify path and webhook path both confirm; the second call must be a
	// no-op end to end.
	require.NoError(t, r.Confirm(context.Background(), o.OrderID, paidRecord()))
	require.NoError(t, r.Confirm(context.Background(), o.OrderID, paidRecord()))

	assert.Len(t, orders.transactions, 1, "exactly one audit row")
	assert.Equal(t, 1, carts.clearCalls, "cart cleared once")
	assert.Len(t, coupons.recorded, 1, "coupon redeemed once")
}

func TestConfirm_NoCoupon(t *testing.T) {
	o := pendingOrder("")
	orders := &mockOrderRepo{byOrderID: map[string]*Order{o.OrderID: o}}
	coupons := &mockCouponRepo{}
	r := newTestReconciler(orders, &mockCartRepo{}, coupons, &mockGateway{})

	require.NoError(t, r.Confirm(context.Background(), o.OrderID, paidRecord()))
	assert.Empty(t, coupons.recorded)
}

func TestConfirm_DuplicateUsageSwallowed(t *testing.T) {
	o := pendingOrder("c1")
	orders := &mockOrderRepo{byOrderID: map[string]*Order{o.OrderID: o}}
	coupons := &mockCouponRepo{recordErr: coupon.ErrAlreadyUsed}
	r := newTestReconciler(orders, &mockCartRepo{}, coupons, &mockGateway{})

	// The unique index rejecting the second redemption must not fail the
	// payment confirmation.
	require.NoError(t, r.Confirm(context.Background(), o.OrderID, paidRecord()))
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
}

func TestConfirm_SideEffectFailureReturnsError(t *testing.T) {
	o := pendingOrder("c1")
	orders := &mockOrderRepo{
		byOrderID: map[string]*Order{o.OrderID: o},
		txErr:     errors.New("db down"),
	}
	carts := &mockCartRepo{}
	coupons := &mockCouponRepo{}
	r := newTestReconciler(orders, carts, coupons, &mockGateway{})

	// The error propagates so the gateway retries the webhook.
	require.Error(t, r.Confirm(context.Background(), o.OrderID, paidRecord()))
	assert.Equal(t, PaymentPaid, o.PaymentStatus, "status transition stands")

	// The retry stops at the already-paid guard: it succeeds without
	// re-running side effects, so effects lost to the first failure are
	// never recovered. The paid status is the source of truth.
	orders.txErr = nil
	require.NoError(t, r.Confirm(context.Background(), o.OrderID, paidRecord()))
	assert.Empty(t, orders.transactions, "audit row not retried")
	assert.Zero(t, carts.clearCalls, "cart clear not retried")
	assert.Empty(t, coupons.recorded, "coupon redemption not retried")
}

func TestFail(t *testing.T) {
	o := pendingOrder("c1")
	orders := &mockOrderRepo{byOrderID: map[string]*Order{o.OrderID: o}}
	carts := &mockCartRepo{}
	coupons := &mockCouponRepo{}
	r := newTestReconciler(orders, carts, coupons, &mockGateway{})

	require.NoError(t, r.Fail(context.Background(), o.OrderID, paidRecord()))

	assert.Equal(t, PaymentFailed, o.PaymentStatus)
	assert.Len(t, orders.transactions, 1)
	assert.Equal(t, PaymentFailed, orders.transactions[0].PaymentStatus)

	// A failed payment consumes nothing.
	assert.Zero(t, carts.clearCalls)
	assert.Empty(t, coupons.recorded)
}

func TestFail_AfterConfirmIsNoop(t *testing.T) {
	o := pendingOrder("")
	orders := &mockOrderRepo{byOrderID: map[string]*Order{o.OrderID: o}}
	r := newTestReconciler(orders, &mockCartRepo{}, &mockCouponRepo{}, &mockGateway{})

	require.NoError(t, r.Confirm(context.Background(), o.OrderID, paidRecord()))
	require.NoError(t, r.Fail(context.Background(), o.OrderID, paidRecord()))

	assert.Equal(t, PaymentPaid, o.PaymentStatus, "a settled order never flips to failed")
	assert.Len(t, orders.transactions, 1)
}

func TestAwait_PaidAfterRetries(t *testing.T) {
	o := pendingOrder("")
	orders := &mockOrderRepo{byOrderID: map[string]*Order{o.OrderID: o}}
	gw := &mockGateway{statuses: []*GatewayStatus{
		{State: GatewayStateActive},
		{State: GatewayStateActive},
		{State: GatewayStatePaid, Amount: d("1900"), GatewayPaymentID: "cf_payment_1"},
	}}
	r := newTestReconciler(orders, &mockCartRepo{}, &mockCouponRepo{}, gw)

	got, err := r.Await(context.Background(), o.OrderID)
	require.NoError(t, err)

	assert.Equal(t, 3, gw.polls)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
	require.Len(t, orders.transactions, 1)
	assert.Equal(t, "cf_payment_1", orders.transactions[0].GatewayPaymentID)
}

func TestAwait_Timeout(t *testing.T) {
	o := pendingOrder("")
	orders := &mockOrderRepo{byOrderID: map[string]*Order{o.OrderID: o}}
	gw := &mockGateway{statuses: []*GatewayStatus{{State: GatewayStateActive}}}
	r := newTestReconciler(orders, &mockCartRepo{}, &mockCouponRepo{}, gw)

	_, err := r.Await(context.Background(), o.OrderID)
	require.ErrorIs(t, err, ErrVerifyTimeout)

	assert.Equal(t, 3, gw.polls, "polls bounded by MaxAttempts")
	assert.Equal(t, PaymentPending, o.PaymentStatus, "order left pending for the webhook")
}

func TestAwait_Failed(t *testing.T) {
	o := pendingOrder("")
	orders := &mockOrderRepo{byOrderID: map[string]*Order{o.OrderID: o}}
	gw := &mockGateway{statuses: []*GatewayStatus{
		{State: GatewayStateFailed, GatewayPaymentID: "cf_payment_2"},
	}}
	r := newTestReconciler(orders, &mockCartRepo{}, &mockCouponRepo{}, gw)

	got, err := r.Await(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, PaymentFailed, got.PaymentStatus)
}

func TestAwait_ContextCancelled(t *testing.T) {
	o := pendingOrder("")
	orders := &mockOrderRepo{byOrderID: map[string]*Order{o.OrderID: o}}
	gw := &mockGateway{statuses: []*GatewayStatus{{State: GatewayStateActive}}}
	r := NewReconciler(orders, &mockCartRepo{}, &mockCouponRepo{}, gw, PollConfig{
		Interval:    time.Minute,
		MaxAttempts: 5,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Await(ctx, o.OrderID)
	require.ErrorIs(t, err, context.Canceled)
}
