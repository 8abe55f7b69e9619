package order

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twcjewels/storefront-api/internal/domain/cart"
	"github.com/twcjewels/storefront-api/internal/domain/coupon"
)

func testConfig() Config {
	return Config{
		DeliveryChargePerItem: d("80"),
		CancelWindow:          3 * time.Hour,
	}
}

func TestCheckout(t *testing.T) {
	gw := &mockGateway{session: &GatewaySession{
		PaymentSessionID: "sess_123",
		GatewayOrderID:   "cf_1",
	}}

	carts := &mockCartRepo{lines: []cart.Line{
		{UserID: "user-1", ProductID: "ring-1", Quantity: 2},
		{UserID: "user-1", ProductID: "chain-1", Quantity: 1},
	}}
	orders := &mockOrderRepo{}
	svc := NewService(catalogWith(map[string][3]string{
		"ring-1":  {"Gold Ring", "2000", "2500"},
		"chain-1": {"Silver Chain", "1000", ""},
	}), carts, &mockCouponEval{}, orders, gw, testConfig())

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		UserID:          "user-1",
		Customer:        Customer{Name: "Asha", Email: "asha@example.com", Phone: "9999999999"},
		ShippingAddress: "12 MG Road, Bengaluru",
	})
	require.NoError(t, err)

	require.Len(t, orders.created, 1)
	o := orders.created[0]
	assert.True(t, d("5000").Equal(o.Total), "total = %s", o.Total)
	// 2x2500 + 1x1000 display + 160 delivery
	assert.True(t, d("6160").Equal(o.ActualTotal), "actual total = %s", o.ActualTotal)
	assert.True(t, d("160").Equal(o.DeliveryCharge), "delivery charge = %s", o.DeliveryCharge)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Equal(t, DeliveryPending, o.DeliveryStatus)
	require.Len(t, o.Lines, 2)
	assert.True(t, d("2000").Equal(o.Lines[0].Price), "line price snapshot")

	assert.Equal(t, 1, carts.clearCalls, "cart cleared once after order creation")

	require.Len(t, gw.requests, 1)
	assert.Equal(t, o.OrderID, gw.requests[0].OrderID)
	assert.True(t, o.Total.Equal(gw.requests[0].Amount))
	assert.Equal(t, "sess_123", res.Session.PaymentSessionID)
}

func TestCheckout_EmptyCart(t *testing.T) {
	svc := NewService(
		catalogWith(nil),
		&mockCartRepo{},
		&mockCouponEval{},
		&mockOrderRepo{},
		&mockGateway{},
		testConfig(),
	)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: "user-1"})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_UnknownProduct(t *testing.T) {
	carts := &mockCartRepo{lines: []cart.Line{
		{UserID: "user-1", ProductID: "ghost", Quantity: 1},
	}}
	orders := &mockOrderRepo{}
	svc := NewService(catalogWith(nil), carts, &mockCouponEval{}, orders, &mockGateway{}, testConfig())

	_, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: "user-1"})

	var notFound *ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost", notFound.ProductID)
	assert.Empty(t, orders.created, "no order row on validation failure")
	assert.Zero(t, carts.clearCalls, "cart untouched on failure")
}

func TestCheckout_CouponApplied(t *testing.T) {
	eval := &mockCouponEval{discount: &coupon.Discount{
		Coupon: &coupon.Coupon{ID: "c1", Code: "SAVE100"},
		Amount: d("100"),
	}}
	carts := &mockCartRepo{lines: []cart.Line{
		{UserID: "user-1", ProductID: "ring-1", Quantity: 1},
	}}
	orders := &mockOrderRepo{}
	svc := NewService(catalogWith(map[string][3]string{
		"ring-1": {"Gold Ring", "2000", "2500"},
	}), carts, eval, orders, &mockGateway{session: &GatewaySession{}}, testConfig())

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		UserID:     "user-1",
		CouponCode: "SAVE100",
	})
	require.NoError(t, err)

	require.Len(t, orders.created, 1)
	o := orders.created[0]
	assert.True(t, d("1900").Equal(o.Total), "total = %s", o.Total)
	assert.Equal(t, "c1", o.CouponID)
	assert.Equal(t, "SAVE100", o.CouponCode)
	assert.True(t, d("100").Equal(o.CouponDiscount))
	assert.Equal(t, 1, eval.calls)
}

func TestCheckout_CouponRejected(t *testing.T) {
	eval := &mockCouponEval{err: coupon.ErrExpired}
	carts := &mockCartRepo{lines: []cart.Line{
		{UserID: "user-1", ProductID: "ring-1", Quantity: 1},
	}}
	orders := &mockOrderRepo{}
	svc := NewService(catalogWith(map[string][3]string{
		"ring-1": {"Gold Ring", "2000", ""},
	}), carts, eval, orders, &mockGateway{}, testConfig())

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		UserID:     "user-1",
		CouponCode: "OLD",
	})
	require.ErrorIs(t, err, coupon.ErrExpired)
	assert.Empty(t, orders.created, "coupon failure aborts before order creation")
	assert.Zero(t, carts.clearCalls)
}

func TestCheckout_GatewayFailureLeavesOrderPending(t *testing.T) {
	gw := &mockGateway{sessionErr: errors.New("gateway unavailable")}
	carts := &mockCartRepo{lines: []cart.Line{
		{UserID: "user-1", ProductID: "ring-1", Quantity: 1},
	}}
	orders := &mockOrderRepo{}
	svc := NewService(catalogWith(map[string][3]string{
		"ring-1": {"Gold Ring", "2000", ""},
	}), carts, &mockCouponEval{}, orders, gw, testConfig())

	_, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: "user-1"})
	require.Error(t, err)

	// The order row exists in pending state; no money moved.
	require.Len(t, orders.created, 1)
	assert.Equal(t, PaymentPending, orders.created[0].PaymentStatus)
}

func TestBuyNow(t *testing.T) {
	gw := &mockGateway{session: &GatewaySession{PaymentSessionID: "sess_9"}}
	carts := &mockCartRepo{lines: []cart.Line{
		{UserID: "user-1", ProductID: "other", Quantity: 5},
	}}
	orders := &mockOrderRepo{}
	svc := NewService(catalogWith(map[string][3]string{
		"ring-1": {"Gold Ring", "2000", ""},
	}), carts, &mockCouponEval{}, orders, gw, testConfig())

	res, err := svc.BuyNow(context.Background(), BuyNowRequest{
		UserID:    "user-1",
		ProductID: "ring-1",
		Quantity:  2,
	})
	require.NoError(t, err)

	require.Len(t, orders.created, 1)
	o := orders.created[0]
	assert.True(t, d("4000").Equal(o.Total))
	require.Len(t, o.Lines, 1)
	assert.Equal(t, 2, o.Lines[0].Quantity)

	assert.Zero(t, carts.clearCalls, "buy-now must not touch the cart")
	assert.Equal(t, "sess_9", res.Session.PaymentSessionID)
}

func TestBuyNow_InvalidQuantity(t *testing.T) {
	svc := NewService(catalogWith(nil), &mockCartRepo{}, &mockCouponEval{}, &mockOrderRepo{}, &mockGateway{}, testConfig())

	for _, qty := range []int{0, -1} {
		_, err := svc.BuyNow(context.Background(), BuyNowRequest{
			UserID:    "user-1",
			ProductID: "ring-1",
			Quantity:  qty,
		})
		require.ErrorIs(t, err, ErrInvalidQuantity)
	}
}

func TestCancel(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("inside window", func(t *testing.T) {
		orders := &mockOrderRepo{cancelApplied: true}
		svc := NewService(catalogWith(nil), &mockCartRepo{}, &mockCouponEval{}, orders, &mockGateway{}, testConfig())
		svc.now = func() time.Time { return now }

		require.NoError(t, svc.Cancel(context.Background(), "user-1", "TWC-AAA"))
		assert.Equal(t, now.Add(-3*time.Hour), orders.cancelCutoff,
			"window boundary passed to the conditional write")
	})

	t.Run("window elapsed", func(t *testing.T) {
		orders := &mockOrderRepo{
			cancelApplied: false,
			byOrderID: map[string]*Order{
				"TWC-AAA": {
					OrderID:        "TWC-AAA",
					UserID:         "user-1",
					DeliveryStatus: DeliveryPending,
					PaymentStatus:  PaymentPaid,
					CreatedAt:      now.Add(-4 * time.Hour),
				},
			},
		}
		svc := NewService(catalogWith(nil), &mockCartRepo{}, &mockCouponEval{}, orders, &mockGateway{}, testConfig())
		svc.now = func() time.Time { return now }

		err := svc.Cancel(context.Background(), "user-1", "TWC-AAA")
		var winErr *CancellationWindowError
		require.ErrorAs(t, err, &winErr)
		assert.Equal(t, 3*time.Hour, winErr.Window)
	})

	t.Run("already shipped", func(t *testing.T) {
		orders := &mockOrderRepo{
			byOrderID: map[string]*Order{
				"TWC-AAA": {
					OrderID:        "TWC-AAA",
					UserID:         "user-1",
					DeliveryStatus: DeliveryShipped,
					PaymentStatus:  PaymentPaid,
					CreatedAt:      now,
				},
			},
		}
		svc := NewService(catalogWith(nil), &mockCartRepo{}, &mockCouponEval{}, orders, &mockGateway{}, testConfig())
		svc.now = func() time.Time { return now }

		require.ErrorIs(t, svc.Cancel(context.Background(), "user-1", "TWC-AAA"), ErrNotCancellable)
	})

	t.Run("unpaid order", func(t *testing.T) {
		orders := &mockOrderRepo{
			byOrderID: map[string]*Order{
				"TWC-AAA": {
					OrderID:        "TWC-AAA",
					UserID:         "user-1",
					DeliveryStatus: DeliveryPending,
					PaymentStatus:  PaymentPending,
					CreatedAt:      now,
				},
			},
		}
		svc := NewService(catalogWith(nil), &mockCartRepo{}, &mockCouponEval{}, orders, &mockGateway{}, testConfig())
		svc.now = func() time.Time { return now }

		require.ErrorIs(t, svc.Cancel(context.Background(), "user-1", "TWC-AAA"), ErrNotCancellable)
	})

	t.Run("someone else's order", func(t *testing.T) {
		orders := &mockOrderRepo{
			byOrderID: map[string]*Order{
				"TWC-AAA": {OrderID: "TWC-AAA", UserID: "user-2"},
			},
		}
		svc := NewService(catalogWith(nil), &mockCartRepo{}, &mockCouponEval{}, orders, &mockGateway{}, testConfig())

		require.ErrorIs(t, svc.Cancel(context.Background(), "user-1", "TWC-AAA"), ErrNotFound)
	})

	t.Run("unknown order", func(t *testing.T) {
		svc := NewService(catalogWith(nil), &mockCartRepo{}, &mockCouponEval{}, &mockOrderRepo{}, &mockGateway{}, testConfig())

		require.ErrorIs(t, svc.Cancel(context.Background(), "user-1", "TWC-NOPE"), ErrNotFound)
	})
}

func TestRequestReturn(t *testing.T) {
	t.Run("applied", func(t *testing.T) {
		orders := &mockOrderRepo{returnApplied: true}
		svc := NewService(catalogWith(nil), &mockCartRepo{}, &mockCouponEval{}, orders, &mockGateway{}, testConfig())

		require.NoError(t, svc.RequestReturn(context.Background(), "user-1", "TWC-AAA"))
	})

	t.Run("not delivered yet", func(t *testing.T) {
		orders := &mockOrderRepo{
			byOrderID: map[string]*Order{
				"TWC-AAA": {OrderID: "TWC-AAA", UserID: "user-1", DeliveryStatus: DeliveryShipped},
			},
		}
		svc := NewService(catalogWith(nil), &mockCartRepo{}, &mockCouponEval{}, orders, &mockGateway{}, testConfig())

		require.ErrorIs(t, svc.RequestReturn(context.Background(), "user-1", "TWC-AAA"), ErrNotReturnable)
	})

	t.Run("someone else's order looks like not found", func(t *testing.T) {
		orders := &mockOrderRepo{
			byOrderID: map[string]*Order{
				"TWC-AAA": {OrderID: "TWC-AAA", UserID: "user-2", DeliveryStatus: DeliveryDelivered},
			},
		}
		svc := NewService(catalogWith(nil), &mockCartRepo{}, &mockCouponEval{}, orders, &mockGateway{}, testConfig())

		require.ErrorIs(t, svc.RequestReturn(context.Background(), "user-1", "TWC-AAA"), ErrNotFound)
	})
}

func TestNewOrderID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newOrderID()
		require.True(t, strings.HasPrefix(id, "TWC-"), "id %q", id)
		require.Len(t, id, len("TWC-")+12)
		for _, r := range id[4:] {
			assert.True(t, (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
				"unexpected character %q in %q", r, id)
		}
		assert.False(t, seen[id], "duplicate id %q", id)
		seen[id] = true
	}
}
