package order

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/twcjewels/storefront-api/internal/domain/cart"
	"github.com/twcjewels/storefront-api/internal/domain/coupon"
	"github.com/twcjewels/storefront-api/internal/domain/pricing"
	"github.com/twcjewels/storefront-api/internal/domain/product"
)

// Sentinel errors for checkout validation.
var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrNotCancellable  = errors.New("order can no longer be cancelled")
	ErrNotReturnable   = errors.New("order is not eligible for return")
)

// ProductNotFoundError indicates a requested product does not exist or is
// no longer available for sale.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// CancellationWindowError indicates the fixed post-purchase cancellation
// window has elapsed.
type CancellationWindowError struct {
	Window time.Duration
}

func (e *CancellationWindowError) Error() string {
	return fmt.Sprintf("orders can only be cancelled within %s of placement", e.Window)
}

// CouponEvaluator validates a coupon code against a purchase context.
// Satisfied by coupon.Evaluator.
type CouponEvaluator interface {
	Evaluate(ctx context.Context, code, userID string, subtotal decimal.Decimal) (*coupon.Discount, error)
}

// Config holds the business policy knobs for checkout.
type Config struct {
	// DeliveryChargePerItem is the flat per-line delivery charge. It is
	// always fully waived but recorded for cost reporting.
	DeliveryChargePerItem decimal.Decimal
	// CancelWindow is how long after placement a paid, not-yet-shipped
	// order may be cancelled by the customer.
	CancelWindow time.Duration
}

// CheckoutRequest places an order for the user's whole cart.
type CheckoutRequest struct {
	UserID          string
	Customer        Customer
	ShippingAddress string
	CouponCode      string
}

// BuyNowRequest places an order for a single product without touching the
// user's cart.
type BuyNowRequest struct {
	UserID          string
	ProductID       string
	Quantity        int
	Customer        Customer
	ShippingAddress string
	CouponCode      string
}

// CheckoutResult is a successfully placed order plus the gateway session the
// client hands to the external payment UI.
type CheckoutResult struct {
	Order   *Order
	Session *GatewaySession
}

// Service is the checkout orchestrator: it validates the purchase, prices
// it, persists a pending order and opens a payment session. Its synchronous
// responsibility ends when the session is returned; payment outcomes arrive
// later through the Reconciler.
type Service struct {
	products product.Repository
	carts    cart.Repository
	coupons  CouponEvaluator
	orders   Repository
	gateway  PaymentGateway
	cfg      Config
	now      func() time.Time
}

// NewService creates the checkout Service with its collaborators.
func NewService(
	products product.Repository,
	carts cart.Repository,
	coupons CouponEvaluator,
	orders Repository,
	gateway PaymentGateway,
	cfg Config,
) *Service {
	return &Service{
		products: products,
		carts:    carts,
		coupons:  coupons,
		orders:   orders,
		gateway:  gateway,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Checkout places an order for everything in the user's cart and clears the
// consumed lines. The coupon is re-evaluated here even if the UI already
// validated it: state may have changed since (expiry, another redemption).
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	lines, err := s.carts.LinesForUser(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]Line, len(lines))
	for i, l := range lines {
		items[i] = Line{ProductID: l.ProductID, Quantity: l.Quantity}
	}

	result, err := s.place(ctx, req.UserID, items, req.CouponCode, req.ShippingAddress, req.Customer)
	if err != nil {
		return nil, err
	}

	// The consumed lines go away now; the reconciler clears again on
	// confirmation in case anything was added in between.
	if err := s.carts.Clear(ctx, req.UserID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}

	return s.openSession(ctx, result, req.Customer)
}

// BuyNow places a single-item order. The cart is never read or cleared on
// this path.
func (s *Service) BuyNow(ctx context.Context, req BuyNowRequest) (*CheckoutResult, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	items := []Line{{ProductID: req.ProductID, Quantity: req.Quantity}}

	result, err := s.place(ctx, req.UserID, items, req.CouponCode, req.ShippingAddress, req.Customer)
	if err != nil {
		return nil, err
	}

	return s.openSession(ctx, result, req.Customer)
}

// place runs the shared steps: coupon re-validation, pricing, order id
// generation and the atomic order+lines write. The order is created in
// pending/pending state; no gateway call happens here, so every failure in
// place aborts before anything irreversible.
func (s *Service) place(ctx context.Context, userID string, items []Line, couponCode, shippingAddress string, _ Customer) (*Order, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	priceLines := make([]pricing.Line, len(items))
	for i, item := range items {
		p, ok := productMap[item.ProductID]
		if !ok || !p.Active {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		priceLines[i] = pricing.Line{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			UnitPrice:       p.Price,
			UnitActualPrice: p.ActualPrice,
		}
		// Snapshot the selling price; it must not be re-read after creation.
		items[i].Price = p.Price
	}

	subtotal := decimal.Zero
	for _, l := range priceLines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	couponDiscount := decimal.Zero
	var applied *coupon.Coupon
	if couponCode != "" {
		discount, err := s.coupons.Evaluate(ctx, couponCode, userID, subtotal)
		if err != nil {
			return nil, err
		}
		couponDiscount = discount.Amount
		applied = discount.Coupon
	}

	quote := pricing.Calculate(priceLines, couponDiscount, s.cfg.DeliveryChargePerItem)

	o := &Order{
		OrderID:         newOrderID(),
		UserID:          userID,
		Total:           quote.FinalTotal,
		ActualTotal:     quote.DisplayTotal(),
		DiscountAmount:  quote.TotalDiscount(couponDiscount),
		CouponDiscount:  couponDiscount,
		DeliveryCharge:  quote.DeliveryCharge,
		DeliveryStatus:  DeliveryPending,
		PaymentStatus:   PaymentPending,
		ShippingAddress: shippingAddress,
		CreatedAt:       s.now(),
		Lines:           items,
	}
	if applied != nil {
		o.CouponID = applied.ID
		o.CouponCode = applied.Code
	}

	if err := s.orders.CreateWithLines(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	return o, nil
}

// openSession asks the gateway for a payment session. A failure here leaves
// the order pending and retryable; the caller sees a gateway error, not a
// checkout validation error.
func (s *Service) openSession(ctx context.Context, o *Order, customer Customer) (*CheckoutResult, error) {
	session, err := s.gateway.CreateSession(ctx, SessionRequest{
		OrderID:  o.OrderID,
		Amount:   o.Total,
		Customer: customer,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create payment session for order %s", o.OrderID)
	}

	return &CheckoutResult{Order: o, Session: session}, nil
}

// Cancel cancels a paid, not-yet-shipped order inside the cancellation
// window. The repository's conditional write owns the window check; this
// method only classifies why a write did not apply.
func (s *Service) Cancel(ctx context.Context, userID, orderID string) error {
	cutoff := s.now().Add(-s.cfg.CancelWindow)

	applied, err := s.orders.Cancel(ctx, orderID, userID, cutoff)
	if err != nil {
		return errors.Wrap(err, "cancel order")
	}
	if applied {
		return nil
	}

	o, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.UserID != userID {
		return ErrNotFound
	}
	if o.DeliveryStatus != DeliveryPending || o.PaymentStatus != PaymentPaid {
		return ErrNotCancellable
	}
	return &CancellationWindowError{Window: s.cfg.CancelWindow}
}

// RequestReturn moves a delivered order into the return/refund pipeline.
func (s *Service) RequestReturn(ctx context.Context, userID, orderID string) error {
	applied, err := s.orders.RequestReturn(ctx, orderID, userID)
	if err != nil {
		return errors.Wrap(err, "request return")
	}
	if !applied {
		return s.classifyRejection(ctx, userID, orderID)
	}
	return nil
}

// ReportIssue flags a delivered order for back-office attention.
func (s *Service) ReportIssue(ctx context.Context, userID, orderID string) error {
	applied, err := s.orders.FlagIssue(ctx, orderID, userID)
	if err != nil {
		return errors.Wrap(err, "report issue")
	}
	if !applied {
		return s.classifyRejection(ctx, userID, orderID)
	}
	return nil
}

// classifyRejection explains why a conditional delivered-order write did not
// apply: the order is missing or foreign (not found) or in the wrong state.
func (s *Service) classifyRejection(ctx context.Context, userID, orderID string) error {
	o, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.UserID != userID {
		return ErrNotFound
	}
	return ErrNotReturnable
}

const (
	orderIDPrefix  = "TWC-"
	orderIDCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	orderIDLength  = 12
)

// newOrderID generates a gateway-facing order identifier such as
// TWC-9K2F7Q1XMB4Z. Generation is collision-resistant but not a uniqueness
// guarantee; the unique index on orders.order_id is.
func newOrderID() string {
	buf := make([]byte, orderIDLength)
	max := big.NewInt(int64(len(orderIDCharset)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// nothing sensible to do but stop.
			panic(err)
		}
		buf[i] = orderIDCharset[n.Int64()]
	}
	return orderIDPrefix + string(buf)
}
