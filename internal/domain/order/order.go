package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PaymentStatus tracks the money side of an order. Transitions are
// pending→paid and pending→failed only, enforced by conditional updates in
// the repository; refunded is set by back-office tooling.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// DeliveryStatus tracks fulfilment. pending→shipped→delivered is the happy
// path; pending→cancelled only inside the cancellation window; delivered
// orders may move to return_refund.
type DeliveryStatus string

const (
	DeliveryPending      DeliveryStatus = "pending"
	DeliveryShipped      DeliveryStatus = "shipped"
	DeliveryDelivered    DeliveryStatus = "delivered"
	DeliveryCancelled    DeliveryStatus = "cancelled"
	DeliveryReturnRefund DeliveryStatus = "return_refund"
)

// ErrNotFound is returned when no order matches the given gateway-facing id.
var ErrNotFound = errors.New("order not found")

// Order is the durable record created at checkout. Once paid, the financial
// fields are immutable; only delivery status, tracking number and the issue
// flag may change afterwards.
type Order struct {
	// ID is the internal row identifier.
	ID string
	// OrderID is the human-readable, gateway-facing identifier (TWC-...).
	OrderID string
	UserID  string

	// Total is the final payable amount, i.e. what the gateway charges.
	Total decimal.Decimal
	// ActualTotal is the pre-discount reference total kept for display.
	ActualTotal decimal.Decimal
	// DiscountAmount is the informational sum of all discounts.
	DiscountAmount decimal.Decimal

	CouponID       string
	CouponCode     string
	CouponDiscount decimal.Decimal

	// DeliveryCharge is retained for cost reporting; it is always fully
	// offset by an equal delivery discount and never contributes to Total.
	DeliveryCharge decimal.Decimal
	// RTOCharge is the return-to-origin logistics cost, set by back-office
	// tooling when a shipment bounces.
	RTOCharge decimal.Decimal

	DeliveryStatus  DeliveryStatus
	PaymentStatus   PaymentStatus
	TrackingNumber  string
	HasIssue        bool
	ShippingAddress string
	DeliveredAt     *time.Time
	CreatedAt       time.Time

	Lines []Line
}

// Line is an order line with the price snapshotted at purchase time.
type Line struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// Transaction is one row of the append-only payment audit log.
type Transaction struct {
	ID               string
	OrderID          string
	Amount           decimal.Decimal
	PaymentStatus    PaymentStatus
	GatewayPaymentID string
	GatewayOrderID   string
	Payload          []byte
	CreatedAt        time.Time
}

// Repository defines persistence operations for orders. Status transitions
// are conditional writes: they apply only when the row is still in the
// expected source state and report whether they did, so callers never
// check-then-act across concurrent confirmations.
type Repository interface {
	// CreateWithLines persists the order and all its lines atomically. An
	// order must never be visible without its lines.
	CreateWithLines(ctx context.Context, o *Order) error

	// GetByOrderID looks up an order (with lines) by its gateway-facing id.
	// Returns ErrNotFound when no such order exists.
	GetByOrderID(ctx context.Context, orderID string) (*Order, error)

	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]Order, error)

	// MarkPaid transitions payment status pending→paid. The returned bool
	// reports whether this call performed the transition; false means the
	// order was not pending (typically already paid by a concurrent confirm).
	MarkPaid(ctx context.Context, orderID string) (bool, error)

	// MarkFailed transitions payment status pending→failed.
	MarkFailed(ctx context.Context, orderID string) (bool, error)

	// Cancel transitions delivery status pending→cancelled for a paid order
	// owned by userID and created at or after createdAfter. The window check
	// lives inside the conditional write so it cannot race the clock.
	Cancel(ctx context.Context, orderID, userID string, createdAfter time.Time) (bool, error)

	// RequestReturn transitions delivery status delivered→return_refund.
	RequestReturn(ctx context.Context, orderID, userID string) (bool, error)

	// FlagIssue marks a delivered order as having a customer-reported issue.
	FlagIssue(ctx context.Context, orderID, userID string) (bool, error)

	// UpdateDelivery sets the delivery status and tracking number
	// (admin-driven shipped/delivered transitions).
	UpdateDelivery(ctx context.Context, orderID string, status DeliveryStatus, trackingNumber string) error

	// AppendTransaction appends one audit row. Duplicates per order are
	// legal; the orders row is the idempotency guard.
	AppendTransaction(ctx context.Context, tx *Transaction) error
}

// Customer carries the gateway-facing contact details for a checkout.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// SessionRequest is the input to a gateway payment-session creation.
type SessionRequest struct {
	OrderID  string
	Amount   decimal.Decimal
	Customer Customer
}

// GatewaySession is the opaque handle the storefront hands to the external
// checkout UI.
type GatewaySession struct {
	PaymentSessionID string
	PaymentLink      string
	GatewayOrderID   string
}

// Gateway payment states as reported by the remote provider.
const (
	GatewayStateActive = "ACTIVE"
	GatewayStatePaid   = "PAID"
	GatewayStateFailed = "FAILED"
)

// GatewayStatus is the normalized result of a gateway status poll.
type GatewayStatus struct {
	State            string
	Amount           decimal.Decimal
	GatewayOrderID   string
	GatewayPaymentID string
	Raw              []byte
}

// PaymentGateway is the outbound port to the payment provider.
type PaymentGateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*GatewaySession, error)
	OrderStatus(ctx context.Context, orderID string) (*GatewayStatus, error)
}
