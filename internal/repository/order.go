package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/twcjewels/storefront-api/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (order_id, user_id, total, actual_total, discount_amount,
		coupon_id, coupon_code, coupon_discount, delivery_charge,
		delivery_status, payment_status, shipping_address, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	insertOrderLineSQL = `INSERT INTO order_lines (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)`

	selectOrderSQL = `SELECT id, order_id, user_id, total, actual_total, discount_amount,
		COALESCE(coupon_id::text, ''), coupon_code, coupon_discount, delivery_charge, rto_charge,
		delivery_status, payment_status, tracking_number, has_issue,
		shipping_address, delivered_at, created_at FROM orders`

	getOrderSQL = selectOrderSQL + ` WHERE order_id = $1`

	listOrdersByUserSQL = selectOrderSQL + ` WHERE user_id = $1 ORDER BY created_at DESC`

	listOrdersBetweenSQL = selectOrderSQL + ` WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at`

	getOrderLinesSQL = `SELECT product_id, quantity, price FROM order_lines
		WHERE order_id = $1 ORDER BY id`

	// Conditional transitions. RowsAffected reports whether the row was in
	// the expected source state; concurrent confirmations race on these
	// UPDATEs, never on application-level reads.
	markPaidSQL = `UPDATE orders SET payment_status = 'paid'
		WHERE order_id = $1 AND payment_status = 'pending'`

	markFailedSQL = `UPDATE orders SET payment_status = 'failed'
		WHERE order_id = $1 AND payment_status = 'pending'`

	cancelOrderSQL = `UPDATE orders SET delivery_status = 'cancelled'
		WHERE order_id = $1 AND user_id = $2
		AND delivery_status = 'pending' AND payment_status = 'paid'
		AND created_at >= $3`

	requestReturnSQL = `UPDATE orders SET delivery_status = 'return_refund'
		WHERE order_id = $1 AND user_id = $2 AND delivery_status = 'delivered'`

	flagIssueSQL = `UPDATE orders SET has_issue = TRUE
		WHERE order_id = $1 AND user_id = $2 AND delivery_status = 'delivered'`

	updateDeliverySQL = `UPDATE orders SET delivery_status = $2, tracking_number = $3,
		delivered_at = CASE WHEN $2 = 'delivered' THEN now() ELSE delivered_at END
		WHERE order_id = $1`

	insertTransactionSQL = `INSERT INTO payment_transactions
		(id, order_id, amount, payment_status, gateway_payment_id, gateway_order_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateWithLines persists the order and its lines in one transaction.
func (r *OrderRepository) CreateWithLines(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, insertOrderSQL,
		o.OrderID, o.UserID, o.Total, o.ActualTotal, o.DiscountAmount,
		o.CouponID, o.CouponCode, o.CouponDiscount, o.DeliveryCharge,
		o.DeliveryStatus, o.PaymentStatus, o.ShippingAddress, o.CreatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.OrderID, err)
	}

	for _, line := range o.Lines {
		_, err := tx.Exec(ctx, insertOrderLineSQL,
			o.OrderID, line.ProductID, line.Quantity, line.Price,
		)
		if err != nil {
			return fmt.Errorf("creating order line for %q: %w", o.OrderID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.OrderID, err)
	}
	return nil
}

// GetByOrderID returns the order with its lines, or order.ErrNotFound.
func (r *OrderRepository) GetByOrderID(ctx context.Context, orderID string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}

	lineRows, err := r.pool.Query(ctx, getOrderLinesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting order lines for %q: %w", orderID, err)
	}
	o.Lines, err = pgx.CollectRows(lineRows, scanOrderLine)
	if err != nil {
		return nil, fmt.Errorf("getting order lines for %q: %w", orderID, err)
	}

	return &o, nil
}

// ListByUser returns the user's orders, most recent first, without lines.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListCreatedBetween returns orders created in [from, to), without lines.
func (r *OrderRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersBetweenSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// MarkPaid transitions payment status pending→paid.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID string) (bool, error) {
	return r.conditional(ctx, markPaidSQL, "marking order paid", orderID)
}

// MarkFailed transitions payment status pending→failed.
func (r *OrderRepository) MarkFailed(ctx context.Context, orderID string) (bool, error) {
	return r.conditional(ctx, markFailedSQL, "marking order failed", orderID)
}

// Cancel transitions delivery status pending→cancelled for the user's paid
// order created at or after createdAfter.
func (r *OrderRepository) Cancel(ctx context.Context, orderID, userID string, createdAfter time.Time) (bool, error) {
	return r.conditional(ctx, cancelOrderSQL, "cancelling order", orderID, userID, createdAfter)
}

// RequestReturn transitions delivery status delivered→return_refund.
func (r *OrderRepository) RequestReturn(ctx context.Context, orderID, userID string) (bool, error) {
	return r.conditional(ctx, requestReturnSQL, "requesting return", orderID, userID)
}

// FlagIssue marks a delivered order as having a customer-reported issue.
func (r *OrderRepository) FlagIssue(ctx context.Context, orderID, userID string) (bool, error) {
	return r.conditional(ctx, flagIssueSQL, "flagging issue", orderID, userID)
}

// UpdateDelivery sets delivery status and tracking number, stamping
// delivered_at on the transition to delivered.
func (r *OrderRepository) UpdateDelivery(ctx context.Context, orderID string, status order.DeliveryStatus, trackingNumber string) error {
	tag, err := r.pool.Exec(ctx, updateDeliverySQL, orderID, string(status), trackingNumber)
	if err != nil {
		return fmt.Errorf("updating delivery for %q: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// AppendTransaction appends one payment audit row.
func (r *OrderRepository) AppendTransaction(ctx context.Context, t *order.Transaction) error {
	_, err := r.pool.Exec(ctx, insertTransactionSQL,
		t.ID, t.OrderID, t.Amount, t.PaymentStatus,
		t.GatewayPaymentID, t.GatewayOrderID, t.Payload,
	)
	if err != nil {
		return fmt.Errorf("recording transaction for %q: %w", t.OrderID, err)
	}
	return nil
}

func (r *OrderRepository) conditional(ctx context.Context, sql, op string, args ...any) (bool, error) {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o              order.Order
		deliveryStatus string
		paymentStatus  string
	)
	err := row.Scan(
		&o.ID, &o.OrderID, &o.UserID, &o.Total, &o.ActualTotal, &o.DiscountAmount,
		&o.CouponID, &o.CouponCode, &o.CouponDiscount, &o.DeliveryCharge, &o.RTOCharge,
		&deliveryStatus, &paymentStatus, &o.TrackingNumber, &o.HasIssue,
		&o.ShippingAddress, &o.DeliveredAt, &o.CreatedAt,
	)
	o.DeliveryStatus = order.DeliveryStatus(deliveryStatus)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	return o, err
}

func scanOrderLine(row pgx.CollectableRow) (order.Line, error) {
	var l order.Line
	err := row.Scan(&l.ProductID, &l.Quantity, &l.Price)
	return l, err
}
