package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twcjewels/storefront-api/internal/domain/cart"
	"github.com/twcjewels/storefront-api/internal/domain/coupon"
	"github.com/twcjewels/storefront-api/internal/domain/product"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type mockProductRepo struct {
	products map[string]product.Product
}

// catalogWith builds a product repo from id -> {name, price, actualPrice}.
// An empty actualPrice means the product has no separate display price.
func catalogWith(entries map[string][3]string) *mockProductRepo {
	products := make(map[string]product.Product, len(entries))
	for id, e := range entries {
		p := product.Product{
			ID:     id,
			Name:   e[0],
			Price:  d(e[1]),
			Active: true,
		}
		if e[2] != "" {
			p.ActualPrice = d(e[2])
		}
		products[id] = p
	}
	return &mockProductRepo{products: products}
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCartRepo struct {
	lines      []cart.Line
	linesErr   error
	clearErr   error
	clearCalls int
}

func (m *mockCartRepo) LinesForUser(_ context.Context, _ string) ([]cart.Line, error) {
	return m.lines, m.linesErr
}

func (m *mockCartRepo) Clear(_ context.Context, _ string) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.clearCalls++
	return nil
}

type mockCouponEval struct {
	discount *coupon.Discount
	err      error
	calls    int
}

func (m *mockCouponEval) Evaluate(_ context.Context, _, _ string, _ decimal.Decimal) (*coupon.Discount, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.discount, nil
}

type mockCouponRepo struct {
	recorded  []coupon.Usage
	recordErr error
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*coupon.Coupon, error) {
	return nil, coupon.ErrNotFound
}

func (m *mockCouponRepo) UsageExists(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func (m *mockCouponRepo) RecordUsage(_ context.Context, u coupon.Usage) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.recorded = append(m.recorded, u)
	return nil
}

type mockOrderRepo struct {
	created      []*Order
	createErr    error
	byOrderID    map[string]*Order
	getErr       error
	markPaidErr  error
	transactions []*Transaction
	txErr        error

	cancelApplied bool
	cancelErr     error
	cancelCutoff  time.Time

	returnApplied bool
	issueApplied  bool
}

func (m *mockOrderRepo) CreateWithLines(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, o)
	if m.byOrderID == nil {
		m.byOrderID = make(map[string]*Order)
	}
	m.byOrderID[o.OrderID] = o
	return nil
}

func (m *mockOrderRepo) GetByOrderID(_ context.Context, orderID string) (*Order, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.byOrderID[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID string) ([]Order, error) {
	var out []Order
	for _, o := range m.byOrderID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListCreatedBetween(_ context.Context, from, to time.Time) ([]Order, error) {
	var out []Order
	for _, o := range m.byOrderID {
		if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) MarkPaid(_ context.Context, orderID string) (bool, error) {
	if m.markPaidErr != nil {
		return false, m.markPaidErr
	}
	o, ok := m.byOrderID[orderID]
	if !ok || o.PaymentStatus != PaymentPending {
		return false, nil
	}
	o.PaymentStatus = PaymentPaid
	return true, nil
}

func (m *mockOrderRepo) MarkFailed(_ context.Context, orderID string) (bool, error) {
	o, ok := m.byOrderID[orderID]
	if !ok || o.PaymentStatus != PaymentPending {
		return false, nil
	}
	o.PaymentStatus = PaymentFailed
	return true, nil
}

func (m *mockOrderRepo) Cancel(_ context.Context, _, _ string, createdAfter time.Time) (bool, error) {
	m.cancelCutoff = createdAfter
	return m.cancelApplied, m.cancelErr
}

func (m *mockOrderRepo) RequestReturn(_ context.Context, _, _ string) (bool, error) {
	return m.returnApplied, nil
}

func (m *mockOrderRepo) FlagIssue(_ context.Context, _, _ string) (bool, error) {
	return m.issueApplied, nil
}

func (m *mockOrderRepo) UpdateDelivery(_ context.Context, orderID string, status DeliveryStatus, trackingNumber string) error {
	if o, ok := m.byOrderID[orderID]; ok {
		o.DeliveryStatus = status
		o.TrackingNumber = trackingNumber
	}
	return nil
}

func (m *mockOrderRepo) AppendTransaction(_ context.Context, tx *Transaction) error {
	if m.txErr != nil {
		return m.txErr
	}
	m.transactions = append(m.transactions, tx)
	return nil
}

type mockGateway struct {
	session    *GatewaySession
	sessionErr error
	statuses   []*GatewayStatus
	statusErr  error
	polls      int
	requests   []SessionRequest
}

func (m *mockGateway) CreateSession(_ context.Context, req SessionRequest) (*GatewaySession, error) {
	m.requests = append(m.requests, req)
	if m.sessionErr != nil {
		return nil, m.sessionErr
	}
	return m.session, nil
}

func (m *mockGateway) OrderStatus(_ context.Context, _ string) (*GatewayStatus, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	idx := m.polls
	if idx >= len(m.statuses) {
		idx = len(m.statuses) - 1
	}
	m.polls++
	return m.statuses[idx], nil
}
