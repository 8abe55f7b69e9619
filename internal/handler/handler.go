// Package handler exposes the storefront checkout pipeline over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/twcjewels/storefront-api/internal/domain/order"
	"github.com/twcjewels/storefront-api/internal/domain/product"
)

// CheckoutService is the order placement and lifecycle surface the handlers
// call. Satisfied by order.Service.
type CheckoutService interface {
	Checkout(ctx context.Context, req order.CheckoutRequest) (*order.CheckoutResult, error)
	BuyNow(ctx context.Context, req order.BuyNowRequest) (*order.CheckoutResult, error)
	Cancel(ctx context.Context, userID, orderID string) error
	RequestReturn(ctx context.Context, userID, orderID string) error
	ReportIssue(ctx context.Context, userID, orderID string) error
}

// PaymentReconciler is the reconciliation surface. Satisfied by
// order.Reconciler.
type PaymentReconciler interface {
	Confirm(ctx context.Context, orderID string, rec order.TransactionRecord) error
	Fail(ctx context.Context, orderID string, rec order.TransactionRecord) error
	Await(ctx context.Context, orderID string) (*order.Order, error)
}

// Handler wires the HTTP surface to the domain services.
type Handler struct {
	products   product.Repository
	orders     order.Repository
	checkout   CheckoutService
	reconciler PaymentReconciler
}

// New constructs a Handler.
func New(
	products product.Repository,
	orders order.Repository,
	checkout CheckoutService,
	reconciler PaymentReconciler,
) *Handler {
	return &Handler{
		products:   products,
		orders:     orders,
		checkout:   checkout,
		reconciler: reconciler,
	}
}

// Routes returns the API route table.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("POST /api/checkout", h.Checkout)
	mux.HandleFunc("POST /api/buynow", h.BuyNow)
	mux.HandleFunc("GET /api/payments/verify", h.VerifyPayment)
	mux.HandleFunc("POST /api/payments/webhook", h.PaymentWebhook)
	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("POST /api/orders/{orderID}/cancel", h.CancelOrder)
	mux.HandleFunc("POST /api/orders/{orderID}/return", h.ReturnOrder)
	mux.HandleFunc("POST /api/orders/{orderID}/issue", h.ReportIssue)
	mux.HandleFunc("GET /api/admin/stats", h.AdminStats)
	mux.HandleFunc("POST /api/admin/orders/{orderID}/delivery", h.UpdateDelivery)
	return mux
}

// userIDHeader identifies the customer. Identity is explicit per request;
// there is no session state.
const userIDHeader = "X-User-ID"

func userID(r *http.Request) string {
	return r.Header.Get(userIDHeader)
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zctx.From(ctx).Error("Failed to encode response", zap.Error(err))
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, errorResponse{Code: status, Message: message})
}

// orderPayload is the wire shape of an order. Money fields serialize as
// decimal strings.
type orderPayload struct {
	OrderID         string             `json:"orderId"`
	Total           decimal.Decimal    `json:"total"`
	ActualTotal     decimal.Decimal    `json:"actualTotal"`
	DiscountAmount  decimal.Decimal    `json:"discountAmount"`
	CouponCode      string             `json:"couponCode,omitempty"`
	CouponDiscount  decimal.Decimal    `json:"couponDiscount"`
	DeliveryCharge  decimal.Decimal    `json:"deliveryCharge"`
	DeliveryStatus  string             `json:"deliveryStatus"`
	PaymentStatus   string             `json:"paymentStatus"`
	TrackingNumber  string             `json:"trackingNumber,omitempty"`
	HasIssue        bool               `json:"hasIssue,omitempty"`
	ShippingAddress string             `json:"shippingAddress,omitempty"`
	CreatedAt       string             `json:"createdAt"`
	Items           []orderLinePayload `json:"items,omitempty"`
}

type orderLinePayload struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func toOrderPayload(o *order.Order) orderPayload {
	items := make([]orderLinePayload, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = orderLinePayload{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Price}
	}
	return orderPayload{
		OrderID:         o.OrderID,
		Total:           o.Total,
		ActualTotal:     o.ActualTotal,
		DiscountAmount:  o.DiscountAmount,
		CouponCode:      o.CouponCode,
		CouponDiscount:  o.CouponDiscount,
		DeliveryCharge:  o.DeliveryCharge,
		DeliveryStatus:  string(o.DeliveryStatus),
		PaymentStatus:   string(o.PaymentStatus),
		TrackingNumber:  o.TrackingNumber,
		HasIssue:        o.HasIssue,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
		Items:           items,
	}
}
