package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/twcjewels/storefront-api/internal/domain/coupon"
	"github.com/twcjewels/storefront-api/internal/domain/order"
	"github.com/twcjewels/storefront-api/internal/gateway/cashfree"
)

type customerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type checkoutRequest struct {
	Customer        customerPayload `json:"customer"`
	ShippingAddress string          `json:"shippingAddress"`
	CouponCode      string          `json:"couponCode"`
}

type buyNowRequest struct {
	ProductID       string          `json:"productId"`
	Quantity        int             `json:"quantity"`
	Customer        customerPayload `json:"customer"`
	ShippingAddress string          `json:"shippingAddress"`
	CouponCode      string          `json:"couponCode"`
}

type checkoutResponse struct {
	Order            orderPayload `json:"order"`
	PaymentSessionID string       `json:"paymentSessionId"`
	PaymentLink      string       `json:"paymentLink,omitempty"`
}

// Checkout places an order for the caller's whole cart.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid := userID(r)
	if uid == "" {
		respondError(ctx, w, http.StatusBadRequest, "X-User-ID header required")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.checkout.Checkout(ctx, order.CheckoutRequest{
		UserID: uid,
		Customer: order.Customer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		ShippingAddress: req.ShippingAddress,
		CouponCode:      req.CouponCode,
	})
	if err != nil {
		h.respondCheckoutError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, checkoutResponse{
		Order:            toOrderPayload(result.Order),
		PaymentSessionID: result.Session.PaymentSessionID,
		PaymentLink:      result.Session.PaymentLink,
	})
}

// BuyNow places a single-item order without touching the cart.
func (h *Handler) BuyNow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid := userID(r)
	if uid == "" {
		respondError(ctx, w, http.StatusBadRequest, "X-User-ID header required")
		return
	}

	var req buyNowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		respondError(ctx, w, http.StatusBadRequest, "productId required")
		return
	}

	result, err := h.checkout.BuyNow(ctx, order.BuyNowRequest{
		UserID:    uid,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Customer: order.Customer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		ShippingAddress: req.ShippingAddress,
		CouponCode:      req.CouponCode,
	})
	if err != nil {
		h.respondCheckoutError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, checkoutResponse{
		Order:            toOrderPayload(result.Order),
		PaymentSessionID: result.Session.PaymentSessionID,
		PaymentLink:      result.Session.PaymentLink,
	})
}

// respondCheckoutError maps domain errors to HTTP statuses: request shape
// problems → 400, business rejections (coupon, catalog) → 422, gateway
// trouble → 502, everything else → 500 with a generic message.
func (h *Handler) respondCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrInvalidQuantity):
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	var notFound *order.ProductNotFoundError
	if errors.As(err, &notFound) {
		respondError(ctx, w, http.StatusUnprocessableEntity, notFound.Error())
		return
	}

	if couponMsg, ok := couponErrorMessage(err); ok {
		respondError(ctx, w, http.StatusUnprocessableEntity, couponMsg)
		return
	}

	var limitErr *cashfree.AmountLimitError
	if errors.As(err, &limitErr) {
		respondError(ctx, w, http.StatusUnprocessableEntity, limitErr.Error())
		return
	}

	var gwErr *cashfree.GatewayError
	if errors.As(err, &gwErr) {
		zctx.From(ctx).Error("Payment gateway rejected request", zap.Error(gwErr))
		respondError(ctx, w, http.StatusBadGateway, "payment gateway error: "+gwErr.Message)
		return
	}

	zctx.From(ctx).Error("Checkout failed", zap.Error(err))
	respondError(ctx, w, http.StatusInternalServerError, "internal error")
}

// couponErrorMessage returns the customer-facing message for coupon
// validation failures. The message is specific on purpose: the storefront UI
// shows it verbatim next to the coupon field.
func couponErrorMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, coupon.ErrEmptyCode),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrUsageLimitReached),
		errors.Is(err, coupon.ErrAlreadyUsed):
		return err.Error(), true
	}
	var minErr *coupon.MinPurchaseError
	if errors.As(err, &minErr) {
		return minErr.Error(), true
	}
	return "", false
}
