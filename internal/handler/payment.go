package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/twcjewels/storefront-api/internal/domain/order"
	"github.com/twcjewels/storefront-api/internal/gateway/cashfree"
)

type verifyResponse struct {
	Order orderPayload `json:"order"`
}

// VerifyPayment is the client-initiated reconciliation entry: it polls the
// gateway until the payment settles and returns the resulting order state.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		respondError(ctx, w, http.StatusBadRequest, "order_id required")
		return
	}

	// Reject unknown ids before burning the poll budget on the gateway.
	if _, err := h.orders.GetByOrderID(ctx, orderID); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(ctx).Error("Failed to load order", zap.Error(err))
		respondError(ctx, w, http.StatusInternalServerError, "internal error")
		return
	}

	o, err := h.reconciler.Await(ctx, orderID)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrVerifyTimeout):
			respondError(ctx, w, http.StatusGatewayTimeout,
				"payment not settled yet, try again")
		default:
			var gwErr *cashfree.GatewayError
			if errors.As(err, &gwErr) {
				zctx.From(ctx).Error("Gateway poll failed", zap.Error(gwErr))
				respondError(ctx, w, http.StatusBadGateway, "payment gateway error")
				return
			}
			zctx.From(ctx).Error("Payment verification failed", zap.Error(err))
			respondError(ctx, w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, verifyResponse{Order: toOrderPayload(o)})
}

// PaymentWebhook is the gateway-initiated reconciliation entry.
//
// Status codes drive the gateway's retry behavior: 200 acknowledges the
// delivery (including structurally invalid payloads and orders we do not
// know, which a retry cannot fix), 500 asks for a redelivery after a
// transient failure.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lg := zctx.From(ctx)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "read body")
		return
	}

	ev, err := cashfree.ParseWebhook(payload)
	if err != nil {
		lg.Warn("Ignoring malformed webhook", zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	rec := order.TransactionRecord{
		Amount:           ev.Amount,
		GatewayOrderID:   ev.GatewayOrderID,
		GatewayPaymentID: ev.GatewayPaymentID,
		Payload:          ev.Raw,
	}

	if ev.Success() {
		err = h.reconciler.Confirm(ctx, ev.OrderID, rec)
	} else {
		err = h.reconciler.Fail(ctx, ev.OrderID, rec)
	}
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			lg.Warn("Webhook for unknown order", zap.String("order_id", ev.OrderID))
			w.WriteHeader(http.StatusOK)
			return
		}
		lg.Error("Webhook processing failed",
			zap.String("order_id", ev.OrderID), zap.Error(err))
		respondError(ctx, w, http.StatusInternalServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusOK)
}
