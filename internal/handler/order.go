package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/twcjewels/storefront-api/internal/domain/order"
)

type ordersResponse struct {
	Orders []orderPayload `json:"orders"`
}

// ListOrders returns the caller's orders, most recent first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid := userID(r)
	if uid == "" {
		respondError(ctx, w, http.StatusBadRequest, "X-User-ID header required")
		return
	}

	orders, err := h.orders.ListByUser(ctx, uid)
	if err != nil {
		zctx.From(ctx).Error("Failed to list orders", zap.Error(err))
		respondError(ctx, w, http.StatusInternalServerError, "internal error")
		return
	}

	payloads := make([]orderPayload, len(orders))
	for i := range orders {
		payloads[i] = toOrderPayload(&orders[i])
	}
	respondJSON(ctx, w, http.StatusOK, ordersResponse{Orders: payloads})
}

// CancelOrder cancels a paid, unshipped order inside the cancellation window.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, h.checkout.Cancel)
}

// ReturnOrder moves a delivered order into the return/refund pipeline.
func (h *Handler) ReturnOrder(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, h.checkout.RequestReturn)
}

// ReportIssue flags a delivered order for back-office attention.
func (h *Handler) ReportIssue(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, h.checkout.ReportIssue)
}

func (h *Handler) lifecycleAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, userID, orderID string) error) {
	ctx := r.Context()

	uid := userID(r)
	if uid == "" {
		respondError(ctx, w, http.StatusBadRequest, "X-User-ID header required")
		return
	}
	orderID := r.PathValue("orderID")

	if err := action(ctx, uid, orderID); err != nil {
		h.respondLifecycleError(ctx, w, err)
		return
	}

	o, err := h.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		zctx.From(ctx).Error("Failed to reload order", zap.Error(err))
		respondError(ctx, w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(ctx, w, http.StatusOK, toOrderPayload(o))
}

func (h *Handler) respondLifecycleError(ctx context.Context, w http.ResponseWriter, err error) {
	var winErr *order.CancellationWindowError
	switch {
	case errors.Is(err, order.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "order not found")
	case errors.As(err, &winErr):
		respondError(ctx, w, http.StatusConflict, winErr.Error())
	case errors.Is(err, order.ErrNotCancellable),
		errors.Is(err, order.ErrNotReturnable):
		respondError(ctx, w, http.StatusConflict, err.Error())
	default:
		zctx.From(ctx).Error("Order lifecycle action failed", zap.Error(err))
		respondError(ctx, w, http.StatusInternalServerError, "internal error")
	}
}
