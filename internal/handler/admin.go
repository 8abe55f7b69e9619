package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/twcjewels/storefront-api/internal/analytics"
	"github.com/twcjewels/storefront-api/internal/domain/order"
)

// AdminStats aggregates settled orders in [from, to) into revenue figures.
// Dates are accepted as YYYY-MM-DD; defaults cover the trailing 30 days.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	to := time.Now()
	from := to.AddDate(0, 0, -30)

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid from date, want YYYY-MM-DD")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid to date, want YYYY-MM-DD")
			return
		}
		// Inclusive end date.
		to = t.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		respondError(ctx, w, http.StatusBadRequest, "from must precede to")
		return
	}

	orders, err := h.orders.ListCreatedBetween(ctx, from, to)
	if err != nil {
		zctx.From(ctx).Error("Failed to load orders for stats", zap.Error(err))
		respondError(ctx, w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(ctx, w, http.StatusOK, analytics.Compute(orders))
}

type deliveryUpdateRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber"`
}

// UpdateDelivery moves an order through the fulfilment pipeline
// (shipped/delivered) and records the courier tracking number.
func (h *Handler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := r.PathValue("orderID")

	var req deliveryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	status := order.DeliveryStatus(req.Status)
	if status != order.DeliveryShipped && status != order.DeliveryDelivered {
		respondError(ctx, w, http.StatusBadRequest, "status must be shipped or delivered")
		return
	}

	if err := h.orders.UpdateDelivery(ctx, orderID, status, req.TrackingNumber); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(ctx).Error("Failed to update delivery", zap.Error(err))
		respondError(ctx, w, http.StatusInternalServerError, "internal error")
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
