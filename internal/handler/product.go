package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type productPayload struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ActualPrice decimal.Decimal `json:"actualPrice"`
	Category    string          `json:"category,omitempty"`
	Image       string          `json:"image,omitempty"`
}

// ListProducts returns the active catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	products, err := h.products.List(ctx)
	if err != nil {
		zctx.From(ctx).Error("Failed to list products", zap.Error(err))
		respondError(ctx, w, http.StatusInternalServerError, "internal error")
		return
	}

	payloads := make([]productPayload, len(products))
	for i, p := range products {
		payloads[i] = productPayload{
			ID:          p.ID,
			Name:        p.Name,
			Price:       p.Price,
			ActualPrice: p.DisplayPrice(),
			Category:    p.Category,
			Image:       p.Image,
		}
	}
	respondJSON(ctx, w, http.StatusOK, payloads)
}
