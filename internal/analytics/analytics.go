// Package analytics aggregates reconciled orders into the figures the admin
// dashboard shows. It is a pure consumer of the checkout pipeline's output:
// it reads settled orders and never mutates them.
package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/twcjewels/storefront-api/internal/domain/order"
)

// Stats is the revenue breakdown for a set of orders.
type Stats struct {
	// TotalRevenue sums the charged total of every paid order, including
	// those later returned.
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	// TotalReturns sums the charged total of orders in return/refund.
	TotalReturns decimal.Decimal `json:"totalReturns"`
	// NetSales is revenue minus returns.
	NetSales decimal.Decimal `json:"netSales"`
	// TotalDeliveryCharges is the delivery cost absorbed by the standing
	// free-delivery promotion.
	TotalDeliveryCharges decimal.Decimal `json:"totalDeliveryCharges"`
	// TotalRTOCosts sums return-to-origin logistics charges.
	TotalRTOCosts decimal.Decimal `json:"totalRtoCosts"`
	// NetProfit is net sales minus absorbed delivery and RTO costs.
	NetProfit decimal.Decimal `json:"netProfit"`

	OrderCount  int `json:"orderCount"`
	ReturnCount int `json:"returnCount"`
	RTOCount    int `json:"rtoCount"`
}

// Compute reduces the given orders to Stats. Orders that never completed
// payment carry no revenue and are skipped entirely; cancelled-after-payment
// orders are treated as returns.
func Compute(orders []order.Order) Stats {
	var s Stats
	s.TotalRevenue = decimal.Zero
	s.TotalReturns = decimal.Zero
	s.TotalDeliveryCharges = decimal.Zero
	s.TotalRTOCosts = decimal.Zero

	for _, o := range orders {
		if o.PaymentStatus != order.PaymentPaid && o.PaymentStatus != order.PaymentRefunded {
			continue
		}

		s.OrderCount++
		s.TotalRevenue = s.TotalRevenue.Add(o.Total)
		s.TotalDeliveryCharges = s.TotalDeliveryCharges.Add(o.DeliveryCharge)

		switch o.DeliveryStatus {
		case order.DeliveryReturnRefund, order.DeliveryCancelled:
			s.ReturnCount++
			s.TotalReturns = s.TotalReturns.Add(o.Total)
		}

		if !o.RTOCharge.IsZero() {
			s.RTOCount++
			s.TotalRTOCosts = s.TotalRTOCosts.Add(o.RTOCharge)
		}
	}

	s.NetSales = s.TotalRevenue.Sub(s.TotalReturns)
	s.NetProfit = s.NetSales.Sub(s.TotalDeliveryCharges).Sub(s.TotalRTOCosts)
	return s
}
