// Package pricing computes order totals from cart lines, coupon discounts
// and the delivery charge policy. Everything here is a pure function of its
// inputs; persistence and gateway concerns live elsewhere.
package pricing

import "github.com/shopspring/decimal"

// Line is a priced cart line. UnitActualPrice is the pre-discount display
// price; zero means the product has no separate display price.
type Line struct {
	ProductID       string
	Quantity        int
	UnitPrice       decimal.Decimal
	UnitActualPrice decimal.Decimal
}

// Quote is the full price breakdown for a checkout attempt.
//
// FinalTotal is what the gateway charges: subtotal minus coupon discount,
// clamped at zero. Delivery nets to zero because DeliveryDiscount always
// equals DeliveryCharge (standing full-waiver promotion); the charge is kept
// as a separate field for cost reporting.
type Quote struct {
	Subtotal         decimal.Decimal
	ActualTotal      decimal.Decimal
	ProductDiscount  decimal.Decimal
	DeliveryCharge   decimal.Decimal
	DeliveryDiscount decimal.Decimal
	FinalTotal       decimal.Decimal
}

// Calculate produces a Quote for the given lines.
//
// The delivery charge is a flat per-line rate: three distinct products incur
// three charges regardless of per-line quantity. couponDiscount is taken as
// already computed (see the coupon package); a fixed-type coupon may exceed
// the subtotal, so the final total is floored at zero rather than sent
// negative to the gateway.
func Calculate(lines []Line, couponDiscount, deliveryChargePerItem decimal.Decimal) Quote {
	subtotal := decimal.Zero
	actualTotal := decimal.Zero
	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		subtotal = subtotal.Add(l.UnitPrice.Mul(qty))

		unitActual := l.UnitActualPrice
		if unitActual.IsZero() {
			unitActual = l.UnitPrice
		}
		actualTotal = actualTotal.Add(unitActual.Mul(qty))
	}

	deliveryCharge := deliveryChargePerItem.Mul(decimal.NewFromInt(int64(len(lines))))

	finalTotal := subtotal.Sub(couponDiscount)
	if finalTotal.IsNegative() {
		finalTotal = decimal.Zero
	}

	return Quote{
		Subtotal:         subtotal.Round(2),
		ActualTotal:      actualTotal.Round(2),
		ProductDiscount:  actualTotal.Sub(subtotal).Round(2),
		DeliveryCharge:   deliveryCharge.Round(2),
		DeliveryDiscount: deliveryCharge.Round(2),
		FinalTotal:       finalTotal.Round(2),
	}
}

// TotalDiscount is the informational sum recorded on the order: product
// discount plus coupon discount plus the waived delivery charge.
func (q Quote) TotalDiscount(couponDiscount decimal.Decimal) decimal.Decimal {
	return q.ProductDiscount.Add(couponDiscount).Add(q.DeliveryDiscount)
}

// DisplayTotal is the pre-discount reference total shown to the customer:
// actual prices plus the (later waived) delivery charge.
func (q Quote) DisplayTotal() decimal.Decimal {
	return q.ActualTotal.Add(q.DeliveryCharge)
}
