package orders

import "github.com/shopspring/decimal"

var (
	FreeShippingAbove = decimal.NewFromInt(1000)
	ShippingFee       = decimal.NewFromInt(100)
	TaxRate           = decimal.RequireFromString("0.18")
)

// ComputePricing derives the order totals from its line items. Shipping is
// waived once the subtotal exceeds FreeShippingAbove.
func ComputePricing(items []LineItem) Pricing {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Amount())
	}
	subtotal = subtotal.Round(2)

	shipping := ShippingFee
	if subtotal.GreaterThan(FreeShippingAbove) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(TaxRate).Round(2)
	discount := decimal.Zero

	return Pricing{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: discount,
		Total:    subtotal.Add(shipping).Add(tax).Sub(discount),
	}
}
