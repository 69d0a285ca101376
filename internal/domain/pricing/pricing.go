// Package pricing computes the checkout order summary.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/coupon"
)

var hundred = decimal.NewFromInt(100)

// LineItem is a single product line in the cart.
type LineItem struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Thumbnail string
	Color     string
	Size      string
	Code      string
}

// Total returns price * quantity.
func (i LineItem) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Summary is the derived pricing breakdown of a cart.
type Summary struct {
	SubTotal       decimal.Decimal
	Discount       decimal.Decimal
	ShippingCharge decimal.Decimal
	Total          decimal.Decimal
}

// IsNegative reports whether the discount exceeds subtotal plus shipping.
func (s Summary) IsNegative() bool {
	return s.Total.IsNegative()
}

// ComputeSummary prices items with the optional coupon and shipping charge.
// Amounts are exact; no rounding, clamping or flooring is applied.
func ComputeSummary(items []LineItem, c *coupon.Coupon, shippingCharge decimal.Decimal) Summary {
	subTotal := SubTotal(items)
	discount := Discount(subTotal, c)
	return Summary{
		SubTotal:       subTotal,
		Discount:       discount,
		ShippingCharge: shippingCharge,
		Total:          subTotal.Sub(discount).Add(shippingCharge),
	}
}

// SubTotal returns the sum of price * quantity across all items.
func SubTotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Total())
	}
	return sum
}

// Discount returns the coupon discount for subTotal. A nil coupon or an
// unknown discount type yields zero.
func Discount(subTotal decimal.Decimal, c *coupon.Coupon) decimal.Decimal {
	if c == nil {
		return decimal.Zero
	}
	switch c.DiscountType {
	case coupon.DiscountPercentage:
		return subTotal.Mul(c.Discount).Div(hundred)
	case coupon.DiscountFlat:
		return c.Discount
	default:
		return decimal.Zero
	}
}

// ShippingTable is the two-tier shipping surcharge keyed by division name.
type ShippingTable struct {
	// PrivilegedDivision is matched case-insensitively against the
	// selected division's name.
	PrivilegedDivision string
	Inside             decimal.Decimal
	Outside            decimal.Decimal
}

// DefaultShipping returns the storefront's standard rates: 80 inside Dhaka,
// 150 elsewhere.
func DefaultShipping() ShippingTable {
	return ShippingTable{
		PrivilegedDivision: "Dhaka",
		Inside:             decimal.NewFromInt(80),
		Outside:            decimal.NewFromInt(150),
	}
}

// Charge returns the surcharge for a division name. An empty name (no
// division selected yet) is charged the outside rate.
func (t ShippingTable) Charge(divisionName string) decimal.Decimal {
	name := strings.TrimSpace(divisionName)
	if name != "" && strings.EqualFold(name, strings.TrimSpace(t.PrivilegedDivision)) {
		return t.Inside
	}
	return t.Outside
}
