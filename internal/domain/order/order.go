// Package order defines the order wire model shared by checkout and
// tracking, and the interface of the remote order API.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentCashOnDelivery is the only payment method the storefront offers.
const PaymentCashOnDelivery = "Cash On Delivery"

// DefaultShippingMethod is reported when a tracked order carries none.
const DefaultShippingMethod = "Home Delivery"

// Status is the lifecycle state of an order as reported by the order API.
type Status string

const (
	StatusPlaced     Status = "placed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
)

// Terminal reports whether s ends the ordinary progress track.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusReturned
}

// Item is an order line.
type Item struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Thumbnail string
	Color     string
	Size      string
	Code      string
}

// ShippingAddress holds display names, never dataset ids.
type ShippingAddress struct {
	Line1    string
	Line2    string
	Country  string
	Phone    string
	Division string
	District string
	Upazila  string
}

// Payload is the body sent to the order creation endpoint.
type Payload struct {
	Items          []Item
	OrderTotal     decimal.Decimal
	SubTotal       decimal.Decimal
	Discount       decimal.Decimal
	ShippingCharge decimal.Decimal
	Total          decimal.Decimal

	Name            string
	Email           string
	Phone           string
	ShippingAddress ShippingAddress
	PaymentMethod   string

	HasCoupon       bool
	CouponCode      string
	IsGuestCheckout bool
}

// Created is the affirmative response of the order creation endpoint.
type Created struct {
	ID string
}

// TrackedItem is a line of a tracked order. Status is set when the item is
// tracked separately from the order.
type TrackedItem struct {
	Item
	Status Status
}

// TrackedOrder is a read-only projection of an order held by the order API.
type TrackedOrder struct {
	ID     string
	Status Status

	CreatedAt   time.Time
	ProcessedAt *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	// CancelledAt is also set when the order is returned.
	CancelledAt *time.Time

	Name            string
	Email           string
	Phone           string
	IsGuestCheckout bool
	ShippingAddress ShippingAddress
	ShippingMethod  string
	TrackingNumber  string
	PaymentMethod   string

	Items    []TrackedItem
	SubTotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// API is the remote order service.
type API interface {
	// Create submits a new order.
	Create(ctx context.Context, p *Payload) (*Created, error)
	// Track returns the orders matching identifier: an order id, phone
	// number or email. No match is an empty slice, not an error.
	Track(ctx context.Context, identifier string) ([]TrackedOrder, error)
}

// APIError is a non-affirmative response from the order API. Message is the
// server-provided text, possibly empty.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("order api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("order api: status %d: %s", e.StatusCode, e.Message)
}
