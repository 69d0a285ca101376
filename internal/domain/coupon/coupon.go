package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage of the cart subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFlat takes a fixed amount off the order. It is not capped at
	// the subtotal.
	DiscountFlat DiscountType = "flat"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	switch t {
	case DiscountPercentage, DiscountFlat:
		return true
	default:
		return false
	}
}

var (
	// ErrInvalidCoupon is returned when a coupon code is unknown or inactive.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
)

// Coupon is a discount applied to a cart. A cart holds at most one.
type Coupon struct {
	Code         string
	DiscountType DiscountType
	Discount     decimal.Decimal
}

// Rule is the persisted form of a coupon with its eligibility constraints.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	Description  string
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	MaxUses      int
	Uses         int
}

// Coupon returns the cart-facing coupon for the rule.
func (r *Rule) Coupon() Coupon {
	return Coupon{
		Code:         r.Code,
		DiscountType: r.DiscountType,
		Discount:     r.Value,
	}
}

// Repository provides lookup of coupon rules.
type Repository interface {
	// FindByCode returns the active rule for code, matched case-insensitively.
	// It returns ErrInvalidCoupon when none exists.
	FindByCode(ctx context.Context, code string) (*Rule, error)
}

// NormalizeCode trims and upper-cases a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
