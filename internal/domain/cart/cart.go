// Package cart holds per-session checkout state: line items, the applied
// coupon, the shipping location selection, and the derived order summary.
package cart

import (
	"slices"

	"github.com/go-faster/errors"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/coupon"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/geo"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/pricing"
)

var (
	// ErrItemNotFound is returned when an action targets a product that is
	// not in the cart.
	ErrItemNotFound = errors.New("item not in cart")
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrInvalidItem is returned for items without a product id or with a
	// negative price.
	ErrInvalidItem = errors.New("invalid cart item")
	// ErrCouponAlreadyApplied is returned when a second coupon is applied.
	ErrCouponAlreadyApplied = errors.New("a coupon is already applied")
	// ErrSubmissionInProgress is returned when a checkout is already running
	// for the cart.
	ErrSubmissionInProgress = errors.New("order submission already in progress")
)

// State is a snapshot of a cart. Summary is derived from the other fields
// and is recomputed by the Store after every action.
type State struct {
	Items    []pricing.LineItem
	Coupon   *coupon.Coupon
	Location geo.Selection
	Summary  pricing.Summary
}

// IsEmpty reports whether the cart has no items.
func (s State) IsEmpty() bool {
	return len(s.Items) == 0
}

// Quantity returns the total number of units across all items.
func (s State) Quantity() int {
	var n int
	for _, item := range s.Items {
		n += item.Quantity
	}
	return n
}

func (s State) clone() State {
	out := s
	out.Items = slices.Clone(s.Items)
	out.Location.Districts = slices.Clone(s.Location.Districts)
	out.Location.Upazilas = slices.Clone(s.Location.Upazilas)
	if s.Coupon != nil {
		c := *s.Coupon
		out.Coupon = &c
	}
	return out
}

// Summarize returns s with its summary recomputed. The shipping charge is
// looked up by the name of the selected division.
func Summarize(s State, ix *geo.Index, shipping pricing.ShippingTable) State {
	charge := shipping.Charge(ix.DivisionName(s.Location))
	s.Summary = pricing.ComputeSummary(s.Items, s.Coupon, charge)
	return s
}

// Action is a cart update.
type Action interface {
	apply(s State, ix *geo.Index) (State, error)
}

// Reduce applies a to s and returns the new state. It never mutates s; on
// error the returned state is s.
func Reduce(s State, a Action, ix *geo.Index) (State, error) {
	next, err := a.apply(s.clone(), ix)
	if err != nil {
		return s, err
	}
	return next, nil
}

// AddItem adds a line item, merging quantities with an existing line for the
// same product.
type AddItem struct {
	Item pricing.LineItem
}

func (a AddItem) apply(s State, _ *geo.Index) (State, error) {
	if a.Item.ProductID == "" || a.Item.Price.IsNegative() {
		return s, ErrInvalidItem
	}
	if a.Item.Quantity < 1 {
		return s, ErrInvalidQuantity
	}
	if i := s.find(a.Item.ProductID); i >= 0 {
		s.Items[i].Quantity += a.Item.Quantity
		return s, nil
	}
	s.Items = append(s.Items, a.Item)
	return s, nil
}

// SetQuantity replaces the quantity of a product already in the cart.
type SetQuantity struct {
	ProductID string
	Quantity  int
}

func (a SetQuantity) apply(s State, _ *geo.Index) (State, error) {
	if a.Quantity < 1 {
		return s, ErrInvalidQuantity
	}
	i := s.find(a.ProductID)
	if i < 0 {
		return s, ErrItemNotFound
	}
	s.Items[i].Quantity = a.Quantity
	return s, nil
}

// RemoveItem removes a product from the cart.
type RemoveItem struct {
	ProductID string
}

func (a RemoveItem) apply(s State, _ *geo.Index) (State, error) {
	i := s.find(a.ProductID)
	if i < 0 {
		return s, ErrItemNotFound
	}
	s.Items = slices.Delete(s.Items, i, i+1)
	return s, nil
}

// ApplyCoupon attaches a validated coupon. Only one coupon may be applied.
type ApplyCoupon struct {
	Coupon coupon.Coupon
}

func (a ApplyCoupon) apply(s State, _ *geo.Index) (State, error) {
	if s.Coupon != nil {
		return s, ErrCouponAlreadyApplied
	}
	c := a.Coupon
	s.Coupon = &c
	return s, nil
}

// RemoveCoupon detaches the applied coupon, if any.
type RemoveCoupon struct{}

func (RemoveCoupon) apply(s State, _ *geo.Index) (State, error) {
	s.Coupon = nil
	return s, nil
}

// SelectDivision selects the shipping division.
type SelectDivision struct {
	ID string
}

func (a SelectDivision) apply(s State, ix *geo.Index) (State, error) {
	sel, err := ix.SelectDivision(s.Location, a.ID)
	if err != nil {
		return s, err
	}
	s.Location = sel
	return s, nil
}

// SelectDistrict selects the shipping district.
type SelectDistrict struct {
	ID string
}

func (a SelectDistrict) apply(s State, ix *geo.Index) (State, error) {
	sel, err := ix.SelectDistrict(s.Location, a.ID)
	if err != nil {
		return s, err
	}
	s.Location = sel
	return s, nil
}

// SelectUpazila selects the shipping upazila.
type SelectUpazila struct {
	ID string
}

func (a SelectUpazila) apply(s State, ix *geo.Index) (State, error) {
	sel, err := ix.SelectUpazila(s.Location, a.ID)
	if err != nil {
		return s, err
	}
	s.Location = sel
	return s, nil
}

// Clear empties the cart and drops the coupon and location selection.
type Clear struct{}

func (Clear) apply(State, *geo.Index) (State, error) {
	return State{}, nil
}

func (s State) find(productID string) int {
	return slices.IndexFunc(s.Items, func(item pricing.LineItem) bool {
		return item.ProductID == productID
	})
}
