// Package tracking presents tracked orders and runs tracking queries for a
// session, keeping only the latest query's result.
package tracking

import (
	"strings"
	"time"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/order"
)

// DeliveryDays is the number of calendar days added to the order date for
// the estimated delivery.
const DeliveryDays = 7

// Status display classes.
const (
	ClassDelivered  = "bg-green-50 text-green border-green"
	ClassShipped    = "bg-blue-50 text-blue border-blue"
	ClassProcessing = "bg-amber-50 text-amber-700 border-amber-500"
	ClassCancelled  = "bg-red-50 text-red border-red"
	ClassReturned   = "bg-purple-50 text-purple-700 border-purple-500"
	ClassDefault    = "bg-gray-50 text-gray-700 border-gray-400"
)

// track is the ordinary progress track in order.
var track = [...]struct {
	status order.Status
	label  string
}{
	{order.StatusPlaced, "Placed"},
	{order.StatusProcessing, "Processing"},
	{order.StatusShipped, "Shipped"},
	{order.StatusDelivered, "Delivered"},
}

// Step is one entry of the progress track.
type Step struct {
	Status    order.Status
	Label     string
	Completed bool
	Current   bool
	// At is the time the step was reached, when known.
	At *time.Time
	// Note replaces At for the step in progress.
	Note string
}

// Item is an order line with its display status. ShowStatus is set when the
// item's status differs from the order's.
type Item struct {
	order.TrackedItem
	StatusClass string
	ShowStatus  bool
}

// View is the derived presentation of one tracked order.
type View struct {
	Order       order.TrackedOrder
	StatusLabel string
	StatusClass string
	Progress    int

	// Steps is empty for terminal statuses.
	Steps []Step

	Terminal        bool
	TerminalTitle   string
	TerminalMessage string
	TerminalAt      *time.Time

	EstimatedDelivery *time.Time
	ShippingMethod    string
	Items             []Item
}

// Present derives the view of o. It reads only o.
func Present(o order.TrackedOrder) View {
	v := View{
		Order:             o,
		StatusLabel:       Label(o.Status),
		StatusClass:       StatusClass(o.Status),
		Progress:          Progress(o.Status),
		EstimatedDelivery: EstimatedDelivery(o.Status, o.CreatedAt),
		ShippingMethod:    o.ShippingMethod,
	}
	if v.ShippingMethod == "" {
		v.ShippingMethod = order.DefaultShippingMethod
	}

	if o.Status.Terminal() {
		v.Terminal = true
		v.TerminalTitle = "Order " + v.StatusLabel
		v.TerminalAt = o.CancelledAt
		if o.Status == order.StatusCancelled {
			v.TerminalMessage = "This order has been cancelled"
		} else {
			v.TerminalMessage = "This order has been returned"
		}
	} else {
		v.Steps = Steps(o)
	}

	v.Items = make([]Item, 0, len(o.Items))
	for _, it := range o.Items {
		v.Items = append(v.Items, Item{
			TrackedItem: it,
			StatusClass: StatusClass(it.Status),
			ShowStatus:  it.Status != "" && it.Status != o.Status,
		})
	}
	return v
}

// Steps returns the progress track of o. Completion is a prefix of the
// track: reaching a status completes every step before it. Placed is always
// complete. Terminal statuses have no steps.
func Steps(o order.TrackedOrder) []Step {
	if o.Status.Terminal() {
		return nil
	}
	reached := rank(o.Status)

	steps := make([]Step, len(track))
	for i, t := range track {
		steps[i] = Step{
			Status:    t.status,
			Label:     t.label,
			Completed: i <= reached,
			Current:   i == reached,
		}
	}

	if !o.CreatedAt.IsZero() {
		created := o.CreatedAt
		steps[0].At = &created
	}
	switch o.Status {
	case order.StatusProcessing:
		steps[1].Note = "In progress"
	case order.StatusShipped:
		steps[1].At = o.ProcessedAt
		steps[2].Note = "In transit"
	case order.StatusDelivered:
		steps[1].At = o.ProcessedAt
		steps[2].At = o.ShippedAt
		steps[3].At = o.DeliveredAt
	}
	return steps
}

// rank returns the index of s on the track. Unknown statuses count as placed.
func rank(s order.Status) int {
	for i, t := range track {
		if t.status == s {
			return i
		}
	}
	return 0
}

// Progress returns the fixed progress percentage for s.
func Progress(s order.Status) int {
	switch s {
	case order.StatusDelivered:
		return 100
	case order.StatusShipped:
		return 66
	case order.StatusProcessing:
		return 33
	default:
		return 0
	}
}

// StatusClass returns the display class for s.
func StatusClass(s order.Status) string {
	switch s {
	case order.StatusDelivered:
		return ClassDelivered
	case order.StatusShipped:
		return ClassShipped
	case order.StatusProcessing:
		return ClassProcessing
	case order.StatusCancelled:
		return ClassCancelled
	case order.StatusReturned:
		return ClassReturned
	default:
		return ClassDefault
	}
}

// EstimatedDelivery returns orderDate plus seven days, or nil for delivered,
// cancelled and returned orders and for orders without a date.
func EstimatedDelivery(s order.Status, orderDate time.Time) *time.Time {
	switch s {
	case order.StatusDelivered, order.StatusCancelled, order.StatusReturned:
		return nil
	}
	if orderDate.IsZero() {
		return nil
	}
	est := orderDate.AddDate(0, 0, DeliveryDays)
	return &est
}

// Label returns s with its first letter upper-cased.
func Label(s order.Status) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}
