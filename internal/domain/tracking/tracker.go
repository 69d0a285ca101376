package tracking

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/order"
)

// MinIdentifierLength is the shortest accepted order id, phone or email.
const MinIdentifierLength = 5

// User-facing messages per result state.
const (
	MessageIdentifierRequired = "Order ID is required"
	MessageIdentifierTooShort = "Order ID must be at least 5 characters"
	MessageNotFound           = "No Orders Found"
	MessageFailed             = "We couldn't find an order with that ID. Please check the ID and try again."
)

// State is the outcome of a tracking query.
type State string

const (
	// StateFound means at least one order matched.
	StateFound State = "found"
	// StateNotFound means the query succeeded with no match.
	StateNotFound State = "not_found"
	// StateFailed means the order API request failed.
	StateFailed State = "failed"
	// StateSuperseded means a newer query was issued before this one
	// completed; its response was discarded.
	StateSuperseded State = "superseded"
	// StateInvalid means the identifier was rejected before any request.
	StateInvalid State = "invalid"
)

// Result is the outcome of one query.
type Result struct {
	Seq        uint64
	Identifier string
	State      State
	Views      []View
	Message    string
	Err        error
}

// Tracker runs tracking queries for one session. Only the most recently
// issued query may publish its result; responses of older queries are
// dropped whether they succeed or fail.
type Tracker struct {
	api order.API

	mu     sync.Mutex
	seq    uint64
	latest *Result
}

// NewTracker creates a tracker.
func NewTracker(api order.API) *Tracker {
	return &Tracker{api: api}
}

// Query looks up identifier and publishes the result unless a newer query
// was issued meanwhile.
func (t *Tracker) Query(ctx context.Context, identifier string) Result {
	identifier = strings.TrimSpace(identifier)
	switch {
	case identifier == "":
		return Result{Identifier: identifier, State: StateInvalid, Message: MessageIdentifierRequired}
	case utf8.RuneCountInString(identifier) < MinIdentifierLength:
		return Result{Identifier: identifier, State: StateInvalid, Message: MessageIdentifierTooShort}
	}

	t.mu.Lock()
	t.seq++
	seq := t.seq
	t.mu.Unlock()

	orders, err := t.api.Track(ctx, identifier)

	res := Result{Seq: seq, Identifier: identifier}
	switch {
	case err != nil:
		res.State = StateFailed
		res.Message = MessageFailed
		res.Err = err
	case len(orders) == 0:
		res.State = StateNotFound
		res.Message = MessageNotFound
	default:
		res.State = StateFound
		res.Views = make([]View, 0, len(orders))
		for _, o := range orders {
			res.Views = append(res.Views, Present(o))
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if seq != t.seq {
		zctx.From(ctx).Debug("Dropping stale tracking response",
			zap.Uint64("seq", seq),
			zap.Uint64("latest", t.seq),
		)
		return Result{Seq: seq, Identifier: identifier, State: StateSuperseded}
	}
	if err != nil {
		zctx.From(ctx).Warn("Order tracking failed", zap.Error(err))
	}
	t.latest = &res
	return res
}

// Latest returns the last published result.
func (t *Tracker) Latest() (Result, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return Result{}, false
	}
	return *t.latest, true
}
