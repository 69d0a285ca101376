package cart

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/geo"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/pricing"
)

// Store serializes updates to one cart. It is safe for concurrent use.
type Store struct {
	geo      geo.Source
	shipping pricing.ShippingTable

	mu         sync.Mutex
	state      State
	submitting atomic.Bool
}

// NewStore creates an empty cart priced with shipping.
func NewStore(src geo.Source, shipping pricing.ShippingTable) *Store {
	s := &Store{geo: src, shipping: shipping}
	s.state = Summarize(State{}, src.Index(), shipping)
	return s
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Dispatch applies a and recomputes the summary. On error the state is left
// unchanged and the current snapshot is returned with the error. While a
// submission holds the mark every action fails with ErrSubmissionInProgress.
func (s *Store) Dispatch(ctx context.Context, a Action) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitting.Load() {
		return s.state.clone(), ErrSubmissionInProgress
	}
	return s.apply(ctx, a)
}

// ClearSubmitted empties the cart after its order was placed. It is the only
// update accepted while the submission mark is held, and a no-op otherwise.
func (s *Store) ClearSubmitted(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.submitting.Load() {
		return s.state.clone()
	}
	next, _ := s.apply(ctx, Clear{})
	return next
}

func (s *Store) apply(ctx context.Context, a Action) (State, error) {
	ix := s.geo.Index()
	next, err := Reduce(s.state, a, ix)
	if err != nil {
		return s.state.clone(), err
	}
	next = Summarize(next, ix, s.shipping)
	if next.Summary.IsNegative() {
		zctx.From(ctx).Warn("Order total is negative",
			zap.Stringer("sub_total", next.Summary.SubTotal),
			zap.Stringer("discount", next.Summary.Discount),
			zap.Stringer("shipping", next.Summary.ShippingCharge),
			zap.Stringer("total", next.Summary.Total),
		)
	}
	s.state = next
	return next.clone(), nil
}

// BeginSubmit marks the cart as being submitted and freezes its contents
// until EndSubmit. It fails with ErrSubmissionInProgress while another
// submission holds the mark.
func (s *Store) BeginSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.submitting.CompareAndSwap(false, true) {
		return ErrSubmissionInProgress
	}
	return nil
}

// EndSubmit releases the mark taken by BeginSubmit.
func (s *Store) EndSubmit() {
	s.submitting.Store(false)
}

// Submitting reports whether a submission is in progress.
func (s *Store) Submitting() bool {
	return s.submitting.Load()
}
