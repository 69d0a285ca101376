package coupon

import (
	"context"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
)

const filterFPR = 0.001

var _ Repository = (*FilteredRepository)(nil)

// FilteredRepository answers lookups for codes that were never seeded
// without touching the underlying repository. A bloom filter has no false
// negatives, so every known code still reaches the backing store.
type FilteredRepository struct {
	next   Repository
	filter atomic.Pointer[bloom.BloomFilter]
}

// NewFilteredRepository builds a filter over codes and wraps next with it.
// Codes are normalized with NormalizeCode.
func NewFilteredRepository(next Repository, codes []string) *FilteredRepository {
	r := &FilteredRepository{next: next}
	r.Reset(codes)
	return r
}

// Reset replaces the filter with one built over codes. Lookups running
// concurrently see either the old or the new filter.
func (r *FilteredRepository) Reset(codes []string) {
	n := uint(len(codes))
	if n == 0 {
		n = 1
	}
	f := bloom.NewWithEstimates(n, filterFPR)
	for _, c := range codes {
		f.AddString(NormalizeCode(c))
	}
	r.filter.Store(f)
}

// FindByCode implements Repository.
func (r *FilteredRepository) FindByCode(ctx context.Context, code string) (*Rule, error) {
	if !r.filter.Load().TestString(NormalizeCode(code)) {
		return nil, ErrInvalidCoupon
	}
	return r.next.FindByCode(ctx, code)
}
