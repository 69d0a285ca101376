package geo

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

type snapshot struct {
	ix       *Index
	err      error
	loadedAt time.Time
}

// Provider holds the most recently loaded index. Until the first load it
// serves an empty index.
type Provider struct {
	loader *Loader
	now    func() time.Time

	current atomic.Pointer[snapshot]
	group   singleflight.Group
}

var _ Source = (*Provider)(nil)

// NewProvider creates a provider backed by loader.
func NewProvider(loader *Loader) *Provider {
	p := &Provider{loader: loader, now: time.Now}
	p.current.Store(&snapshot{ix: Empty()})
	return p
}

// Index implements Source.
func (p *Provider) Index() *Index {
	return p.current.Load().ix
}

// Err returns the error of the last load, if any.
func (p *Provider) Err() error {
	return p.current.Load().err
}

// Available reports whether the last load completed without error.
func (p *Provider) Available() bool {
	s := p.current.Load()
	return s.err == nil && !s.ix.IsEmpty()
}

// LoadedAt returns the time of the last load, zero before the first.
func (p *Provider) LoadedAt() time.Time {
	return p.current.Load().loadedAt
}

// Reload loads the dataset and publishes the result. Concurrent calls share
// one load, detached from the cancellation of the caller that started it;
// the loader timeout still bounds it. A failed load is published when it
// covers at least as many levels as the current index, so a partial fallback
// result becomes visible. Otherwise the current index is kept and only the
// error is recorded.
func (p *Provider) Reload(ctx context.Context) error {
	_, err, _ := p.group.Do("reload", func() (any, error) {
		ix, err := p.loader.Load(context.WithoutCancel(ctx))
		if ix == nil {
			ix = Empty()
		}
		next := &snapshot{ix: ix, err: err, loadedAt: p.now()}
		if prev := p.current.Load(); err != nil && levels(ix) < levels(prev.ix) {
			next.ix = prev.ix
		}
		p.current.Store(next)
		return nil, err
	})
	return err
}

// levels counts the levels of ix that have at least one node.
func levels(ix *Index) int {
	var n int
	for l := Division; l < levelCount; l++ {
		if ix.Len(l) > 0 {
			n++
		}
	}
	return n
}
