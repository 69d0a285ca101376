package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when p cannot be reached.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// Dataset reports whether a loaded dataset is usable. It is implemented by
// *geo.Provider.
type Dataset interface {
	Available() bool
	Err() error
}

// DatasetCheck fails while d is unavailable or was loaded partially.
func DatasetCheck(d Dataset) CheckFunc {
	return func(_ context.Context) error {
		if err := d.Err(); err != nil {
			return err
		}
		if !d.Available() {
			return errors.New("dataset not loaded")
		}
		return nil
	}
}
