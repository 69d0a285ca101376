package geo

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LoadFailedMessage is the user-facing text shown when the dataset could not
// be loaded.
const LoadFailedMessage = "Failed to load location data. Please refresh the page."

// maxResourceSize bounds a single dataset resource after decompression.
const maxResourceSize = 64 << 20

// ErrResourceNotFound is returned by a Fetcher for a missing resource.
var ErrResourceNotFound = errors.New("resource not found")

// Fetcher reads a named dataset resource.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// Names are the resource names of the nested dataset and its flat fallbacks.
type Names struct {
	Nested string
	Flat   [levelCount]string
}

// DefaultNames returns the resource names used by the storefront.
func DefaultNames() Names {
	return Names{
		Nested: "bd-locations.json",
		Flat: [levelCount]string{
			Division: "bd-divisions.json",
			District: "bd-districts.json",
			Upazila:  "bd-upazilas.json",
			Union:    "bd-unions.json",
		},
	}
}

// LoadError lists the flat resources that could not be loaded. The index
// returned alongside it holds whatever did load.
type LoadError struct {
	Nested error
	Failed map[string]error
}

// Resources returns the failed resource names, sorted.
func (e *LoadError) Resources() []string {
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (e *LoadError) Error() string {
	return "load geography: failed resources: " + strings.Join(e.Resources(), ", ")
}

// Loader loads the dataset, preferring the nested resource and falling back
// to the four flat ones.
type Loader struct {
	fetcher Fetcher
	names   Names
	timeout time.Duration
}

// NewLoader creates a loader. A zero timeout means no timeout.
func NewLoader(f Fetcher, names Names, timeout time.Duration) *Loader {
	return &Loader{fetcher: f, names: names, timeout: timeout}
}

// Load fetches and indexes the dataset. It always returns a usable index; on
// failure it is partial or empty and the error is a *LoadError.
func (l *Loader) Load(ctx context.Context) (*Index, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	lg := zctx.From(ctx)

	ds, nestedErr := l.loadNested(ctx)
	if nestedErr == nil {
		ix := NewIndex(ds)
		if err := ix.Validate(); err != nil {
			lg.Warn("Geography dataset has inconsistencies", zap.Error(err))
		}
		lg.Info("Geography loaded",
			zap.String("resource", l.names.Nested),
			zap.Int("divisions", ix.Len(Division)),
			zap.Int("districts", ix.Len(District)),
			zap.Int("upazilas", ix.Len(Upazila)),
			zap.Int("unions", ix.Len(Union)),
		)
		return ix, nil
	}
	lg.Warn("Nested geography unavailable, falling back to flat resources",
		zap.String("resource", l.names.Nested),
		zap.Error(nestedErr),
	)

	var (
		nodes [levelCount][]Node
		errs  [levelCount]error
	)
	// Each resource degrades on its own: goroutines record their error and
	// never fail the group.
	g, gctx := errgroup.WithContext(ctx)
	for lvl := Division; lvl < levelCount; lvl++ {
		g.Go(func() error {
			data, err := fetchResource(gctx, l.fetcher, l.names.Flat[lvl])
			if err != nil {
				errs[lvl] = err
				return nil
			}
			nodes[lvl], errs[lvl] = DecodeFlat(lvl, data)
			return nil
		})
	}
	_ = g.Wait()

	ix := NewIndex(Dataset{
		Divisions: nodes[Division],
		Districts: nodes[District],
		Upazilas:  nodes[Upazila],
		Unions:    nodes[Union],
	})

	loadErr := &LoadError{Nested: nestedErr, Failed: make(map[string]error)}
	for lvl, err := range errs {
		if err == nil {
			continue
		}
		name := l.names.Flat[lvl]
		loadErr.Failed[name] = err
		lg.Error("Geography resource failed", zap.String("resource", name), zap.Error(err))
	}
	if len(loadErr.Failed) > 0 {
		return ix, loadErr
	}
	if err := ix.Validate(); err != nil {
		lg.Warn("Geography dataset has inconsistencies", zap.Error(err))
	}
	lg.Info("Geography loaded from flat resources",
		zap.Int("divisions", ix.Len(Division)),
		zap.Int("districts", ix.Len(District)),
		zap.Int("upazilas", ix.Len(Upazila)),
		zap.Int("unions", ix.Len(Union)),
	)
	return ix, nil
}

func (l *Loader) loadNested(ctx context.Context) (Dataset, error) {
	data, err := fetchResource(ctx, l.fetcher, l.names.Nested)
	if err != nil {
		return Dataset{}, err
	}
	ds, err := DecodeNested(data)
	if err != nil {
		return Dataset{}, err
	}
	if len(ds.Divisions) == 0 {
		return Dataset{}, errors.New("nested dataset has no divisions")
	}
	return ds, nil
}

// fetchResource fetches name, or name.gz when name is missing, and
// decompresses gzip content.
func fetchResource(ctx context.Context, f Fetcher, name string) ([]byte, error) {
	data, err := f.Fetch(ctx, name)
	if errors.Is(err, ErrResourceNotFound) {
		data, err = f.Fetch(ctx, name+".gz")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", name)
	}
	if !isGzip(data) {
		return data, nil
	}
	zr, err := pgzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "gunzip %s", name)
	}
	defer func() { _ = zr.Close() }()

	out, err := io.ReadAll(io.LimitReader(zr, maxResourceSize))
	if err != nil {
		return nil, errors.Wrapf(err, "gunzip %s", name)
	}
	return out, nil
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

// NewFetcher returns an HTTP fetcher for http(s) sources and a directory
// fetcher otherwise.
func NewFetcher(source string, client *http.Client) (Fetcher, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return NewHTTPFetcher(source, client)
	}
	st, err := os.Stat(source)
	if err != nil {
		return nil, errors.Wrap(err, "geography source")
	}
	if !st.IsDir() {
		return nil, errors.Errorf("geography source %q is not a directory", source)
	}
	return NewDirFetcher(os.DirFS(source)), nil
}

// DirFetcher reads resources from a filesystem.
type DirFetcher struct {
	fsys fs.FS
}

var _ Fetcher = (*DirFetcher)(nil)

// NewDirFetcher creates a fetcher over fsys.
func NewDirFetcher(fsys fs.FS) *DirFetcher {
	return &DirFetcher{fsys: fsys}
}

// Fetch implements Fetcher.
func (f *DirFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(f.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrResourceNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// HTTPFetcher reads resources relative to a base URL.
type HTTPFetcher struct {
	base   *url.URL
	client *http.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher for base. A nil client uses
// http.DefaultClient.
func NewHTTPFetcher(base string, client *http.Client) (*HTTPFetcher, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, errors.Wrap(err, "parse geography base url")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{base: u, client: client}, nil
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	u := f.base.JoinPath(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrResourceNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, errors.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResourceSize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return data, nil
}
