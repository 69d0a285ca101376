package geo

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nestedJSON = `{
  "divisions": [
    {
      "id": 3, "name": "Dhaka", "bn_name": "ঢাকা", "url": "www.dhakadiv.gov.bd",
      "districts": [
        {
          "id": "47", "division_id": "3", "name": "Dhaka", "bn_name": "ঢাকা", "lat": "23.7115253",
          "upazilas": [
            {
              "id": "400", "name": "Savar", "bn_name": "সাভার",
              "unions": [
                {"id": "3000", "upazilla_id": "400", "name": "Ashulia", "bn_name": "আশুলিয়া"},
                {"id": "3001", "name": "Birulia", "bn_name": null}
              ]
            }
          ]
        },
        {"id": "48", "name": "Gazipur", "upazilas": null}
      ]
    },
    {"id": 1, "name": "Chattogram", "bn_name": "চট্টগ্রাম"}
  ]
}`

const (
	divisionsJSON = `{"divisions":[{"id":1,"name":"Chattogram","bn_name":"চট্টগ্রাম"},{"id":3,"name":"Dhaka","bn_name":"ঢাকা"}]}`
	districtsJSON = `{"districts":[{"id":"1","division_id":"1","name":"Comilla"},{"id":"47","division_id":"3","name":"Dhaka"}]}`
	upazilasJSON  = `{"upazilas":[{"id":"1","district_id":"1","name":"Debidwar"},{"id":"400","district_id":"47","name":"Savar"}]}`
	unionsJSON    = `[{"id":"3000","upazilla_id":"400","name":"Ashulia"}]`
)

func gz(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := pgzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecodeNested(t *testing.T) {
	ds, err := DecodeNested([]byte(nestedJSON))
	require.NoError(t, err)

	assert.Equal(t, []string{"3", "1"}, ids(ds.Divisions))
	assert.Equal(t, []string{"47", "48"}, ids(ds.Districts))
	require.Len(t, ds.Upazilas, 1)
	assert.Equal(t, "47", ds.Upazilas[0].ParentID, "parent inferred from enclosing district")
	require.Len(t, ds.Unions, 2)
	assert.Equal(t, "400", ds.Unions[1].ParentID)
	assert.Empty(t, ds.Unions[1].AltName)
	assert.Equal(t, "ঢাকা", ds.Divisions[0].AltName)
	assert.Equal(t, "3", ds.Districts[1].ParentID)

	ix := NewIndex(ds)
	require.NoError(t, ix.Validate())
	assert.Equal(t, []string{"3000", "3001"}, ids(ix.Unions("400")))
}

func TestDecodeNested_Errors(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input string
	}{
		{name: "malformed", input: `{"divisions": [`},
		{name: "not an object", input: `[]`},
		{name: "divisions not array", input: `{"divisions": {}}`},
		{name: "missing id", input: `{"divisions": [{"name": "Dhaka"}]}`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeNested([]byte(tt.input))
			require.Error(t, err)
		})
	}

	_, err := DecodeNested([]byte(`{"data": []}`))
	require.ErrorIs(t, err, ErrNotNested)
}

func TestDecodeFlat(t *testing.T) {
	nodes, err := DecodeFlat(District, []byte(districtsJSON))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "47"}, ids(nodes))
	assert.Equal(t, "3", nodes[1].ParentID)

	nodes, err = DecodeFlat(Union, []byte(unionsJSON))
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "400", nodes[0].ParentID)

	nodes, err = DecodeFlat(Upazila, []byte(`{"other": []}`))
	require.NoError(t, err)
	assert.Empty(t, nodes)

	_, err = DecodeFlat(Division, []byte(`"divisions"`))
	require.Error(t, err)
}

func flatFS() fstest.MapFS {
	return fstest.MapFS{
		"bd-divisions.json": {Data: []byte(divisionsJSON)},
		"bd-districts.json": {Data: []byte(districtsJSON)},
		"bd-upazilas.json":  {Data: []byte(upazilasJSON)},
		"bd-unions.json":    {Data: []byte(unionsJSON)},
	}
}

func TestLoader_Nested(t *testing.T) {
	fsys := flatFS()
	fsys["bd-locations.json"] = &fstest.MapFile{Data: []byte(nestedJSON)}

	ix, err := NewLoader(NewDirFetcher(fsys), DefaultNames(), 0).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1"}, ids(ix.Divisions()), "nested resource wins")
}

func TestLoader_NestedGzip(t *testing.T) {
	fsys := fstest.MapFS{
		"bd-locations.json.gz": {Data: gz(t, nestedJSON)},
	}
	ix, err := NewLoader(NewDirFetcher(fsys), DefaultNames(), 0).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len(Division))
	assert.Equal(t, 2, ix.Len(Union))
}

func TestLoader_FallbackToFlat(t *testing.T) {
	for _, tt := range []struct {
		name   string
		nested []byte
	}{
		{name: "missing nested"},
		{name: "malformed nested", nested: []byte(`{"divisions": [{`)},
		{name: "empty nested", nested: []byte(`{"divisions": []}`)},
	} {
		t.Run(tt.name, func(t *testing.T) {
			fsys := flatFS()
			if tt.nested != nil {
				fsys["bd-locations.json"] = &fstest.MapFile{Data: tt.nested}
			}
			ix, err := NewLoader(NewDirFetcher(fsys), DefaultNames(), 0).Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"1", "3"}, ids(ix.Divisions()))
			assert.Equal(t, []string{"47"}, ids(ix.Districts("3")))
			assert.Equal(t, []string{"3000"}, ids(ix.Unions("400")))
		})
	}
}

func TestLoader_PartialFallback(t *testing.T) {
	fsys := flatFS()
	delete(fsys, "bd-upazilas.json")
	fsys["bd-unions.json"] = &fstest.MapFile{Data: []byte(`{"unions": [`)}

	ix, err := NewLoader(NewDirFetcher(fsys), DefaultNames(), 0).Load(context.Background())
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, []string{"bd-unions.json", "bd-upazilas.json"}, loadErr.Resources())
	assert.Error(t, loadErr.Nested)
	assert.Contains(t, loadErr.Error(), "bd-upazilas.json")

	require.NotNil(t, ix)
	assert.Equal(t, 2, ix.Len(Division), "divisions still load")
	assert.Equal(t, 2, ix.Len(District))
	assert.Equal(t, 0, ix.Len(Upazila))
	assert.Empty(t, ix.Upazilas("47"))
}

func TestLoader_AllFail(t *testing.T) {
	ix, err := NewLoader(NewDirFetcher(fstest.MapFS{}), DefaultNames(), 0).Load(context.Background())

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Len(t, loadErr.Failed, 4)
	require.NotNil(t, ix)
	assert.True(t, ix.IsEmpty())
	assert.Empty(t, ix.Divisions())
}

func TestHTTPFetcher(t *testing.T) {
	compressed := gz(t, nestedJSON)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/bd-locations.json":
			_, _ = w.Write(compressed)
		case "/data/broken.json":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f, err := NewFetcher(srv.URL+"/data", srv.Client())
	require.NoError(t, err)

	ix, err := NewLoader(f, DefaultNames(), 0).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len(Division))

	_, err = f.Fetch(context.Background(), "missing.json")
	require.ErrorIs(t, err, ErrResourceNotFound)

	_, err = f.Fetch(context.Background(), "broken.json")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrResourceNotFound)
}

func TestNewFetcher_Dir(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFetcher(dir, nil)
	require.NoError(t, err)
	_, ok := f.(*DirFetcher)
	assert.True(t, ok)

	_, err = NewFetcher(dir+"/does-not-exist", nil)
	require.Error(t, err)
}

type countingFetcher struct {
	calls atomic.Int32
	next  Fetcher
}

func (f *countingFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	f.calls.Add(1)
	return f.next.Fetch(ctx, name)
}

func TestProvider(t *testing.T) {
	fsys := fstest.MapFS{}
	fetcher := &countingFetcher{next: NewDirFetcher(fsys)}
	p := NewProvider(NewLoader(fetcher, DefaultNames(), 0))

	assert.True(t, p.Index().IsEmpty())
	assert.False(t, p.Available())
	assert.True(t, p.LoadedAt().IsZero())

	err := p.Reload(context.Background())
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.False(t, p.Available())
	require.Error(t, p.Err())
	assert.False(t, p.LoadedAt().IsZero())
	assert.Positive(t, fetcher.calls.Load())

	fsys["bd-locations.json"] = &fstest.MapFile{Data: []byte(nestedJSON)}
	require.NoError(t, p.Reload(context.Background()))
	assert.True(t, p.Available())
	require.NoError(t, p.Err())
	assert.Equal(t, 2, p.Index().Len(Division))
}

func TestProvider_FailedReloadKeepsIndex(t *testing.T) {
	fsys := fstest.MapFS{"bd-locations.json": &fstest.MapFile{Data: []byte(nestedJSON)}}
	p := NewProvider(NewLoader(NewDirFetcher(fsys), DefaultNames(), 0))
	require.NoError(t, p.Reload(context.Background()))
	loadedAt := p.LoadedAt()

	t.Run("CancelledCaller", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, p.Reload(ctx))
		assert.True(t, p.Available())
		assert.Equal(t, 2, p.Index().Len(Division))
	})

	t.Run("SourceGone", func(t *testing.T) {
		delete(fsys, "bd-locations.json")
		err := p.Reload(context.Background())
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr))
		require.Error(t, p.Err())
		assert.False(t, p.Available())
		assert.Equal(t, 2, p.Index().Len(Division))
		assert.Equal(t, 2, p.Index().Len(Union))
		assert.False(t, p.LoadedAt().Before(loadedAt))
	})

	t.Run("PartialCoversLess", func(t *testing.T) {
		fsys["bd-divisions.json"] = &fstest.MapFile{Data: []byte(divisionsJSON)}
		require.Error(t, p.Reload(context.Background()))
		assert.Equal(t, 2, p.Index().Len(Union), "previous index kept")
	})

	t.Run("Recovered", func(t *testing.T) {
		fsys["bd-locations.json"] = &fstest.MapFile{Data: []byte(nestedJSON)}
		require.NoError(t, p.Reload(context.Background()))
		assert.True(t, p.Available())
		require.NoError(t, p.Err())
	})
}
