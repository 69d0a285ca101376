package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/cart"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/checkout"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/coupon"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/geo"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/order"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/pricing"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/tracking"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/session"
)

func testDataset() geo.Dataset {
	return geo.Dataset{
		Divisions: []geo.Node{
			{Level: geo.Division, ID: "2", Name: "Chattogram", AltName: "চট্টগ্রাম"},
			{Level: geo.Division, ID: "3", Name: "Dhaka", AltName: "ঢাকা"},
		},
		Districts: []geo.Node{
			{Level: geo.District, ID: "1", Name: "Dhaka", ParentID: "3"},
			{Level: geo.District, ID: "10", Name: "Cumilla", ParentID: "2"},
		},
		Upazilas: []geo.Node{
			{Level: geo.Upazila, ID: "100", Name: "Savar", ParentID: "1"},
			{Level: geo.Upazila, ID: "200", Name: "Laksam", ParentID: "10"},
		},
		Unions: []geo.Node{
			{Level: geo.Union, ID: "1000", Name: "Ashulia", ParentID: "100"},
		},
	}
}

type fakeGeo struct {
	mu        sync.Mutex
	ix        *geo.Index
	available bool
	reloaded  int
	onReload  func(g *fakeGeo) error
}

func (g *fakeGeo) Index() *geo.Index {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ix
}

func (g *fakeGeo) Available() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.available
}

func (g *fakeGeo) Reload(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reloaded++
	if g.onReload == nil {
		return nil
	}
	return g.onReload(g)
}

type fakeOrders struct {
	mu        sync.Mutex
	creates   []*order.Payload
	createID  string
	createErr error
	tracks    []string
	tracked   []order.TrackedOrder
	trackErr  error
}

func (f *fakeOrders) Create(_ context.Context, p *order.Payload) (*order.Created, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, p)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &order.Created{ID: f.createID}, nil
}

func (f *fakeOrders) Track(_ context.Context, identifier string) ([]order.TrackedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, identifier)
	return f.tracked, f.trackErr
}

type fakeCoupons map[string]coupon.Coupon

func (f fakeCoupons) Validate(_ context.Context, code string) (*coupon.Coupon, error) {
	code = coupon.NormalizeCode(code)
	if code == "EXPIRED" {
		return nil, coupon.ErrCouponExpired
	}
	c, ok := f[code]
	if !ok {
		return nil, coupon.ErrInvalidCoupon
	}
	return &c, nil
}

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

type fixture struct {
	t        *testing.T
	geo      *fakeGeo
	orders   *fakeOrders
	sessions *session.Registry
	mux      *http.ServeMux
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		t:      t,
		geo:    &fakeGeo{ix: geo.NewIndex(testDataset()), available: true},
		orders: &fakeOrders{createID: "66f1a2b3"},
	}
	if cfg.Shipping == (pricing.ShippingTable{}) {
		cfg.Shipping = pricing.DefaultShipping()
	}
	f.sessions = session.NewRegistry(time.Hour, func() (*cart.Store, *tracking.Tracker) {
		return cart.NewStore(f.geo, cfg.Shipping), tracking.NewTracker(f.orders)
	})
	co, err := checkout.NewService(f.orders, f.geo, noopTelemetry{})
	require.NoError(t, err)

	coupons := fakeCoupons{
		"TAKA50": {Code: "TAKA50", DiscountType: coupon.DiscountFlat, Discount: decimal.NewFromInt(50)},
		"EID10":  {Code: "EID10", DiscountType: coupon.DiscountPercentage, Discount: decimal.NewFromInt(10)},
	}
	f.mux = http.NewServeMux()
	New(cfg, f.geo, f.sessions, coupons, co).Register(f.mux)
	return f
}

type response struct {
	Code int
	Body map[string]any
}

func (f *fixture) do(method, path, body string) response {
	f.t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, r)

	res := response{Code: w.Code}
	if w.Body.Len() > 0 {
		require.Equal(f.t, "application/json", w.Header().Get("Content-Type"))
		require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &res.Body), w.Body.String())
	}
	return res
}

func (f *fixture) newSession() string {
	f.t.Helper()
	res := f.do(http.MethodPost, "/api/sessions", "")
	require.Equal(f.t, http.StatusCreated, res.Code)
	id, _ := res.Body["id"].(string)
	require.NotEmpty(f.t, id)
	return id
}

func (f *fixture) mustOK(method, path, body string) map[string]any {
	f.t.Helper()
	res := f.do(method, path, body)
	require.Equal(f.t, http.StatusOK, res.Code, "%s %s: %v", method, path, res.Body)
	return res.Body
}

func (f *fixture) selectLocation(sid, division, district, upazila string) map[string]any {
	f.t.Helper()
	base := "/api/sessions/" + sid + "/location/"
	f.mustOK(http.MethodPut, base+"division", `{"id":"`+division+`"}`)
	f.mustOK(http.MethodPut, base+"district", `{"id":"`+district+`"}`)
	return f.mustOK(http.MethodPut, base+"upazila", `{"id":"`+upazila+`"}`)
}

func summary(body map[string]any) map[string]any {
	s, _ := body["summary"].(map[string]any)
	return s
}

const validCheckout = `{
	"name": "Rahim Uddin",
	"email": "rahim@example.com",
	"phone": "+8801842236261",
	"addressLine1": "House 12, Road 5",
	"country": "Bangladesh"
}`

func TestConfig(t *testing.T) {
	f := newFixture(t, Config{ImageHosts: []string{"res.cloudinary.com"}, PixelID: "123456"})
	body := f.mustOK(http.MethodGet, "/api/storefront/config", "")

	assert.Equal(t, []any{"res.cloudinary.com"}, body["imageHosts"])
	assert.Equal(t, "123456", body["pixelId"])
	assert.Equal(t, "Bangladesh", body["defaultCountry"])
	assert.Equal(t, "Cash On Delivery", body["paymentMethod"])
	shipping := body["shipping"].(map[string]any)
	assert.Equal(t, "Dhaka", shipping["privilegedDivision"])
	assert.EqualValues(t, 80, shipping["inside"])
	assert.EqualValues(t, 150, shipping["outside"])
}

func TestGeography(t *testing.T) {
	f := newFixture(t, Config{})

	tests := []struct {
		path  string
		names []string
	}{
		{path: "/api/geo/divisions", names: []string{"Chattogram", "Dhaka"}},
		{path: "/api/geo/divisions/3/districts", names: []string{"Dhaka"}},
		{path: "/api/geo/districts/10/upazilas", names: []string{"Laksam"}},
		{path: "/api/geo/upazilas/100/unions", names: []string{"Ashulia"}},
		{path: "/api/geo/divisions/99/districts", names: nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			body := f.mustOK(http.MethodGet, tt.path, "")
			assert.Equal(t, true, body["available"])
			assert.NotContains(t, body, "message")

			items := body["items"].([]any)
			var names []string
			for _, it := range items {
				names = append(names, it.(map[string]any)["name"].(string))
			}
			assert.Equal(t, tt.names, names)
		})
	}

	body := f.mustOK(http.MethodGet, "/api/geo/divisions", "")
	first := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "2", first["id"])
	assert.Equal(t, "চট্টগ্রাম", first["bnName"])
}

func TestGeography_Unavailable(t *testing.T) {
	f := newFixture(t, Config{})
	f.geo.ix = geo.Empty()
	f.geo.available = false

	body := f.mustOK(http.MethodGet, "/api/geo/divisions", "")
	assert.Equal(t, false, body["available"])
	assert.Equal(t, geo.LoadFailedMessage, body["message"])
	assert.Empty(t, body["items"])

	f.geo.onReload = func(g *fakeGeo) error {
		g.ix = geo.NewIndex(testDataset())
		g.available = true
		return nil
	}
	body = f.mustOK(http.MethodPost, "/api/geo/reload", "")
	assert.Equal(t, true, body["available"])
	assert.Len(t, body["items"], 2)
	assert.Equal(t, 1, f.geo.reloaded)
}

func TestGeography_ReloadPartial(t *testing.T) {
	f := newFixture(t, Config{})
	f.geo.onReload = func(g *fakeGeo) error {
		g.ix = geo.NewIndex(geo.Dataset{Divisions: testDataset().Divisions})
		g.available = false
		return &geo.LoadError{
			Nested: errors.New("not found"),
			Failed: map[string]error{"bd-unions.json": errors.New("timeout")},
		}
	}
	body := f.mustOK(http.MethodPost, "/api/geo/reload", "")
	assert.Equal(t, false, body["available"])
	assert.Equal(t, geo.LoadFailedMessage, body["message"])
	assert.Len(t, body["items"], 2)
}

func TestCart_DhakaScenario(t *testing.T) {
	f := newFixture(t, Config{})
	sid := f.newSession()

	body := f.mustOK(http.MethodPost, "/api/sessions/"+sid+"/cart/items",
		`{"productId":"p1","name":"Panjabi","price":100,"quantity":2,"size":"XL"}`)
	assert.EqualValues(t, 2, body["quantity"])
	assert.EqualValues(t, 150, summary(body)["shippingCharge"], "outside rate before a division is chosen")

	body = f.selectLocation(sid, "3", "1", "100")
	s := summary(body)
	assert.EqualValues(t, 200, s["subTotal"])
	assert.EqualValues(t, 0, s["discount"])
	assert.EqualValues(t, 80, s["shippingCharge"])
	assert.EqualValues(t, 280, s["total"])
	assert.Equal(t, false, s["negative"])

	loc := body["location"].(map[string]any)
	assert.Equal(t, "3", loc["divisionId"])
	assert.Equal(t, "100", loc["upazilaId"])
	assert.Len(t, loc["districts"], 1)
}

func TestCart_FlatCouponChattogram(t *testing.T) {
	f := newFixture(t, Config{})
	sid := f.newSession()
	base := "/api/sessions/" + sid

	f.mustOK(http.MethodPost, base+"/cart/items", `{"productId":"p1","name":"Panjabi","price":"100","quantity":2}`)
	body := f.mustOK(http.MethodPost, base+"/coupon", `{"code":"taka50"}`)
	assert.Equal(t, "TAKA50", body["coupon"].(map[string]any)["code"])

	body = f.selectLocation(sid, "2", "10", "200")
	s := summary(body)
	assert.EqualValues(t, 200, s["subTotal"])
	assert.EqualValues(t, 50, s["discount"])
	assert.EqualValues(t, 150, s["shippingCharge"])
	assert.EqualValues(t, 300, s["total"])

	res := f.do(http.MethodPost, base+"/coupon", `{"code":"EID10"}`)
	assert.Equal(t, http.StatusConflict, res.Code)

	body = f.mustOK(http.MethodDelete, base+"/coupon", "")
	assert.Nil(t, body["coupon"])
	assert.EqualValues(t, 350, summary(body)["total"])
}

func TestCart_Errors(t *testing.T) {
	f := newFixture(t, Config{ImageHosts: []string{"res.cloudinary.com"}})
	sid := f.newSession()
	base := "/api/sessions/" + sid
	f.mustOK(http.MethodPost, base+"/cart/items", `{"productId":"p1","name":"Cap","price":99}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
		field  string
	}{
		{name: "unknown session", method: http.MethodGet, path: "/api/sessions/nope/cart", code: http.StatusNotFound},
		{name: "malformed body", method: http.MethodPost, path: base + "/cart/items", body: `{"productId":`, code: http.StatusBadRequest},
		{name: "empty body", method: http.MethodPost, path: base + "/cart/items", code: http.StatusBadRequest},
		{name: "bad price", method: http.MethodPost, path: base + "/cart/items", body: `{"productId":"p2","price":"abc"}`, code: http.StatusBadRequest, field: "price"},
		{name: "negative price", method: http.MethodPost, path: base + "/cart/items", body: `{"productId":"p2","price":-1}`, code: http.StatusUnprocessableEntity},
		{name: "missing product id", method: http.MethodPost, path: base + "/cart/items", body: `{"price":10}`, code: http.StatusUnprocessableEntity},
		{name: "foreign thumbnail", method: http.MethodPost, path: base + "/cart/items", body: `{"productId":"p2","price":10,"thumbnail":"https://evil.example.com/a.png"}`, code: http.StatusUnprocessableEntity, field: "thumbnail"},
		{name: "zero quantity", method: http.MethodPatch, path: base + "/cart/items/p1", body: `{"quantity":0}`, code: http.StatusUnprocessableEntity},
		{name: "quantity missing", method: http.MethodPatch, path: base + "/cart/items/p1", body: `{}`, code: http.StatusBadRequest, field: "quantity"},
		{name: "item not in cart", method: http.MethodDelete, path: base + "/cart/items/p9", code: http.StatusNotFound},
		{name: "unknown coupon", method: http.MethodPost, path: base + "/coupon", body: `{"code":"BOGUS"}`, code: http.StatusUnprocessableEntity},
		{name: "expired coupon", method: http.MethodPost, path: base + "/coupon", body: `{"code":"expired"}`, code: http.StatusUnprocessableEntity},
		{name: "district before division", method: http.MethodPut, path: base + "/location/district", body: `{"id":"1"}`, code: http.StatusConflict},
		{name: "unknown level", method: http.MethodPut, path: base + "/location/union", body: `{"id":"1000"}`, code: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.do(tt.method, tt.path, tt.body)
			require.Equal(t, tt.code, res.Code, res.Body)
			if res.Body == nil {
				return
			}
			assert.EqualValues(t, tt.code, res.Body["code"])
			assert.NotEmpty(t, res.Body["message"])
			if tt.field != "" {
				assert.Contains(t, res.Body["fields"], tt.field)
			}
		})
	}

	body := f.mustOK(http.MethodGet, base+"/cart", "")
	assert.Len(t, body["items"], 1, "failed actions leave the cart unchanged")
}

func TestCart_Thumbnails(t *testing.T) {
	f := newFixture(t, Config{ImageHosts: []string{"res.cloudinary.com"}})
	sid := f.newSession()

	for _, thumb := range []string{
		"https://res.cloudinary.com/demo/image/upload/p1.jpg",
		"https://RES.cloudinary.com/p2.jpg",
		"/images/p3.jpg",
	} {
		res := f.do(http.MethodPost, "/api/sessions/"+sid+"/cart/items",
			`{"productId":"`+thumb+`","price":1,"thumbnail":"`+thumb+`"}`)
		assert.Equal(t, http.StatusOK, res.Code, thumb)
	}
	for _, thumb := range []string{"//evil.example.com/p.jpg", "ftp://res.cloudinary.com/p.jpg", "javascript:alert(1)"} {
		res := f.do(http.MethodPost, "/api/sessions/"+sid+"/cart/items",
			`{"productId":"x","price":1,"thumbnail":"`+thumb+`"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, res.Code, thumb)
	}
}

func TestCart_QuantityAndClear(t *testing.T) {
	f := newFixture(t, Config{})
	sid := f.newSession()
	base := "/api/sessions/" + sid

	f.mustOK(http.MethodPost, base+"/cart/items", `{"productId":"p1","price":100}`)
	body := f.mustOK(http.MethodPost, base+"/cart/items", `{"productId":"p1","price":100,"quantity":2}`)
	assert.EqualValues(t, 3, body["quantity"], "same product merges")

	body = f.mustOK(http.MethodPatch, base+"/cart/items/p1", `{"quantity":5}`)
	item := body["items"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 5, item["quantity"])
	assert.EqualValues(t, 500, item["total"])

	body = f.mustOK(http.MethodDelete, base+"/cart", "")
	assert.Empty(t, body["items"])

	res := f.do(http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, base+"/cart", "").Code)
}

func TestCheckout_Success(t *testing.T) {
	f := newFixture(t, Config{})
	sid := f.newSession()
	base := "/api/sessions/" + sid

	f.mustOK(http.MethodPost, base+"/cart/items", `{"productId":"p1","name":"Panjabi","price":100,"quantity":2}`)
	f.mustOK(http.MethodPost, base+"/coupon", `{"code":"TAKA50"}`)
	f.selectLocation(sid, "3", "1", "100")

	res := f.do(http.MethodPost, base+"/checkout", validCheckout)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	assert.Equal(t, "66f1a2b3", res.Body["orderId"])
	assert.Equal(t, "/checkout/success/66f1a2b3", res.Body["redirect"])

	require.Len(t, f.orders.creates, 1)
	p := f.orders.creates[0]
	assert.Equal(t, "Dhaka", p.ShippingAddress.Division)
	assert.Equal(t, "Savar", p.ShippingAddress.Upazila)
	assert.Equal(t, "+8801842236261", p.ShippingAddress.Phone)
	assert.True(t, p.IsGuestCheckout)
	assert.True(t, p.HasCoupon)
	assert.Equal(t, "TAKA50", p.CouponCode)
	assert.True(t, decimal.NewFromInt(230).Equal(p.Total))

	body := f.mustOK(http.MethodGet, base+"/cart", "")
	assert.Empty(t, body["items"])
	assert.Nil(t, body["coupon"])
	assert.Equal(t, "", body["location"].(map[string]any)["divisionId"])
}

func TestCheckout_Failures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture, sid string)
		body      string
		code      int
		message   string
		fields    []string
		apiCalled bool
	}{
		{
			name:    "empty cart",
			setup:   func(*fixture, string) {},
			body:    validCheckout,
			code:    http.StatusConflict,
			message: "Your cart is empty",
		},
		{
			name: "invalid input",
			setup: func(f *fixture, sid string) {
				f.mustOK(http.MethodPost, "/api/sessions/"+sid+"/cart/items", `{"productId":"p1","price":100}`)
			},
			body:   `{"name":"","phone":"123","addressLine1":"x","country":"Bangladesh","email":"nope"}`,
			code:   http.StatusUnprocessableEntity,
			fields: []string{"name", "phone", "email"},
		},
		{
			name: "location incomplete",
			setup: func(f *fixture, sid string) {
				f.mustOK(http.MethodPost, "/api/sessions/"+sid+"/cart/items", `{"productId":"p1","price":100}`)
				f.mustOK(http.MethodPut, "/api/sessions/"+sid+"/location/division", `{"id":"3"}`)
			},
			body:    validCheckout,
			code:    http.StatusConflict,
			message: geo.InvalidLocationMessage,
		},
		{
			name: "order api rejects",
			setup: func(f *fixture, sid string) {
				f.mustOK(http.MethodPost, "/api/sessions/"+sid+"/cart/items", `{"productId":"p1","price":100}`)
				f.selectLocation(sid, "3", "1", "100")
				f.orders.createErr = &order.APIError{StatusCode: 400, Message: "Insufficient stock"}
			},
			body:      validCheckout,
			code:      http.StatusBadGateway,
			message:   "Insufficient stock",
			apiCalled: true,
		},
		{
			name: "order api unreachable",
			setup: func(f *fixture, sid string) {
				f.mustOK(http.MethodPost, "/api/sessions/"+sid+"/cart/items", `{"productId":"p1","price":100}`)
				f.selectLocation(sid, "3", "1", "100")
				f.orders.createErr = errors.New("dial tcp: connection refused")
			},
			body:      validCheckout,
			code:      http.StatusBadGateway,
			message:   checkout.DefaultSubmissionMessage,
			apiCalled: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			sid := f.newSession()
			tt.setup(f, sid)
			before := f.mustOK(http.MethodGet, "/api/sessions/"+sid+"/cart", "")

			res := f.do(http.MethodPost, "/api/sessions/"+sid+"/checkout", tt.body)
			require.Equal(t, tt.code, res.Code, res.Body)
			if tt.message != "" {
				assert.Equal(t, tt.message, res.Body["message"])
			}
			for _, field := range tt.fields {
				assert.Contains(t, res.Body["fields"], field)
			}
			assert.Equal(t, tt.apiCalled, len(f.orders.creates) > 0)

			after := f.mustOK(http.MethodGet, "/api/sessions/"+sid+"/cart", "")
			assert.Equal(t, before, after, "cart is preserved on failure")
		})
	}
}

func TestTracking(t *testing.T) {
	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	processed := created.Add(24 * time.Hour)

	f := newFixture(t, Config{})
	sid := f.newSession()
	base := "/api/sessions/" + sid + "/tracking"

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, base+"/latest", "").Code)

	res := f.do(http.MethodGet, base+"?q=abc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Equal(t, "invalid", res.Body["state"])
	assert.Equal(t, tracking.MessageIdentifierTooShort, res.Body["message"])
	assert.Empty(t, f.orders.tracks)

	res = f.do(http.MethodGet, base+"?q=ORD-404", "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "not_found", res.Body["state"])
	assert.Equal(t, tracking.MessageNotFound, res.Body["message"])
	assert.Empty(t, res.Body["orders"])

	f.orders.tracked = []order.TrackedOrder{{
		ID:          "66f1a2b3",
		Status:      order.StatusProcessing,
		CreatedAt:   created,
		ProcessedAt: &processed,
		Name:        "Rahim",
		Items: []order.TrackedItem{
			{Item: order.Item{ProductID: "p1", Name: "Panjabi", Price: decimal.NewFromInt(100), Quantity: 2}},
		},
		Total: decimal.NewFromInt(280),
	}}
	res = f.do(http.MethodGet, base+"?q=+66f1a2b3+", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "found", res.Body["state"])
	assert.Equal(t, []string{"ORD-404", "66f1a2b3"}, f.orders.tracks)

	orders := res.Body["orders"].([]any)
	require.Len(t, orders, 1)
	o := orders[0].(map[string]any)
	assert.Equal(t, "Processing", o["statusLabel"])
	assert.EqualValues(t, 33, o["progress"])
	assert.Equal(t, "2024-01-08T10:00:00Z", o["estimatedDelivery"])
	assert.Equal(t, order.DefaultShippingMethod, o["shippingMethod"])
	assert.NotContains(t, o, "terminal")
	steps := o["steps"].([]any)
	require.Len(t, steps, 4)
	assert.Equal(t, "In progress", steps[1].(map[string]any)["note"])

	latest := f.mustOK(http.MethodGet, base+"/latest", "")
	assert.Equal(t, "found", latest["state"])

	f.orders.trackErr = errors.New("unreachable")
	res = f.do(http.MethodGet, base+"?q=66f1a2b3", "")
	assert.Equal(t, http.StatusBadGateway, res.Code)
	assert.Equal(t, "failed", res.Body["state"])
	assert.Equal(t, tracking.MessageFailed, res.Body["message"])
}

func TestTracking_Terminal(t *testing.T) {
	cancelled := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, Config{})
	f.orders.tracked = []order.TrackedOrder{{
		ID:          "66f1a2b3",
		Status:      order.StatusCancelled,
		CreatedAt:   cancelled.Add(-48 * time.Hour),
		CancelledAt: &cancelled,
	}}
	sid := f.newSession()

	body := f.mustOK(http.MethodGet, "/api/sessions/"+sid+"/tracking?q=66f1a2b3", "")
	o := body["orders"].([]any)[0].(map[string]any)
	assert.Empty(t, o["steps"])
	assert.Nil(t, o["estimatedDelivery"])
	terminal := o["terminal"].(map[string]any)
	assert.Equal(t, "This order has been cancelled", terminal["message"])
	assert.Equal(t, "2024-01-03T09:00:00Z", terminal["at"])
}
