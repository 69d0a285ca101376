// Package handler serves the storefront checkout JSON API.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/cart"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/checkout"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/coupon"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/geo"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/pricing"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/session"
)

// Geography is the reloadable location dataset, implemented by *geo.Provider.
type Geography interface {
	geo.Source
	Available() bool
	Reload(ctx context.Context) error
}

// Checkout submits a session's cart, implemented by *checkout.Service.
type Checkout interface {
	Submit(ctx context.Context, store *cart.Store, in checkout.Input) (string, error)
}

var _ Checkout = (*checkout.Service)(nil)

// Config holds storefront settings exposed to the UI.
type Config struct {
	// ImageHosts restricts the hosts of item thumbnails. Empty allows any.
	ImageHosts []string
	PixelID    string
	Shipping   pricing.ShippingTable
}

// Handler implements the API on top of the domain services.
type Handler struct {
	cfg        Config
	imageHosts map[string]struct{}

	geo      Geography
	sessions *session.Registry
	coupons  coupon.Validator
	checkout Checkout
}

// New creates a Handler.
func New(
	cfg Config,
	g Geography,
	sessions *session.Registry,
	coupons coupon.Validator,
	co Checkout,
) *Handler {
	hosts := make(map[string]struct{}, len(cfg.ImageHosts))
	for _, host := range cfg.ImageHosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			hosts[host] = struct{}{}
		}
	}
	return &Handler{
		cfg:        cfg,
		imageHosts: hosts,
		geo:        g,
		sessions:   sessions,
		coupons:    coupons,
		checkout:   co,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/storefront/config", h.getConfig)

	mux.HandleFunc("GET /api/geo/divisions", h.listDivisions)
	mux.HandleFunc("GET /api/geo/divisions/{id}/districts", h.listChildren(geo.District))
	mux.HandleFunc("GET /api/geo/districts/{id}/upazilas", h.listChildren(geo.Upazila))
	mux.HandleFunc("GET /api/geo/upazilas/{id}/unions", h.listChildren(geo.Union))
	mux.HandleFunc("POST /api/geo/reload", h.reloadGeo)

	mux.HandleFunc("POST /api/sessions", h.createSession)
	mux.HandleFunc("DELETE /api/sessions/{sid}", h.deleteSession)

	mux.HandleFunc("GET /api/sessions/{sid}/cart", h.getCart)
	mux.HandleFunc("DELETE /api/sessions/{sid}/cart", h.clearCart)
	mux.HandleFunc("POST /api/sessions/{sid}/cart/items", h.addItem)
	mux.HandleFunc("PATCH /api/sessions/{sid}/cart/items/{productId}", h.setQuantity)
	mux.HandleFunc("DELETE /api/sessions/{sid}/cart/items/{productId}", h.removeItem)
	mux.HandleFunc("POST /api/sessions/{sid}/coupon", h.applyCoupon)
	mux.HandleFunc("DELETE /api/sessions/{sid}/coupon", h.removeCoupon)
	mux.HandleFunc("PUT /api/sessions/{sid}/location/{level}", h.selectLocation)

	mux.HandleFunc("POST /api/sessions/{sid}/checkout", h.submit)

	mux.HandleFunc("GET /api/sessions/{sid}/tracking", h.track)
	mux.HandleFunc("GET /api/sessions/{sid}/tracking/latest", h.latestTracking)
}

// session resolves the {sid} path value, writing 404 when unknown.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(r.PathValue("sid"))
	if err != nil {
		writeErr(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) getConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeConfig(e, h.cfg)
	})
}
