package handler

import (
	"net/http"
	"net/url"

	"github.com/go-faster/jx"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/tracking"
)

// successPath is where the storefront shows a placed order.
const successPath = "/checkout/success/"

// submit places the session's order. The cart is cleared only on success;
// on any failure it is left as it was.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := readBody(w, r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	in, err := decodeCheckoutInput(data)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	id, err := h.checkout.Submit(r.Context(), s.Cart, in)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("orderId", func(e *jx.Encoder) { e.Str(id) })
			e.Field("redirect", func(e *jx.Encoder) { e.Str(successPath + url.PathEscape(id)) })
		})
	})
}

// resultStatus maps a tracking state to the response status. A query with
// no match is a successful request.
func resultStatus(s tracking.State) int {
	switch s {
	case tracking.StateFound, tracking.StateNotFound:
		return http.StatusOK
	case tracking.StateInvalid:
		return http.StatusUnprocessableEntity
	case tracking.StateSuperseded:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) track(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	res := s.Tracker.Query(r.Context(), r.URL.Query().Get("q"))
	writeJSON(w, resultStatus(res.State), func(e *jx.Encoder) {
		encodeResult(e, res)
	})
}

func (h *Handler) latestTracking(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	res, found := s.Tracker.Latest()
	if !found {
		writeErr(w, r, errNoTracking)
		return
	}
	writeJSON(w, resultStatus(res.State), func(e *jx.Encoder) {
		encodeResult(e, res)
	})
}
