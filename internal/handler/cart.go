package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/cart"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/coupon"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/session"
)

func writeCart(w http.ResponseWriter, code int, s *session.Session, st cart.State) {
	writeJSON(w, code, func(e *jx.Encoder) {
		encodeCart(e, st, s.Cart.Submitting())
	})
}

func (h *Handler) createSession(w http.ResponseWriter, _ *http.Request) {
	s := h.sessions.Create()
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Str(s.ID) })
			e.Field("cart", func(e *jx.Encoder) { encodeCart(e, s.Cart.State(), false) })
		})
	})
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	h.sessions.Delete(r.PathValue("sid"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeCart(w, http.StatusOK, s, s.Cart.State())
}

// dispatch applies a to the session cart and writes the new state.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, s *session.Session, a cart.Action) {
	st, err := s.Cart.Dispatch(r.Context(), a)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, s, st)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.dispatch(w, r, s, cart.Clear{})
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := readBody(w, r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	item, err := decodeLineItem(data)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := h.checkThumbnail(item.Thumbnail); err != nil {
		writeErr(w, r, err)
		return
	}
	h.dispatch(w, r, s, cart.AddItem{Item: item})
}

// checkThumbnail accepts site-relative paths and absolute http(s) URLs on a
// configured image host.
func (h *Handler) checkThumbnail(raw string) error {
	if raw == "" || len(h.imageHosts) == 0 {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errThumbnailHost
	}
	if u.Host == "" && u.Scheme == "" && strings.HasPrefix(u.Path, "/") && !strings.HasPrefix(raw, "//") {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errThumbnailHost
	}
	if _, ok := h.imageHosts[strings.ToLower(u.Hostname())]; !ok {
		return errThumbnailHost
	}
	return nil
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := readBody(w, r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	qty, err := decodeField(data, "quantity", decodeInt)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	h.dispatch(w, r, s, cart.SetQuantity{ProductID: r.PathValue("productId"), Quantity: qty})
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.dispatch(w, r, s, cart.RemoveItem{ProductID: r.PathValue("productId")})
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.coupons == nil {
		writeError(w, apiError{code: http.StatusServiceUnavailable, message: msgCouponUnavailable})
		return
	}
	data, err := readBody(w, r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	code, err := decodeField(data, "code", decodeStr)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	// Checked before the lookup so a second code is rejected without a query.
	if s.Cart.State().Coupon != nil {
		writeErr(w, r, cart.ErrCouponAlreadyApplied)
		return
	}
	c, err := h.coupons.Validate(r.Context(), code)
	if err != nil {
		if !isCouponRejection(err) {
			err = errors.Wrap(err, "validate coupon")
		}
		writeErr(w, r, err)
		return
	}
	h.dispatch(w, r, s, cart.ApplyCoupon{Coupon: *c})
}

func isCouponRejection(err error) bool {
	return errors.Is(err, coupon.ErrInvalidCoupon) ||
		errors.Is(err, coupon.ErrCouponExpired) ||
		errors.Is(err, coupon.ErrCouponUsageLimitReached)
}

func (h *Handler) removeCoupon(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.dispatch(w, r, s, cart.RemoveCoupon{})
}

// selectLocation handles PUT .../location/{level} with body {"id": "..."}.
// An empty id clears the level and everything below it.
func (h *Handler) selectLocation(w http.ResponseWriter, r *http.Request) {
	var newAction func(id string) cart.Action
	switch r.PathValue("level") {
	case "division":
		newAction = func(id string) cart.Action { return cart.SelectDivision{ID: id} }
	case "district":
		newAction = func(id string) cart.Action { return cart.SelectDistrict{ID: id} }
	case "upazila":
		newAction = func(id string) cart.Action { return cart.SelectUpazila{ID: id} }
	default:
		writeError(w, apiError{code: http.StatusNotFound, message: msgUnknownLevel})
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := readBody(w, r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	id, err := decodeField(data, "id", decodeID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	h.dispatch(w, r, s, newAction(id))
}

// decodeID accepts the id as a string or a number.
func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return d.Str()
	}
}
