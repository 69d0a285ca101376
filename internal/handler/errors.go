package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/cart"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/checkout"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/coupon"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/geo"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/session"
)

// BadRequestError reports a malformed request body or parameter.
type BadRequestError struct {
	Field string
	Err   error
}

func (e *BadRequestError) Error() string {
	if e.Field == "" {
		return "malformed request: " + e.Err.Error()
	}
	return "malformed " + e.Field + ": " + e.Err.Error()
}

func (e *BadRequestError) Unwrap() error { return e.Err }

// errThumbnailHost rejects thumbnails served from hosts outside the
// configured image hosts.
var errThumbnailHost = errors.New("thumbnail host is not allowed")

// errNoTracking is returned before the session's first tracking query.
var errNoTracking = errors.New("no tracking query yet")

const (
	msgValidation        = "Please correct the highlighted fields"
	msgInvalidCoupon     = "Invalid coupon code"
	msgCouponExpired     = "This coupon has expired"
	msgCouponLimit       = "This coupon has reached its usage limit"
	msgCouponApplied     = "A coupon is already applied. Remove it first."
	msgSubmitting        = "Your order is already being submitted"
	msgSessionNotFound   = "Session not found or expired"
	msgItemNotFound      = "Item is not in the cart"
	msgInvalidQuantity   = "Quantity must be at least 1"
	msgInvalidItem       = "Item must have a product id and a non-negative price"
	msgCouponUnavailable = "Coupons are unavailable"
	msgUnknownLevel      = "Unknown location level"
)

type apiError struct {
	code    int
	message string
	fields  map[string]string
}

// mapError maps domain errors to API errors. ok is false for unexpected
// errors, which become 500.
func mapError(err error) (apiError, bool) {
	var (
		verr   *checkout.ValidationError
		locErr *geo.InvalidLocationError
		subErr *checkout.SubmissionError
		badReq *BadRequestError
	)
	switch {
	case errors.As(err, &badReq):
		e := apiError{code: http.StatusBadRequest, message: badReq.Error()}
		if badReq.Field != "" {
			e.fields = map[string]string{badReq.Field: badReq.Err.Error()}
		}
		return e, true
	case errors.As(err, &verr):
		return apiError{code: http.StatusUnprocessableEntity, message: msgValidation, fields: verr.Fields}, true
	case errors.Is(err, errThumbnailHost):
		return apiError{
			code:    http.StatusUnprocessableEntity,
			message: err.Error(),
			fields:  map[string]string{"thumbnail": err.Error()},
		}, true

	case errors.Is(err, session.ErrNotFound):
		return apiError{code: http.StatusNotFound, message: msgSessionNotFound}, true
	case errors.Is(err, cart.ErrItemNotFound):
		return apiError{code: http.StatusNotFound, message: msgItemNotFound}, true
	case errors.Is(err, errNoTracking):
		return apiError{code: http.StatusNotFound, message: err.Error()}, true

	case errors.Is(err, cart.ErrInvalidQuantity):
		return apiError{code: http.StatusUnprocessableEntity, message: msgInvalidQuantity}, true
	case errors.Is(err, cart.ErrInvalidItem):
		return apiError{code: http.StatusUnprocessableEntity, message: msgInvalidItem}, true
	case errors.Is(err, coupon.ErrInvalidCoupon):
		return apiError{code: http.StatusUnprocessableEntity, message: msgInvalidCoupon}, true
	case errors.Is(err, coupon.ErrCouponExpired):
		return apiError{code: http.StatusUnprocessableEntity, message: msgCouponExpired}, true
	case errors.Is(err, coupon.ErrCouponUsageLimitReached):
		return apiError{code: http.StatusUnprocessableEntity, message: msgCouponLimit}, true

	case errors.Is(err, checkout.ErrEmptyCart):
		return apiError{code: http.StatusConflict, message: checkout.EmptyCartMessage}, true
	case errors.As(err, &locErr):
		return apiError{code: http.StatusConflict, message: geo.InvalidLocationMessage}, true
	case errors.Is(err, cart.ErrCouponAlreadyApplied):
		return apiError{code: http.StatusConflict, message: msgCouponApplied}, true
	case errors.Is(err, cart.ErrSubmissionInProgress):
		return apiError{code: http.StatusConflict, message: msgSubmitting}, true

	case errors.As(err, &subErr):
		return apiError{code: http.StatusBadGateway, message: subErr.Message}, true
	default:
		return apiError{code: http.StatusInternalServerError, message: http.StatusText(http.StatusInternalServerError)}, false
	}
}

// writeErr writes the API error for err. Unexpected errors are logged.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := mapError(err)
	if !ok {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, e)
}

func writeError(w http.ResponseWriter, e apiError) {
	writeJSON(w, e.code, func(enc *jx.Encoder) {
		enc.Obj(func(enc *jx.Encoder) {
			enc.Field("code", func(enc *jx.Encoder) { enc.Int(e.code) })
			enc.Field("message", func(enc *jx.Encoder) { enc.Str(e.message) })
			if len(e.fields) > 0 {
				enc.Field("fields", func(enc *jx.Encoder) { encodeStringMap(enc, e.fields) })
			}
		})
	})
}

// writeJSON encodes a response body with fn and writes it with status code.
func writeJSON(w http.ResponseWriter, code int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
