// Package checkout validates a checkout request against the cart state,
// assembles the order payload and submits it to the order API.
package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/cart"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/geo"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/order"
)

// ErrEmptyCart is returned when checking out a cart without items.
var ErrEmptyCart = errors.New("cart is empty")

// EmptyCartMessage is the user-facing text for ErrEmptyCart.
const EmptyCartMessage = "Your cart is empty"

// DefaultSubmissionMessage is shown when the order API gives no reason.
const DefaultSubmissionMessage = "Failed to submit order"

// SubmissionError reports a failed or non-affirmative order creation. The
// cart is left untouched so the customer can retry.
type SubmissionError struct {
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Telemetry provides the otel providers used by the service.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// Service submits orders.
type Service struct {
	api      order.API
	geo      geo.Source
	validate *validator.Validate

	tracer    trace.Tracer
	submitted metric.Int64Counter
}

// NewService creates a checkout service.
func NewService(api order.API, src geo.Source, t Telemetry) (*Service, error) {
	meter := t.MeterProvider().Meter("checkout")
	submitted, err := meter.Int64Counter("checkout.submissions",
		metric.WithDescription("Order submissions by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create submissions counter")
	}
	return &Service{
		api:       api,
		geo:       src,
		validate:  newValidator(),
		tracer:    t.TracerProvider().Tracer("checkout"),
		submitted: submitted,
	}, nil
}

// Submit places an order for the cart held by store and returns the new
// order id. Steps run strictly in sequence: validation, preconditions,
// submission, then clearing the cart. Nothing reaches the network unless
// validation and preconditions pass, and the cart is cleared only after an
// affirmative response.
func (s *Service) Submit(ctx context.Context, store *cart.Store, in Input) (id string, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Submit")
	defer func() {
		outcome := "ok"
		if rerr != nil {
			outcome = outcomeOf(rerr)
			span.RecordError(rerr)
			span.SetStatus(codes.Error, outcome)
		}
		s.submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		span.End()
	}()

	if err := store.BeginSubmit(); err != nil {
		return "", err
	}
	defer store.EndSubmit()

	in = in.normalize()
	if err := validateInput(s.validate, in); err != nil {
		return "", err
	}

	st := store.State()
	if st.IsEmpty() {
		return "", ErrEmptyCart
	}
	loc, err := s.geo.Index().Resolve(st.Location)
	if err != nil {
		return "", err
	}

	payload := AssemblePayload(st, loc, in)
	span.SetAttributes(
		attribute.Int("checkout.items", len(payload.Items)),
		attribute.String("checkout.total", payload.Total.String()),
		attribute.Bool("checkout.coupon", payload.HasCoupon),
	)

	lg := zctx.From(ctx)
	created, err := s.api.Create(ctx, payload)
	if err != nil {
		msg := DefaultSubmissionMessage
		var apiErr *order.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		lg.Warn("Order submission failed", zap.String("message", msg), zap.Error(err))
		return "", &SubmissionError{Message: msg, Err: err}
	}
	if created == nil || created.ID == "" {
		lg.Warn("Order submission not acknowledged")
		return "", &SubmissionError{Message: DefaultSubmissionMessage}
	}

	store.ClearSubmitted(ctx)
	lg.Info("Order submitted",
		zap.String("order_id", created.ID),
		zap.Stringer("total", payload.Total),
	)
	return created.ID, nil
}

func outcomeOf(err error) string {
	var (
		verr   *ValidationError
		locErr *geo.InvalidLocationError
		subErr *SubmissionError
	)
	switch {
	case errors.As(err, &verr):
		return "invalid_input"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.As(err, &locErr):
		return "invalid_location"
	case errors.Is(err, cart.ErrSubmissionInProgress):
		return "in_progress"
	case errors.As(err, &subErr):
		return "rejected"
	default:
		return "error"
	}
}

// AssemblePayload builds the order creation body from a cart snapshot, the
// resolved location and the form input. The shipping phone defaults to the
// contact phone.
func AssemblePayload(st cart.State, loc geo.Location, in Input) *order.Payload {
	items := make([]order.Item, 0, len(st.Items))
	for _, li := range st.Items {
		items = append(items, order.Item{
			ProductID: li.ProductID,
			Name:      li.Name,
			Price:     li.Price,
			Quantity:  li.Quantity,
			Thumbnail: li.Thumbnail,
			Color:     li.Color,
			Size:      li.Size,
			Code:      li.Code,
		})
	}

	shippingPhone := in.ShippingPhone
	if shippingPhone == "" {
		shippingPhone = in.Phone
	}

	p := &order.Payload{
		Items:          items,
		OrderTotal:     st.Summary.Total,
		SubTotal:       st.Summary.SubTotal,
		Discount:       st.Summary.Discount,
		ShippingCharge: st.Summary.ShippingCharge,
		Total:          st.Summary.Total,

		Name:  in.Name,
		Email: in.Email,
		Phone: in.Phone,
		ShippingAddress: order.ShippingAddress{
			Line1:    in.AddressLine1,
			Line2:    in.AddressLine2,
			Country:  in.Country,
			Phone:    shippingPhone,
			Division: loc.Division.Name,
			District: loc.District.Name,
			Upazila:  loc.Upazila.Name,
		},
		PaymentMethod:   order.PaymentCashOnDelivery,
		IsGuestCheckout: in.IsGuestCheckout,
	}
	if st.Coupon != nil {
		p.HasCoupon = true
		p.CouponCode = st.Coupon.Code
	}
	return p
}
