package orderapi

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/order"
)

func encodePayload(e *jx.Encoder, p *order.Payload) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("orderItems", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range p.Items {
					encodeItem(e, it)
				}
			})
		})
		e.Field("orderTotal", func(e *jx.Encoder) { encodeDecimal(e, p.OrderTotal) })
		e.Field("subTotal", func(e *jx.Encoder) { encodeDecimal(e, p.SubTotal) })
		e.Field("discount", func(e *jx.Encoder) { encodeDecimal(e, p.Discount) })
		e.Field("shippingCharge", func(e *jx.Encoder) { encodeDecimal(e, p.ShippingCharge) })
		e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, p.Total) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("email", func(e *jx.Encoder) { e.Str(p.Email) })
		e.Field("phone", func(e *jx.Encoder) { e.Str(p.Phone) })
		e.Field("shippingAddress", func(e *jx.Encoder) {
			a := p.ShippingAddress
			e.Obj(func(e *jx.Encoder) {
				e.Field("line1", func(e *jx.Encoder) { e.Str(a.Line1) })
				e.Field("line2", func(e *jx.Encoder) { e.Str(a.Line2) })
				e.Field("country", func(e *jx.Encoder) { e.Str(a.Country) })
				e.Field("phone", func(e *jx.Encoder) { e.Str(a.Phone) })
				e.Field("division", func(e *jx.Encoder) { e.Str(a.Division) })
				e.Field("district", func(e *jx.Encoder) { e.Str(a.District) })
				e.Field("upazila", func(e *jx.Encoder) { e.Str(a.Upazila) })
			})
		})
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(p.PaymentMethod) })
		e.Field("hasCoupon", func(e *jx.Encoder) { e.Bool(p.HasCoupon) })
		if p.HasCoupon {
			e.Field("couponCode", func(e *jx.Encoder) { e.Str(p.CouponCode) })
		}
		e.Field("isGuestCheckout", func(e *jx.Encoder) { e.Bool(p.IsGuestCheckout) })
	})
}

func encodeItem(e *jx.Encoder, it order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, it.Price) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		optStr(e, "thumbnail", it.Thumbnail)
		optStr(e, "color", it.Color)
		optStr(e, "size", it.Size)
		optStr(e, "code", it.Code)
	})
}

func optStr(e *jx.Encoder, name, v string) {
	if v == "" {
		return
	}
	e.Field(name, func(e *jx.Encoder) { e.Str(v) })
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

// createResponse is the body of the order creation endpoint, affirmative or
// not.
type createResponse struct {
	Success bool
	ID      string
	Message string
}

func decodeCreateResponse(data []byte) (createResponse, error) {
	var r createResponse
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "success":
			r.Success, err = decodeBool(d)
		case "message":
			r.Message, err = decodeStr(d)
		case "data":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				if string(key) == "_id" {
					var err error
					r.ID, err = decodeID(d)
					return err
				}
				return d.Skip()
			})
		default:
			err = d.Skip()
		}
		return err
	})
	return r, err
}

// decodeMessage extracts the "message" field of an error body. Bodies that
// are not JSON objects yield "".
func decodeMessage(data []byte) string {
	var msg string
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return ""
	}
	_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) == "message" {
			var err error
			msg, err = decodeStr(d)
			return err
		}
		return d.Skip()
	})
	return msg
}

func decodeTrackResponse(data []byte) ([]order.TrackedOrder, error) {
	orders := []order.TrackedOrder{}
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "data" {
			return d.Skip()
		}
		switch d.Next() {
		case jx.Null:
			return d.Null()
		case jx.Object:
			// A single order instead of a list.
			o, err := decodeTrackedOrder(d)
			if err != nil {
				return err
			}
			orders = append(orders, o)
			return nil
		}
		return d.Arr(func(d *jx.Decoder) error {
			o, err := decodeTrackedOrder(d)
			if err != nil {
				return err
			}
			orders = append(orders, o)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func decodeTrackedOrder(d *jx.Decoder) (order.TrackedOrder, error) {
	var o order.TrackedOrder
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "_id":
			o.ID, err = decodeID(d)
		case "status":
			var s string
			s, err = decodeStr(d)
			o.Status = order.Status(s)
		case "createdAt":
			var t *time.Time
			t, err = decodeTime(d)
			if t != nil {
				o.CreatedAt = *t
			}
		case "processedAt":
			o.ProcessedAt, err = decodeTime(d)
		case "shippedAt":
			o.ShippedAt, err = decodeTime(d)
		case "deliveredAt":
			o.DeliveredAt, err = decodeTime(d)
		case "cancelledAt":
			o.CancelledAt, err = decodeTime(d)
		case "name":
			o.Name, err = decodeStr(d)
		case "email":
			o.Email, err = decodeStr(d)
		case "phone":
			o.Phone, err = decodeStr(d)
		case "isGuestCheckout":
			o.IsGuestCheckout, err = decodeBool(d)
		case "shippingAddress":
			o.ShippingAddress, err = decodeAddress(d)
		case "shippingMethod":
			o.ShippingMethod, err = decodeStr(d)
		case "trackingNumber":
			o.TrackingNumber, err = decodeStr(d)
		case "paymentMethod":
			o.PaymentMethod, err = decodeStr(d)
		case "orderItems":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeTrackedItem(d)
				if err != nil {
					return err
				}
				o.Items = append(o.Items, it)
				return nil
			})
		case "subTotal":
			o.SubTotal, err = decodeDecimal(d)
		case "discount":
			o.Discount, err = decodeDecimal(d)
		case "total":
			o.Total, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return o, errors.Wrap(err, "decode order")
	}
	return o, nil
}

func decodeTrackedItem(d *jx.Decoder) (order.TrackedItem, error) {
	var (
		it     order.TrackedItem
		lineID string
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "productId":
			it.ProductID, err = decodeID(d)
		case "_id":
			// Used only when the line carries no productId.
			lineID, err = decodeID(d)
		case "name":
			it.Name, err = decodeStr(d)
		case "price":
			it.Price, err = decodeDecimal(d)
		case "quantity":
			if d.Next() == jx.Null {
				return d.Null()
			}
			it.Quantity, err = d.Int()
		case "thumbnail":
			it.Thumbnail, err = decodeStr(d)
		case "color":
			it.Color, err = decodeStr(d)
		case "size":
			it.Size, err = decodeStr(d)
		case "code":
			it.Code, err = decodeStr(d)
		case "status":
			var s string
			s, err = decodeStr(d)
			it.Status = order.Status(s)
		default:
			err = d.Skip()
		}
		return err
	})
	if it.ProductID == "" {
		it.ProductID = lineID
	}
	return it, err
}

func decodeAddress(d *jx.Decoder) (order.ShippingAddress, error) {
	var a order.ShippingAddress
	if d.Next() == jx.Null {
		return a, d.Null()
	}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "line1":
			a.Line1, err = decodeStr(d)
		case "line2":
			a.Line2, err = decodeStr(d)
		case "country":
			a.Country, err = decodeStr(d)
		case "phone":
			a.Phone, err = decodeStr(d)
		case "division":
			a.Division, err = decodeStr(d)
		case "district":
			a.District, err = decodeStr(d)
		case "upazila":
			a.Upazila, err = decodeStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return a, err
}

func decodeStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func decodeBool(d *jx.Decoder) (bool, error) {
	if d.Next() == jx.Null {
		return false, d.Null()
	}
	return d.Bool()
}

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

// decodeDecimal accepts numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	}
}

func decodeTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
