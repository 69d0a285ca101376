package handler

import (
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/cart"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/checkout"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/geo"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/order"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/pricing"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/tracking"
)

const maxRequestBody = 1 << 20

// readBody reads a JSON request body of at most maxRequestBody bytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		return nil, &BadRequestError{Err: err}
	}
	if len(data) == 0 {
		return nil, &BadRequestError{Err: errors.New("empty body")}
	}
	return data, nil
}

func decodeObject(data []byte, fn func(d *jx.Decoder, key string) error) error {
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, string(key))
	})
	if err != nil {
		var bad *BadRequestError
		if errors.As(err, &bad) {
			return err
		}
		return &BadRequestError{Err: err}
	}
	return nil
}

func decodeStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// decodeDecimal accepts numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Zero, errors.New("expected number")
	}
}

// decodeLineItem decodes an item to add. Quantity defaults to 1.
func decodeLineItem(data []byte) (pricing.LineItem, error) {
	it := pricing.LineItem{Quantity: 1}
	err := decodeObject(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			it.ProductID, err = decodeStr(d)
		case "name":
			it.Name, err = decodeStr(d)
		case "price":
			if it.Price, err = decodeDecimal(d); err != nil {
				return &BadRequestError{Field: "price", Err: err}
			}
		case "quantity":
			if it.Quantity, err = d.Int(); err != nil {
				return &BadRequestError{Field: "quantity", Err: err}
			}
		case "thumbnail":
			it.Thumbnail, err = decodeStr(d)
		case "color":
			it.Color, err = decodeStr(d)
		case "size":
			it.Size, err = decodeStr(d)
		case "code":
			it.Code, err = decodeStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return it, err
}

// decodeField decodes the single named field of a small request body.
func decodeField[T any](data []byte, name string, read func(d *jx.Decoder) (T, error)) (T, error) {
	var (
		v     T
		found bool
	)
	err := decodeObject(data, func(d *jx.Decoder, key string) error {
		if key != name {
			return d.Skip()
		}
		var err error
		if v, err = read(d); err != nil {
			return &BadRequestError{Field: name, Err: err}
		}
		found = true
		return nil
	})
	if err != nil {
		return v, err
	}
	if !found {
		return v, &BadRequestError{Field: name, Err: errors.New("required")}
	}
	return v, nil
}

func decodeInt(d *jx.Decoder) (int, error) { return d.Int() }

func decodeCheckoutInput(data []byte) (checkout.Input, error) {
	in := checkout.Input{IsGuestCheckout: true}
	err := decodeObject(data, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			in.Name, err = decodeStr(d)
		case "email":
			in.Email, err = decodeStr(d)
		case "phone":
			in.Phone, err = decodeStr(d)
		case "addressLine1":
			in.AddressLine1, err = decodeStr(d)
		case "addressLine2":
			in.AddressLine2, err = decodeStr(d)
		case "country":
			in.Country, err = decodeStr(d)
		case "shippingPhone":
			in.ShippingPhone, err = decodeStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return in, err
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

func encodeTime(e *jx.Encoder, t *time.Time) {
	if t == nil || t.IsZero() {
		e.Null()
		return
	}
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeStringMap(e *jx.Encoder, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	e.Obj(func(e *jx.Encoder) {
		for _, k := range keys {
			e.Field(k, func(e *jx.Encoder) { e.Str(m[k]) })
		}
	})
}

func optStr(e *jx.Encoder, name, v string) {
	if v != "" {
		e.Field(name, func(e *jx.Encoder) { e.Str(v) })
	}
}

func encodeConfig(e *jx.Encoder, cfg Config) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("imageHosts", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, h := range cfg.ImageHosts {
					e.Str(h)
				}
			})
		})
		e.Field("pixelId", func(e *jx.Encoder) { e.Str(cfg.PixelID) })
		e.Field("defaultCountry", func(e *jx.Encoder) { e.Str(checkout.DefaultCountry) })
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(order.PaymentCashOnDelivery) })
		e.Field("shipping", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("privilegedDivision", func(e *jx.Encoder) { e.Str(cfg.Shipping.PrivilegedDivision) })
				e.Field("inside", func(e *jx.Encoder) { encodeDecimal(e, cfg.Shipping.Inside) })
				e.Field("outside", func(e *jx.Encoder) { encodeDecimal(e, cfg.Shipping.Outside) })
			})
		})
	})
}

func encodeNodes(e *jx.Encoder, nodes []geo.Node) {
	e.Arr(func(e *jx.Encoder) {
		for _, n := range nodes {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(n.ID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(n.Name) })
				optStr(e, "bnName", n.AltName)
				optStr(e, "parentId", n.ParentID)
			})
		}
	})
}

// encodeOptions writes the body of every geography listing.
func encodeOptions(e *jx.Encoder, available bool, nodes []geo.Node) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("available", func(e *jx.Encoder) { e.Bool(available) })
		if !available {
			e.Field("message", func(e *jx.Encoder) { e.Str(geo.LoadFailedMessage) })
		}
		e.Field("items", func(e *jx.Encoder) { encodeNodes(e, nodes) })
	})
}

func encodeCart(e *jx.Encoder, st cart.State, submitting bool) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range st.Items {
					encodeLineItem(e, it)
				}
			})
		})
		e.Field("quantity", func(e *jx.Encoder) { e.Int(st.Quantity()) })
		e.Field("coupon", func(e *jx.Encoder) {
			if st.Coupon == nil {
				e.Null()
				return
			}
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Str(st.Coupon.Code) })
				e.Field("discountType", func(e *jx.Encoder) { e.Str(string(st.Coupon.DiscountType)) })
				e.Field("discount", func(e *jx.Encoder) { encodeDecimal(e, st.Coupon.Discount) })
			})
		})
		e.Field("location", func(e *jx.Encoder) {
			loc := st.Location
			e.Obj(func(e *jx.Encoder) {
				e.Field("divisionId", func(e *jx.Encoder) { e.Str(loc.DivisionID) })
				e.Field("districtId", func(e *jx.Encoder) { e.Str(loc.DistrictID) })
				e.Field("upazilaId", func(e *jx.Encoder) { e.Str(loc.UpazilaID) })
				e.Field("districts", func(e *jx.Encoder) { encodeNodes(e, loc.Districts) })
				e.Field("upazilas", func(e *jx.Encoder) { encodeNodes(e, loc.Upazilas) })
			})
		})
		e.Field("summary", func(e *jx.Encoder) { encodeSummary(e, st.Summary) })
		e.Field("submitting", func(e *jx.Encoder) { e.Bool(submitting) })
	})
}

func encodeLineItem(e *jx.Encoder, it pricing.LineItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, it.Price) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, it.Total()) })
		optStr(e, "thumbnail", it.Thumbnail)
		optStr(e, "color", it.Color)
		optStr(e, "size", it.Size)
		optStr(e, "code", it.Code)
	})
}

func encodeSummary(e *jx.Encoder, s pricing.Summary) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("subTotal", func(e *jx.Encoder) { encodeDecimal(e, s.SubTotal) })
		e.Field("discount", func(e *jx.Encoder) { encodeDecimal(e, s.Discount) })
		e.Field("shippingCharge", func(e *jx.Encoder) { encodeDecimal(e, s.ShippingCharge) })
		e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, s.Total) })
		e.Field("negative", func(e *jx.Encoder) { e.Bool(s.IsNegative()) })
	})
}

func encodeResult(e *jx.Encoder, res tracking.Result) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("state", func(e *jx.Encoder) { e.Str(string(res.State)) })
		e.Field("identifier", func(e *jx.Encoder) { e.Str(res.Identifier) })
		optStr(e, "message", res.Message)
		e.Field("orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, v := range res.Views {
					encodeView(e, v)
				}
			})
		})
	})
}

func encodeView(e *jx.Encoder, v tracking.View) {
	o := v.Order
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("statusLabel", func(e *jx.Encoder) { e.Str(v.StatusLabel) })
		e.Field("statusClass", func(e *jx.Encoder) { e.Str(v.StatusClass) })
		e.Field("progress", func(e *jx.Encoder) { e.Int(v.Progress) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, &o.CreatedAt) })
		e.Field("estimatedDelivery", func(e *jx.Encoder) { encodeTime(e, v.EstimatedDelivery) })
		e.Field("shippingMethod", func(e *jx.Encoder) { e.Str(v.ShippingMethod) })
		optStr(e, "trackingNumber", o.TrackingNumber)
		optStr(e, "paymentMethod", o.PaymentMethod)

		e.Field("name", func(e *jx.Encoder) { e.Str(o.Name) })
		optStr(e, "email", o.Email)
		e.Field("phone", func(e *jx.Encoder) { e.Str(o.Phone) })
		e.Field("isGuestCheckout", func(e *jx.Encoder) { e.Bool(o.IsGuestCheckout) })
		e.Field("shippingAddress", func(e *jx.Encoder) { encodeAddress(e, o.ShippingAddress) })

		e.Field("steps", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, s := range v.Steps {
					encodeStep(e, s)
				}
			})
		})
		if v.Terminal {
			e.Field("terminal", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("title", func(e *jx.Encoder) { e.Str(v.TerminalTitle) })
					e.Field("message", func(e *jx.Encoder) { e.Str(v.TerminalMessage) })
					e.Field("at", func(e *jx.Encoder) { encodeTime(e, v.TerminalAt) })
				})
			})
		}

		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range v.Items {
					encodeTrackedItem(e, it)
				}
			})
		})
		e.Field("subTotal", func(e *jx.Encoder) { encodeDecimal(e, o.SubTotal) })
		e.Field("discount", func(e *jx.Encoder) { encodeDecimal(e, o.Discount) })
		e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, o.Total) })
	})
}

func encodeStep(e *jx.Encoder, s tracking.Step) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(string(s.Status)) })
		e.Field("label", func(e *jx.Encoder) { e.Str(s.Label) })
		e.Field("completed", func(e *jx.Encoder) { e.Bool(s.Completed) })
		e.Field("current", func(e *jx.Encoder) { e.Bool(s.Current) })
		e.Field("at", func(e *jx.Encoder) { encodeTime(e, s.At) })
		optStr(e, "note", s.Note)
	})
}

func encodeTrackedItem(e *jx.Encoder, it tracking.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, it.Price) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		optStr(e, "thumbnail", it.Thumbnail)
		optStr(e, "color", it.Color)
		optStr(e, "size", it.Size)
		if it.ShowStatus {
			e.Field("status", func(e *jx.Encoder) { e.Str(string(it.Status)) })
			e.Field("statusClass", func(e *jx.Encoder) { e.Str(it.StatusClass) })
		}
	})
}

func encodeAddress(e *jx.Encoder, a order.ShippingAddress) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("line1", func(e *jx.Encoder) { e.Str(a.Line1) })
		optStr(e, "line2", a.Line2)
		optStr(e, "country", a.Country)
		optStr(e, "phone", a.Phone)
		e.Field("division", func(e *jx.Encoder) { e.Str(a.Division) })
		e.Field("district", func(e *jx.Encoder) { e.Str(a.District) })
		e.Field("upazila", func(e *jx.Encoder) { e.Str(a.Upazila) })
	})
}
