package checkout

import (
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

// DefaultCountry pre-fills the country field of the checkout form.
const DefaultCountry = "Bangladesh"

// Input is the contact and address part of the checkout form. Location is
// taken from the cart's selection, not from Input.
type Input struct {
	Name          string `json:"name" validate:"required,max=100"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"required,min=8,max=15,intlphone"`
	AddressLine1  string `json:"addressLine1" validate:"required,max=100"`
	AddressLine2  string `json:"addressLine2" validate:"max=100"`
	Country       string `json:"country" validate:"required,max=50"`
	ShippingPhone string `json:"shippingPhone" validate:"omitempty,min=8,max=15,intlphone"`

	// IsGuestCheckout is set by the caller when no customer is signed in.
	IsGuestCheckout bool `json:"-"`
}

func (in Input) normalize() Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.AddressLine1 = strings.TrimSpace(in.AddressLine1)
	in.AddressLine2 = strings.TrimSpace(in.AddressLine2)
	in.Country = strings.TrimSpace(in.Country)
	in.ShippingPhone = strings.TrimSpace(in.ShippingPhone)
	return in
}

// ValidationError carries one user-facing message per invalid field, keyed
// by the field's JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid checkout input: " + strings.Join(names, ", ")
}

var intlPhone = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

const (
	phoneTooShort = "Phone number must be at least 8 digits"
	phoneTooLong  = "Phone number is too long"
	phoneInvalid  = "Please enter a valid international phone number (e.g., +8801842236261)"
)

// fieldMessages maps field and failed tag to the message shown to the user.
var fieldMessages = map[string]map[string]string{
	"name": {
		"required": "Name is required",
		"max":      "Name is too long",
	},
	"email": {
		"email": "Invalid email address",
	},
	"phone": {
		"required":  phoneTooShort,
		"min":       phoneTooShort,
		"max":       phoneTooLong,
		"intlphone": phoneInvalid,
	},
	"addressLine1": {
		"required": "Address line 1 is required",
		"max":      "Address line 1 is too long",
	},
	"addressLine2": {
		"max": "Address line 2 is too long",
	},
	"country": {
		"required": "Country is required",
		"max":      "Country name is too long",
	},
	"shippingPhone": {
		"min":       phoneTooShort,
		"max":       phoneTooLong,
		"intlphone": phoneInvalid,
	},
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("intlphone", func(fl validator.FieldLevel) bool {
		return intlPhone.MatchString(fl.Field().String())
	})
	return v
}

// validateInput returns a *ValidationError when in is not acceptable.
func validateInput(v *validator.Validate, in Input) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate input")
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()][fe.Tag()]
		if !ok {
			msg = "Invalid value"
		}
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = msg
		}
	}
	return &ValidationError{Fields: fields}
}
