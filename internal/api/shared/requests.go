package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fithub/fithub-api/internal/domain"
)

// MaxJSONBodyBytes bounds plain JSON request bodies.
const MaxJSONBodyBytes = 1 << 20

// Global validator instance for reuse
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// phone accepts Korean mobile numbers with or without dashes.
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		phone := domain.NormalizePhone(fl.Field().String())
		if len(phone) < 10 || len(phone) > 11 || phone[:2] != "01" {
			return false
		}
		for _, r := range phone {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	})
	return v
}

// DecodeJSON decodes the request body into v. Unknown fields and trailing
// data are rejected.
func DecodeJSON(r *http.Request, v interface{}) error {
	return DecodeJSONFrom(http.MaxBytesReader(nil, r.Body, MaxJSONBodyBytes), v)
}

// DecodeJSONFrom decodes a single JSON document from rd into v.
func DecodeJSONFrom(rd io.Reader, v interface{}) error {
	dec := json.NewDecoder(rd)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON document")
	}
	return nil
}

// ValidateRequest validates v with its own Validate method when it has one,
// or with its struct tags otherwise.
func ValidateRequest(v interface{}) error {
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}
	return validate.Struct(v)
}

// ValidationMessage turns a validator error into a message naming the first
// failing field. Other errors get a generic message.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}
	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), tagMessage(fe.Tag()))
}

func tagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "phone":
		return "invalid phone number"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "gt", "gte":
		return "too small"
	default:
		return "validation failed"
	}
}
