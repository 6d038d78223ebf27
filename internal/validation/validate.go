// Package validation wraps validator/v10 with JSON field names and readable messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// New returns a validator that reports fields by their json name
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Messages maps each failing field to a human readable message.
// It returns nil when err is not a validation failure.
func Messages(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe)
		switch fe.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "email":
			out[field] = fmt.Sprintf("%s must be a valid email address", field)
		case "min":
			out[field] = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		case "gt":
			out[field] = fmt.Sprintf("%s must be greater than %s", field, fe.Param())
		case "gte":
			out[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
		case "e164", "phone":
			out[field] = fmt.Sprintf("%s must be a valid phone number", field)
		case "oneof":
			out[field] = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
		default:
			out[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace,
// e.g. "BillingDetails.name" becomes "name"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
