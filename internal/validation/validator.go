// Package validation wraps go-playground/validator and converts its failures
// into domain validation errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	domainerrors "github.com/mangashelf/mangashelf/internal/errors"
)

var (
	providerIDPattern = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)
	langPattern       = regexp.MustCompile(`^[a-z]{2}(_[A-Z]{2})?$`)
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the custom tags used by provider metadata:
// "provider_id" (snake_case identifier) and "lang" (ISO 639-1 with optional region).
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("provider_id", func(fl validator.FieldLevel) bool {
		return providerIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("lang", func(fl validator.FieldLevel) bool {
		return langPattern.MatchString(fl.Field().String())
	})

	return &Validator{v: v}
}

// Validate validates a struct and returns a domain error listing every bad field.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return formatError(err)
	}
	return nil
}

// Var validates a single value against a tag expression.
func (v *Validator) Var(field any, tag string) error {
	if err := v.v.Var(field, tag); err != nil {
		return formatError(err)
	}
	return nil
}

func formatError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		name := e.Field()
		if name == "" {
			name = "value"
		}
		fields[name] = friendlyMessage(e)
	}
	return domainerrors.ValidationWithDetails("validation failed", fields)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "url", "http_url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + e.Param()
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s", e.Param())
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "numeric":
		return "must be numeric"
	case "provider_id":
		return "must be a lowercase snake_case identifier"
	case "lang":
		return "must be a language code such as en or pt_BR"
	default:
		return "is invalid"
	}
}
