// Package validation provides request validation using the validator/v10 library.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pagetune/pagetune-server/internal/domain"
	domainerrors "github.com/pagetune/pagetune-server/internal/errors"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for our domain.
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" {
			return fld.Name
		}
		return name
	})

	// document_kind accepts a kind string or a file name with a known extension.
	_ = v.RegisterValidation("document_kind", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if domain.DocumentKind(strings.ToLower(s)).Valid() {
			return true
		}
		_, ok := domain.KindFromFilename(s)
		return ok
	})
	_ = v.RegisterValidation("position_kind", func(fl validator.FieldLevel) bool {
		switch domain.PositionKind(fl.Field().String()) {
		case domain.Paginated, domain.Sequential:
			return true
		default:
			return false
		}
	})

	return &Validator{v: v}
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// formatError converts validator errors to domain errors.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string)
	names := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = v.friendlyMessage(e)
		names = append(names, e.Field())
	}

	return domainerrors.ValidationWithDetails(
		"validation failed: "+strings.Join(names, ", "), fieldErrors)
}

//nolint:gocyclo // Switch statement covering validation tags is intentionally exhaustive.
func (v *Validator) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", e.Param())
		}
		return "must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", e.Param())
		}
		return "must not exceed " + e.Param()
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "lt":
		return "must be less than " + e.Param()
	case "ltefield":
		return "must be less than or equal to " + e.Param()
	case "document_kind":
		return "must be pdf, txt or epub (or a file name with one of those extensions)"
	case "position_kind":
		return "must be paginated or sequential"
	default:
		return "is invalid"
	}
}
