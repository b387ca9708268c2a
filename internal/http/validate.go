package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate runs struct-tag shape checks on request DTOs. Field errors
// are keyed by JSON field name so they line up with the semantic
// validation the application layer returns.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateDTO returns a field-keyed error map, or nil when the payload
// passes shape validation.
func validateDTO(payload any) map[string]string {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return map[string]string{"body": "invalid request"}
	}

	out := make(map[string]string, len(fieldErrors))
	for _, fe := range fieldErrors {
		name := fieldErrorKey(fe)
		if _, exists := out[name]; exists {
			continue
		}
		out[name] = tagMessage(fe)
	}
	return out
}

// fieldErrorKey strips the struct prefix from the error namespace so
// nested fields key as "position.latitude" rather than
// "checkInRequest.Position.Latitude".
func fieldErrorKey(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	if len(parts) <= 1 {
		return fe.Field()
	}
	return strings.Join(parts[1:], ".")
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "required"
	case "excluded_with":
		return "cannot be combined with " + strings.ToLower(fe.Param())
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "datetime":
		if fe.Param() == "15:04" {
			return "must be in HH:MM format"
		}
		return "must be in YYYY-MM-DD format"
	case "url":
		return "must be a valid URL"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
