package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	pkghttp "github.com/mkessler/hypercloud/pkg/http"
)

// Global validator instance (reused across all handlers)
var validate = validator.New()

// ValidateRequest validates a request struct and returns every failing
// field, so a caller submitting a form sees all problems at once rather
// than one per round trip.
func ValidateRequest(req interface{}) []pkghttp.FieldError {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return []pkghttp.FieldError{{Field: "request", Message: "malformed request"}}
	}

	fields := make([]pkghttp.FieldError, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, pkghttp.FieldError{
			Field:   fieldName(fe),
			Message: formatValidationError(fe),
		})
	}
	return fields
}

// fieldName reports the field in its wire-format (JSON) spelling
func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "Username":
		return "username"
	case "Email":
		return "email"
	case "Password":
		return "password"
	case "Nonce":
		return "nonce"
	case "ProfileURL":
		return "profileURL"
	default:
		return fe.Field()
	}
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "alphanum":
		return "must contain only letters and numbers"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
