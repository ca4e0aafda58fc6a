package validation

import (
	"fmt"
	"reflect"
	"strings"

	pkgerrors "github.com/castanedo/poscore-backend/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// FieldViolation names one failing field and why it failed.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Struct validates dest against its validate tags and returns a
// code-tagged validation error carrying per-field messages.
func Struct(dest any) error {
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// Violations validates dest and returns the failing fields, or nil when the
// struct is valid. Used by the upload pipeline, which accumulates row errors
// instead of failing on the first.
func Violations(dest any) []FieldViolation {
	err := validate.Struct(dest)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldViolation{{Field: "", Message: err.Error()}}
	}
	violations := make([]FieldViolation, 0, len(errs))
	for _, fieldErr := range errs {
		violations = append(violations, FieldViolation{
			Field:   fieldErr.Field(),
			Message: validationMessage(fieldErr),
		})
	}
	return violations
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "uuid":
		return "must be a valid uuid"
	}
	return "is invalid"
}
