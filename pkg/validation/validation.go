// Package validation wraps validator/v10 and converts its failures into
// readable ValidationErrors.
package validation

import (
	"fmt"
	"reflect"
	"strings"

	appErrors "github.com/1282saa/paperone/pkg/errors"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Struct validates s by its `validate` tags.
func Struct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return format(err)
	}
	return nil
}

func format(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return appErrors.NewValidation(err.Error())
	}

	messages := make([]string, 0, len(validationErrors))
	fields := make(map[string]interface{}, len(validationErrors))
	for _, e := range validationErrors {
		msg := formatFieldError(e)
		messages = append(messages, msg)
		fields[e.Field()] = msg
	}
	return appErrors.NewValidation(strings.Join(messages, "; ")).
		WithDetails(map[string]interface{}{"fields": fields})
}

func formatFieldError(e validator.FieldError) string {
	field := e.Field()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
