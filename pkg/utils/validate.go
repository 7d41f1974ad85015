package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const NonFieldErrorsKey = "non_field_errors"

// NewValidator reports fields by their json names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		if name == "" {
			return field.Name
		}

		return name
	})

	return v
}

func FormatValidationError(err error) map[string][]string {
	errs := make(map[string][]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errs[NonFieldErrorsKey] = []string{err.Error()}
		return errs
	}

	for _, err := range validationErrors {
		field := fieldPath(err.Namespace())

		var msg string
		switch err.Tag() {
		case "required":
			msg = "This field is required."
		case "min":
			if err.Kind() == reflect.Slice {
				msg = fmt.Sprintf("Ensure this field has at least %s elements.", err.Param())
			} else {
				msg = fmt.Sprintf("Ensure this value is greater than or equal to %s.", err.Param())
			}
		case "gt":
			msg = fmt.Sprintf("Ensure this value is greater than %s.", err.Param())
		case "gte":
			msg = fmt.Sprintf("Ensure this value is greater than or equal to %s.", err.Param())
		case "oneof":
			msg = fmt.Sprintf("\"%v\" is not a valid choice.", err.Value())
		default:
			msg = "Invalid value."
		}

		errs[field] = append(errs[field], msg)
	}

	return errs
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}

	return namespace
}
