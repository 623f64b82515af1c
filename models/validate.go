package models

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// now is swapped in tests that pin the calendar year.
var now = time.Now

func currentYear() int { return now().Year() }

// ValidationError lists the form fields that failed validation, keyed by
// their JSON name, with a message suitable for showing next to the field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notfuture", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() <= int64(currentYear())
	})
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return IsValidStatus(fl.Field().String())
	})
	return v
}

// Validate checks a form before it is submitted. It returns a
// *ValidationError when any field is invalid.
func (d Draft) Validate() error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "year":
		return "Invalid year"
	case "status":
		return "Invalid status"
	}
	if fe.Tag() == "required" {
		name := fe.Field()
		return strings.ToUpper(name[:1]) + name[1:] + " is required"
	}
	return "Invalid " + fe.Field()
}
