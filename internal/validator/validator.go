package validator

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// IntervalUnits lists the accepted check interval units
var IntervalUnits = []string{"seconds", "minutes", "hours", "days"}

// SourceFormats lists the accepted address source formats
var SourceFormats = []string{"json", "text"}

// Validator represents a validator instance
type Validator struct {
	validate *validator.Validate
}

// New creates a new validator instance
func New() *Validator {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Register custom validation functions
		_ = validate.RegisterValidation("interval_unit", oneOf(IntervalUnits))
		_ = validate.RegisterValidation("source_format", oneOf(SourceFormats))

		// Use mapstructure tag names in error messages, they match the config keys
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})

	return &Validator{
		validate: validate,
	}
}

// Struct validates a struct
func (v *Validator) Struct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		if _, ok := err.(*validator.InvalidValidationError); ok {
			return fmt.Errorf("invalid validation error: %w", err)
		}

		var errMsgs []string
		for _, err := range err.(validator.ValidationErrors) {
			errMsgs = append(errMsgs, formatError(err))
		}
		return fmt.Errorf("validation failed: %s", strings.Join(errMsgs, "; "))
	}
	return nil
}

// Var validates a single variable
func (v *Validator) Var(field any, tag string) error {
	return v.validate.Var(field, tag)
}

// formatError formats a validation error
func formatError(err validator.FieldError) string {
	field := err.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, err.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, err.Param(), err.Value())
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid URL, got %q", field, err.Value())
	case "interval_unit":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, strings.Join(IntervalUnits, " "), err.Value())
	case "source_format":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, strings.Join(SourceFormats, " "), err.Value())
	default:
		return fmt.Sprintf("%s failed on tag %s", field, err.Tag())
	}
}

// oneOf builds a validation func accepting only the given string values
func oneOf(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, a := range allowed {
			if value == a {
				return true
			}
		}
		return false
	}
}
