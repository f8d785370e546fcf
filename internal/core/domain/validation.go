package domain

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

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
	_ = v.RegisterValidation("prayer", func(fl validator.FieldLevel) bool {
		return Prayer(fl.Field().String()).Valid()
	})
	return v
}

// ValidateRequestFields checks a normalized RequestFields value.
// Returns a *ValidationError naming each offending field, or nil.
func ValidateRequestFields(f RequestFields) error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewValidationError()
	}

	seen := make(map[string]bool, len(fieldErrs))
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		// prayers[2] -> prayers
		name := fe.Field()
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		fields = append(fields, name)
	}
	return NewValidationError(fields...)
}

// ValidateProfileUpdate checks that the onboarding-required fields are present.
func ValidateProfileUpdate(u ProfileUpdate) error {
	var fields []string
	if u.Name == "" {
		fields = append(fields, "name")
	}
	if u.Phone == "" {
		fields = append(fields, "phone")
	}
	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}
