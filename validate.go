package coophub

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

// validator checks request parameters before they are sent.
type validator struct {
	validate *playground.Validate
}

func newValidator() *validator {
	validate := playground.New(playground.WithRequiredStructEnabled())

	// Report fields by their wire name.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})

	return &validator{validate: validate}
}

// Struct validates v and returns a *ValidationError listing every failure.
func (v *validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Errors: []string{err.Error()}}
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return &ValidationError{Errors: msgs}
}

// Var validates a single value under the given field name.
func (v *validator) Var(field string, value any, tag string) error {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs playground.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &ValidationError{Errors: []string{field + describe(fieldErrs[0])}}
	}
	return &ValidationError{Errors: []string{fmt.Sprintf("%s: %v", field, err)}}
}

func describe(fe playground.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s must match %s", field, fe.Param())
	case "iso4217":
		return field + " must be an ISO 4217 currency code"
	case "bcp47_language_tag":
		return field + " must be a BCP 47 language tag"
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// requireID rejects blank path identifiers.
func requireID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Errors: []string{field + " is required"}}
	}
	return nil
}
