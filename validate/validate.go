package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// Error is the validation failure kind, distinct from store errors so
// callers can map it to a bad-request response.
type Error struct {
	Fields []string
	err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation failed on %s", strings.Join(e.Fields, ", "))
}

func (e *Error) Unwrap() error {
	return e.err
}

// NewError builds a validation failure for rules the tag language cannot
// express, such as cross-field constraints.
func NewError(fields ...string) error {
	return &Error{Fields: fields}
}

// Struct validates an input struct against its validate tags.
func Struct(input any) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return &Error{Fields: fields, err: err}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}
