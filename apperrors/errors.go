package apperrors

import (
	"errors"
	"fmt"
)

// ConfigError signals missing or unusable configuration at construction
// time. It is fatal: callers are expected to abort startup.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Msg)
}

func NewConfigError(field, msg string) error {
	return &ConfigError{Field: field, Msg: msg}
}

// StoreError wraps a failure reported by the database, carrying the name
// of the attempted operation so callers can map it to a response.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Store wraps err with the operation name. Returns nil for nil err.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// TransitionError reports a stage or status change outside the allowed
// transition table.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s transition %s -> %s is not allowed", e.Entity, e.From, e.To)
}

func NewTransitionError(entity, from, to string) error {
	return &TransitionError{Entity: entity, From: from, To: to}
}

// IsTransition reports whether err is a rejected state transition.
func IsTransition(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
