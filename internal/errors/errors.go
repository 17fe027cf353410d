// Package errors carries the typed failures that cross package boundaries.
//
// A question can fail at each stage of the pipeline, and the stage decides
// what the user is told:
//
//   - the policy validator refuses a compiled statement (policy_violation),
//     and the user only learns that the query can't be run
//   - the gateway's driver call fails (execution_failure), and the user sees
//     a sanitized, possibly retryable message
//   - the conversation store can't load or save turns (session), and the
//     engine carries on without context
//
// Utterances the extractor can't read are not errors here: they come back as
// query.ExtractionError and turn into clarifying replies. The remaining kinds
// cover loading and wiring: catalog, config, database, validation and
// internal.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType names the stage or subsystem a failure came from
type ErrorType string

const (
	// ErrTypePolicyViolation marks a statement the validator refused
	ErrTypePolicyViolation ErrorType = "policy_violation"
	// ErrTypeExecution marks a sanitized gateway failure
	ErrTypeExecution ErrorType = "execution_failure"
	// ErrTypeSession marks a conversation store failure
	ErrTypeSession ErrorType = "session"

	ErrTypeCatalog    ErrorType = "catalog"
	ErrTypeConfig     ErrorType = "config"
	ErrTypeDatabase   ErrorType = "database"
	ErrTypeValidation ErrorType = "validation"
	ErrTypeInternal   ErrorType = "internal"
)

// Error is a failure tagged with its type. Suggestions are hints the CLI
// prints under the message.
type Error struct {
	Type        ErrorType
	Message     string
	Cause       error
	Suggestions []string
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Type) + ": " + e.Message
	}

	return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithSuggestion appends a hint and returns e for chaining
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

func New(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

func Newf(errType ErrorType, format string, args ...any) *Error {
	return New(errType, fmt.Sprintf(format, args...))
}

// Wrap tags err with a type and a message saying what was being attempted
func Wrap(err error, errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message, Cause: err}
}

func Wrapf(err error, errType ErrorType, format string, args ...any) *Error {
	return Wrap(err, errType, fmt.Sprintf(format, args...))
}

// IsType reports whether the outermost typed error in err's chain has the
// given type
func IsType(err error, errType ErrorType) bool {
	var typed *Error
	return errors.As(err, &typed) && typed.Type == errType
}

// GetType returns the outermost type in err's chain, or internal when the
// chain holds no typed error
func GetType(err error) ErrorType {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type
	}

	return ErrTypeInternal
}

// Suggestions collects the hints of every typed error in the chain,
// outermost first.
func Suggestions(err error) []string {
	var out []string

	for err != nil {
		var typed *Error
		if !errors.As(err, &typed) {
			break
		}

		out = append(out, typed.Suggestions...)
		err = typed.Cause
	}

	return out
}

// NewConfigError reports a bad setting, naming the field when known
func NewConfigError(message, field string) *Error {
	if field != "" {
		message = fmt.Sprintf("%s (field: %s)", message, field)
	}

	return New(ErrTypeConfig, message).
		WithSuggestion("Check your configuration file syntax").
		WithSuggestion("Run with --help to see valid configuration options")
}

// As and Is forward to the standard library so callers importing this
// package as errors keep them.
func As(err error, target any) bool { return errors.As(err, target) }

func Is(err, target error) bool { return errors.Is(err, target) }
