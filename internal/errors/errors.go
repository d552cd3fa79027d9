// Package errors defines rdeploy's structured errors: a code naming the
// phase that failed, a one-line message, an optional fix, and the cause.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Codes, roughly in the order a deployment can hit them.
const (
	ErrConfigIO      = "CONFIG_IO"            // config.yaml unreadable or unwritable
	ErrConfigParse   = "CONFIG_PARSE"         // not YAML, or a value of the wrong kind
	ErrConfigMissing = "CONFIG_MISSING_FIELD" // a required key is absent or empty
	ErrSpawn         = "SPAWN"                // a local process couldn't start
	ErrWait          = "WAIT"                 // a local process was lost or killed
	ErrSync          = "SYNC"                 // rsync reported failure
	ErrSSH           = "SSH"                  // connect, auth or host key problem
	ErrIdentity      = "IDENTITY"             // whoami disagreed with the config
	ErrRemoteCommand = "REMOTE_COMMAND"       // the deploy command failed or was cut off
)

// Error renders as
//
//	✗ <message>
//
//	  <cause>
//
//	  <suggestion>
//
// with the cause and suggestion blocks left out when empty.
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

func New(code, message, suggestion string) *Error {
	return &Error{Code: code, Message: message, Suggestion: suggestion}
}

// WrapWithCode records err as the cause of a new structured error.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{Code: code, Message: message, Suggestion: suggestion, Cause: err}
}

// Ensure returns err untouched if it already carries a structured error,
// and wraps it with the given code otherwise. Nil stays nil.
func Ensure(err error, code, message, suggestion string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	return WrapWithCode(err, code, message, suggestion)
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✗ %s\n", e.Message)
	for _, block := range []string{causeText(e.Cause), e.Suggestion} {
		if block != "" {
			fmt.Fprintf(&b, "\n  %s\n", block)
		}
	}
	return b.String()
}

func causeText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// As finds the outermost structured error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether err's outermost structured error has code.
func IsCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// MissingFieldError names a required config key that is absent or not a string.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// NewMissingField reports field as missing from the config at path.
func NewMissingField(field, path string) *Error {
	return WrapWithCode(&MissingFieldError{Field: field}, ErrConfigMissing,
		fmt.Sprintf("'%s' is missing from %s", field, path),
		fmt.Sprintf("Add a non-empty string value for '%s'.", field))
}

// MissingField returns the key named by a missing-field error.
func MissingField(err error) (string, bool) {
	var mf *MissingFieldError
	if errors.As(err, &mf) {
		return mf.Field, true
	}
	return "", false
}

// IdentityMismatchError means whoami on the remote named someone other
// than the configured user.
type IdentityMismatchError struct {
	Expected string
	Got      string
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("remote whoami returned %q, expected %q", e.Got, e.Expected)
}

// ExitError carries a process exit status. On its own it tells the CLI the
// failure was already reported.
type ExitError struct {
	Code int
}

func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// GetExitCode returns the status of the first ExitError in err's chain.
func GetExitCode(err error) (int, bool) {
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code, true
	}
	return 0, false
}
