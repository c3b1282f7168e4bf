// Package errors defines the coded error taxonomy shared by the client
// packages. Callers branch on codes via Is/CodeOf instead of matching
// message substrings, which keeps the retry policy independent of error
// wording.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is a coded client error, optionally wrapping an underlying cause.
type Error struct {
	Code    ErrorCode
	Message string
	cause   error
}

// New creates an Error with the default message for the code.
func New(code ErrorCode) *Error {
	return &Error{Code: code, Message: GetErrorMessage(code)}
}

// Newf creates an Error with a custom formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping cause. A nil cause yields a plain coded error.
func Wrap(code ErrorCode, cause error) *Error {
	return &Error{Code: code, Message: GetErrorMessage(code), cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same code, so coded
// errors compose with the standard errors.Is machinery.
func (e *Error) Is(target error) bool {
	var t *Error
	if !stderrors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the error code from err, walking the wrap chain.
// Errors without a code report an empty ErrorCode.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsAuth reports whether err is an authentication failure. Auth failures
// are fatal for the operation and must never be retried.
func IsAuth(err error) bool {
	switch CodeOf(err) {
	case AuthMissingToken, AuthExpiredToken, AuthInvalidToken, AuthSignInFailed:
		return true
	}
	return false
}

// Retryable reports whether err is a transient failure worth retrying.
// Only network-level failures qualify; auth and business errors do not.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case NetworkRequestFailed, NetworkUnavailable, NetworkRateLimited:
		return true
	}
	return false
}

// Warning is a non-fatal failure of a best-effort side action, carried
// alongside a successful primary result.
type Warning struct {
	Code    ErrorCode
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s", w.Code, w.Message)
}

// WarningFrom converts an error into a Warning, preserving its code.
func WarningFrom(err error) Warning {
	code := CodeOf(err)
	if code == "" {
		code = NetworkRequestFailed
	}
	return Warning{Code: code, Message: err.Error()}
}

// Warnings accumulates non-fatal failures. The zero value is ready to use.
type Warnings []Warning

// Add appends a warning built from err. Nil errors are ignored.
func (ws *Warnings) Add(err error) {
	if err == nil {
		return
	}
	*ws = append(*ws, WarningFrom(err))
}

// Empty reports whether no warnings were recorded.
func (ws Warnings) Empty() bool {
	return len(ws) == 0
}
