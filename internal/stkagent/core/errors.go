package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed refresh. Error kinds are never exposed as
// sensor values.
type ErrorKind string

const (
	KindTimeout              ErrorKind = "timeout"
	KindTransport            ErrorKind = "transport-error"
	KindHTTP                 ErrorKind = "http-error"
	KindParse                ErrorKind = "parse-error"
	KindInvalidCredential    ErrorKind = "invalid-credential"
	KindNotFound             ErrorKind = "not-found"
	KindRateLimitedUpstream  ErrorKind = "rate-limited-upstream"
	KindRateLimitedLocal     ErrorKind = "rate-limited-local"
	KindMissingCredential    ErrorKind = "missing-credential"
	KindInvalidResponseShape ErrorKind = "invalid-response-shape"
)

// MissingCredentialMessage is shown to users that have not configured an API key.
const MissingCredentialMessage = "Please register for API access at dataovozidlech.cz"

// Error is the error snapshot produced by a failed refresh.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string

	// Set only for KindMissingCredential.
	RegistrationURL  string
	DocumentationURL string

	Err error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so callers can write
// errors.Is(err, &core.Error{Kind: core.KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError returns an error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError returns an error of the given kind wrapping err.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// HTTPError returns a KindHTTP error carrying the status code.
func HTTPError(status int) *Error {
	return &Error{Kind: KindHTTP, StatusCode: status, Message: "unexpected upstream status"}
}

// MissingCredential builds the error returned before any request is made
// for a vehicle without an API key.
func MissingCredential(registrationURL, documentationURL string) *Error {
	return &Error{
		Kind:             KindMissingCredential,
		Message:          MissingCredentialMessage,
		RegistrationURL:  registrationURL,
		DocumentationURL: documentationURL,
	}
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError extracts the *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// FindKind returns the outermost *Error of the given kind in err's chain.
func FindKind(err error, kind ErrorKind) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return nil, false
}
