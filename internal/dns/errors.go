package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies provider failures.
type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindMissingCredential
	ErrorKindTransport
	ErrorKindHTTPStatus
	ErrorKindProviderRejected
	ErrorKindDecoding
	ErrorKindEncoding
	ErrorKindInvalidRequest
)

// Sentinels for errors.Is; every *Error matches the one for its kind.
var (
	ErrMissingCredential = errors.New("missing credential")
	ErrTransport         = errors.New("transport failure")
	ErrHTTPStatus        = errors.New("unexpected http status")
	ErrProviderRejected  = errors.New("rejected by provider")
	ErrDecoding          = errors.New("decoding failure")
	ErrEncoding          = errors.New("encoding failure")
	ErrInvalidRequest    = errors.New("invalid request")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case ErrorKindMissingCredential:
		return ErrMissingCredential
	case ErrorKindTransport:
		return ErrTransport
	case ErrorKindHTTPStatus:
		return ErrHTTPStatus
	case ErrorKindProviderRejected:
		return ErrProviderRejected
	case ErrorKindDecoding:
		return ErrDecoding
	case ErrorKindEncoding:
		return ErrEncoding
	case ErrorKindInvalidRequest:
		return ErrInvalidRequest
	}
	return nil
}

func (k ErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return "unknown error"
}

// Error is returned by every provider operation.
type Error struct {
	Provider   Kind
	Kind       ErrorKind
	Op         string   // e.g. "list zones"
	StatusCode int      // HTTP status, when one was received
	Messages   []string // provider error messages
	Err        error    // underlying cause
}

func NewError(provider Kind, kind ErrorKind, op string, cause error) *Error {
	return &Error{Provider: provider, Kind: kind, Op: op, Err: cause}
}

func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

func (e *Error) WithMessages(msgs ...string) *Error {
	e.Messages = append(e.Messages, msgs...)
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(string(e.Provider))
		b.WriteString(": ")
	}
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if len(e.Messages) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Messages, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// Timeout reports whether the failure was a request or dial timeout.
func (e *Error) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// KindOf returns the ErrorKind of err, or ErrorKindUnknown when err is not
// an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrorKindUnknown
}

// InvalidRequestf builds an ErrorKindInvalidRequest error with no provider
// set; providers fill it in with ForProvider.
func InvalidRequestf(format string, args ...any) *Error {
	return &Error{Kind: ErrorKindInvalidRequest, Op: "validate", Err: fmt.Errorf(format, args...)}
}

// ForProvider stamps provider onto err if it is an *Error without one.
func ForProvider(err error, provider Kind) error {
	var e *Error
	if errors.As(err, &e) && e.Provider == "" {
		e.Provider = provider
	}
	return err
}
