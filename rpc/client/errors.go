package client

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when no matching answer arrived within the answer timeout
var ErrTimeout = errors.New("timeout waiting for answer")

// ErrorKind classifies client side request failures
type ErrorKind int

const (
	ErrKindBuild   ErrorKind = 1 // The request could not be serialized
	ErrKindSend    ErrorKind = 2 // The request could not be sent
	ErrKindReceive ErrorKind = 3 // Receiving failed (a missing answer is ErrTimeout)
	ErrKindParse   ErrorKind = 4 // Only malformed or mismatching answers arrived
)

// String returns a string representation of the ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case ErrKindBuild:
		return "build"
	case ErrKindSend:
		return "send"
	case ErrKindReceive:
		return "receive"
	case ErrKindParse:
		return "parse"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// RequestError is a client side failure of a request. Errors reported by the
// server are *common.Error instead.
type RequestError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *RequestError) Unwrap() error {
	return e.Err
}

func newRequestError(kind ErrorKind, format string, args ...interface{}) *RequestError {
	return &RequestError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// IsKind reports whether err is a *RequestError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Kind == kind
}
