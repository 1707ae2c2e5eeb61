package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Result Codes
// --------------------------------------------------------------------------

// ResultCode is the code of an answer. The numeric values are part of the wire format.
type ResultCode uint16

const (
	ResultOK                  ResultCode = 0
	ResultNotReady            ResultCode = 1   // The command is still queued or executing
	ResultDuplicateCommand    ResultCode = 2   // A slot already holds this (sender, command)
	ResultCannotExecute       ResultCode = 3   // No capacity, serial conflict or busy queue in no-wait mode
	ResultCommandNotFound     ResultCode = 4   // No slot holds this (sender, command)
	ResultWrongFormat         ResultCode = 5   // The message could not be parsed
	ResultWrongValue          ResultCode = 6   // A field holds an unknown value
	ResultWrongFinalizationID ResultCode = 7   // FINALIZE with a stale finalization id
	ResultError               ResultCode = 100 // Any other error
)

// String returns a string representation of the ResultCode
func (c ResultCode) String() string {
	switch c {
	case ResultOK:
		return "OK"
	case ResultNotReady:
		return "ResultNotReady"
	case ResultDuplicateCommand:
		return "DuplicateCommand"
	case ResultCannotExecute:
		return "CannotExecute"
	case ResultCommandNotFound:
		return "CommandNotFound"
	case ResultWrongFormat:
		return "WrongFormat"
	case ResultWrongValue:
		return "WrongValue"
	case ResultWrongFinalizationID:
		return "WrongFinalizationID"
	case ResultError:
		return "Error"
	default:
		return fmt.Sprintf("ResultCode(%d)", uint16(c))
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a result code and an error message. It is returned by the
// request handlers and carried to the client in the answer.
type Error struct {
	Code ResultCode // The result code
	Msg  string     // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("rcq error (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is an *Error with the same code, so that
// errors.Is(err, &Error{Code: ResultNotReady}) works without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new Error with the given code and formatted message.
func NewError(code ResultCode, format string, args ...interface{}) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// CodeOf returns the result code of err: ResultOK for nil, the code of an
// *Error and ResultError for everything else.
func CodeOf(err error) ResultCode {
	if err == nil {
		return ResultOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ResultError
}
