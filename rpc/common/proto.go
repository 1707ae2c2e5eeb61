package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Request Types
// --------------------------------------------------------------------------

// RequestType identifies the kind of request a datagram carries.
// The numeric values are part of the wire format.
type RequestType uint8

const (
	ReqTUnknown   RequestType = 0
	ReqTGetState  RequestType = 1   // Query the service and processor state
	ReqTExecute   RequestType = 2   // Admit a command into the queue
	ReqTGetResult RequestType = 3   // Fetch the result of a command
	ReqTFinalize  RequestType = 4   // Release a held result
	ReqTStop      RequestType = 100 // Stop (or restart) the service
)

// String returns a string representation of the RequestType
func (t RequestType) String() string {
	switch t {
	case ReqTGetState:
		return "GETSTATE"
	case ReqTExecute:
		return "EXECUTE"
	case ReqTGetResult:
		return "GETRESULT"
	case ReqTFinalize:
		return "FINALIZE"
	case ReqTStop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether t is one of the known request types
func (t RequestType) Valid() bool {
	switch t {
	case ReqTGetState, ReqTExecute, ReqTGetResult, ReqTFinalize, ReqTStop:
		return true
	}
	return false
}

// --------------------------------------------------------------------------
// Request Commands (one type per request kind)
// --------------------------------------------------------------------------

// Command is the type specific part of a Meta. Exactly one of GetState,
// Execute, GetResult, Finalize and Stop.
type Command interface {
	RequestType() RequestType
	isCommand()
}

// GetState asks for the state of the service. It has no fields.
type GetState struct{}

// Execute asks the service to queue a command.
//
// Timeout is in milliseconds. A negative value selects no-wait mode (the
// command is only admitted if the queue is empty, the magnitude is the
// retention time), zero means fire and forget and a positive value is the time
// the result is retained after the command was received.
type Execute struct {
	CommandID uint64
	Timeout   int32
}

// GetResult asks for the result of a command. FinalizationID is only
// transmitted in answers.
type GetResult struct {
	CommandID      uint64
	FinalizationID uint64
}

// Finalize releases the result of a command. FinalizationID must match the one
// handed out by GetResult.
type Finalize struct {
	CommandID      uint64
	FinalizationID uint64
}

// Stop asks the service to stop. It has no fields; the optional restart delay
// travels in the payload.
type Stop struct{}

func (GetState) RequestType() RequestType  { return ReqTGetState }
func (Execute) RequestType() RequestType   { return ReqTExecute }
func (GetResult) RequestType() RequestType { return ReqTGetResult }
func (Finalize) RequestType() RequestType  { return ReqTFinalize }
func (Stop) RequestType() RequestType      { return ReqTStop }

func (GetState) isCommand()  {}
func (Execute) isCommand()   {}
func (GetResult) isCommand() {}
func (Finalize) isCommand()  {}
func (Stop) isCommand()      {}

// --------------------------------------------------------------------------
// Meta Structure
// --------------------------------------------------------------------------

// Meta is the envelope of every request. The same envelope (plus a result
// code) is echoed back in the answer so the client can correlate it.
type Meta struct {
	// SenderID identifies the client, stable per client
	SenderID uint32
	// MessageID identifies one request attempt, strictly increasing per sender
	MessageID uint64
	// Command holds the type specific fields
	Command Command
}

// Type returns the request type of the meta, ReqTUnknown if no command is set
func (m Meta) Type() RequestType {
	if m.Command == nil {
		return ReqTUnknown
	}
	return m.Command.RequestType()
}

// CommandID returns the command id for EXECUTE, GETRESULT and FINALIZE, 0 otherwise
func (m Meta) CommandID() uint64 {
	switch c := m.Command.(type) {
	case Execute:
		return c.CommandID
	case GetResult:
		return c.CommandID
	case Finalize:
		return c.CommandID
	default:
		return 0
	}
}

// String returns a compact representation used for logging
func (m Meta) String() string {
	s := fmt.Sprintf("senderID=0x%X messageID=0x%X type=%s", m.SenderID, m.MessageID, m.Type())
	switch c := m.Command.(type) {
	case Execute:
		s += fmt.Sprintf(" commandID=0x%X timeout=%d", c.CommandID, c.Timeout)
	case GetResult:
		s += fmt.Sprintf(" commandID=0x%X finID=0x%X", c.CommandID, c.FinalizationID)
	case Finalize:
		s += fmt.Sprintf(" commandID=0x%X finID=0x%X", c.CommandID, c.FinalizationID)
	}
	return s
}

// Answer is the server's reply to a request: the request meta plus a result code.
// Message is only transmitted if Code is not ResultOK.
type Answer struct {
	Meta
	Code    ResultCode
	Message string
}

// Err returns the answer's result as error, nil if the request succeeded
func (a Answer) Err() error {
	if a.Code == ResultOK {
		return nil
	}
	return NewError(a.Code, "%s", a.Message)
}

// String returns a compact representation used for logging
func (a Answer) String() string {
	if a.Code == ResultOK {
		return a.Meta.String() + " code=OK"
	}
	return fmt.Sprintf("%s code=%s msg=%q", a.Meta.String(), a.Code, a.Message)
}

// --------------------------------------------------------------------------
// Meta Factory Functions
// --------------------------------------------------------------------------

// NewGetStateRequest creates a new GETSTATE request
func NewGetStateRequest(senderID uint32, messageID uint64) Meta {
	return Meta{SenderID: senderID, MessageID: messageID, Command: GetState{}}
}

// NewExecuteRequest creates a new EXECUTE request
func NewExecuteRequest(senderID uint32, messageID, commandID uint64, timeout int32) Meta {
	return Meta{
		SenderID:  senderID,
		MessageID: messageID,
		Command:   Execute{CommandID: commandID, Timeout: timeout},
	}
}

// NewGetResultRequest creates a new GETRESULT request
func NewGetResultRequest(senderID uint32, messageID, commandID uint64) Meta {
	return Meta{
		SenderID:  senderID,
		MessageID: messageID,
		Command:   GetResult{CommandID: commandID},
	}
}

// NewFinalizeRequest creates a new FINALIZE request
func NewFinalizeRequest(senderID uint32, messageID, commandID, finalizationID uint64) Meta {
	return Meta{
		SenderID:  senderID,
		MessageID: messageID,
		Command:   Finalize{CommandID: commandID, FinalizationID: finalizationID},
	}
}

// NewStopRequest creates a new STOP request
func NewStopRequest(senderID uint32, messageID uint64) Meta {
	return Meta{SenderID: senderID, MessageID: messageID, Command: Stop{}}
}

// NewAnswer creates the answer for req. A nil err yields a successful answer,
// a *Error keeps its code and any other error is reported as ResultError.
func NewAnswer(req Meta, err error) Answer {
	a := Answer{Meta: req, Code: ResultOK}
	if err == nil {
		return a
	}
	var e *Error
	if errors.As(err, &e) {
		a.Code = e.Code
		a.Message = e.Msg
	} else {
		a.Code = ResultError
		a.Message = err.Error()
	}
	return a
}
