package server

import (
	"net"
	"time"

	"github.com/ValentinKolb/rcq/rpc/common"
)

// Request is a parsed request as seen by an adapter
type Request struct {
	From       net.Addr
	ReceivedAt time.Time
	Meta       common.Meta
	Payload    []byte
}

// IRPCServerAdapter is the interface for all RPC server adapters.
// It handles one parsed request and returns the answer plus its payload.
// Errors are carried in the answer's code, a payload is only allowed for
// successful answers.
type IRPCServerAdapter interface {
	Handle(req Request) (answer common.Answer, payload []byte)
}

// IServiceControl is the view of the service lifecycle adapters work with
type IServiceControl interface {
	// ServiceTimes returns the last start, automatic restart and stop time
	// (zero if the event did not happen yet)
	ServiceTimes() (lastStart, lastAutoRestart, lastStop time.Time)
	// RequestStop stops the service once the current answer was sent.
	// hasDelay is false if the request carried no restart delay. The delay
	// only applies to this stop, the configured auto restart is unchanged.
	RequestStop(restartDelayMs int32, hasDelay bool)
}
