package transport

import (
	"net"
	"time"

	"github.com/ValentinKolb/rcq/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests.
// It is called by the server transport for every valid frame with the sender
// address, the time the datagram was received and the unframed request.
// A nil response means no answer is sent.
type ServerHandleFunc func(from net.Addr, receivedAt time.Time, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the datagram server transport
type IRPCServerTransport interface {
	// RegisterHandler registers the handler for the transport layer.
	// It must be called before Serve.
	RegisterHandler(handler ServerHandleFunc)
	// Listen binds the transport to config.Endpoint without reading yet
	Listen(config common.ServerConfig) error
	// Serve reads datagrams until Close is called. Datagrams are handled one
	// at a time in arrival order. Returns nil after Close and an error if
	// reading from the socket keeps failing.
	Serve() error
	// Send frames resp and sends it to addr outside of the handler.
	// It is safe to call concurrently with Serve.
	Send(addr net.Addr, resp []byte) error
	// Addr returns the bound local address (nil before Listen)
	Addr() net.Addr
	// Close stops Serve and releases the socket. The transport can be bound
	// again with Listen afterwards.
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the datagram client transport.
// Send and Receive may be called from different goroutines.
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send frames req and sends it to the server
	Send(req []byte) error
	// Receive blocks until a datagram arrives and returns it unframed.
	// Malformed datagrams return an error wrapping base.ErrMalformedMessage,
	// after Close it returns net.ErrClosed.
	Receive() ([]byte, error)
	// Close closes the transport connection
	Close() error
}
