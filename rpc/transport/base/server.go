package base

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/rcq/rpc/common"
	"github.com/ValentinKolb/rcq/rpc/transport"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen binds a packet socket to config.Endpoint and returns it
	Listen(config common.ServerConfig) (net.PacketConn, error)

	// GetName returns the name of the transport type (e.g., "udp", "unix")
	GetName() string
}

const (
	// MaxReadErrors is the number of consecutive read errors after which Serve fails
	MaxReadErrors = 5
	// ReadRetryDelay is the pause after a failed read
	ReadRetryDelay = 10 * time.Millisecond
)

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core datagram server functionality
type serverTransport struct {
	connector  IServerConnector
	handler    transport.ServerHandleFunc
	config     common.ServerConfig
	conn       net.PacketConn
	bufferSize int
	closed     atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for udp, unix)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport for the given connector.
// The receive buffer size is taken from config.MaxMessageSize on Listen.
func NewBaseServerTransport(connector IServerConnector) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	t.config = config
	t.bufferSize = config.MaxMessageSize
	if t.bufferSize <= 0 {
		t.bufferSize = common.DefaultMaxMessageSize
	}

	conn, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create %s socket: %v", t.connector.GetName(), err)
	}
	t.conn = conn
	t.closed.Store(false)

	Logger.Infof("Listening for %s datagrams on %s (buffer %d bytes)",
		t.connector.GetName(), conn.LocalAddr(), t.bufferSize)
	return nil
}

func (t *serverTransport) Serve() error {
	if t.conn == nil {
		return fmt.Errorf("transport is not listening")
	}
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	// One buffer is enough since datagrams are handled sequentially
	buf := make([]byte, t.bufferSize)
	readErrors := 0

	for {
		n, addr, err := t.conn.ReadFrom(buf)
		receivedAt := time.Now()

		if err != nil {
			if t.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			readErrors++
			if readErrors >= MaxReadErrors {
				return fmt.Errorf("%s read failed %d times: %w", t.connector.GetName(), readErrors, err)
			}
			Logger.Warningf("Read error (%d of %d): %v", readErrors, MaxReadErrors, err)
			time.Sleep(ReadRetryDelay)
			continue
		}

		readErrors = 0
		t.handleDatagram(addr, receivedAt, buf[:n])
	}
}

func (t *serverTransport) Send(addr net.Addr, resp []byte) error {
	if t.conn == nil || t.closed.Load() {
		return net.ErrClosed
	}
	return t.writeAnswer(addr, resp)
}

func (t *serverTransport) Addr() net.Addr {
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

func (t *serverTransport) Close() error {
	if t.conn == nil || !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.conn.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleDatagram unframes one datagram, calls the handler and sends the answer back
func (t *serverTransport) handleDatagram(addr net.Addr, receivedAt time.Time, datagram []byte) {
	req, err := DecodeFrame(datagram)
	if err != nil {
		malformedFrames.Inc()
		Logger.Warningf("Dropping datagram from %s: %v", addr, err)
		return
	}

	start := time.Now()
	resp := t.handler(addr, receivedAt, req)
	Logger.Debugf("Processed request from %s took %s", addr, time.Since(start))

	if resp == nil {
		return
	}
	if err := t.writeAnswer(addr, resp); err != nil {
		Logger.Errorf("Failed to answer %s: %v", addr, err)
	}
}

// writeAnswer frames resp and writes it to addr
func (t *serverTransport) writeAnswer(addr net.Addr, resp []byte) error {
	frame, err := EncodeFrame(resp)
	if err != nil {
		return err
	}
	if len(frame) > t.bufferSize {
		return fmt.Errorf("answer has %d bytes, exceeds max message size %d", len(frame), t.bufferSize)
	}
	_, err = t.conn.WriteTo(frame, addr)
	return err
}
