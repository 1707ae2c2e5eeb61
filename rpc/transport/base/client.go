package base

import (
	"fmt"
	"net"
	"sync"

	"github.com/ValentinKolb/rcq/rpc/common"
	"github.com/ValentinKolb/rcq/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect returns a socket connected to endpoint. Reads on it must only
	// return datagrams sent by endpoint.
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "udp", "unix")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport implements the core datagram client functionality
// independent of the specific transport medium (udp, unix)
type clientTransport struct {
	connector IClientConnector
	config    common.ClientConfig
	conn      net.Conn
	connMu    sync.RWMutex // Protects the conn field
	readBuf   []byte       // Only used by Receive, which has a single caller
}

// -----------------------------------------------------------
// Transport Factory Method (used for udp, unix)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if config.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}

	// Close an existing connection
	_ = t.Close()

	conn, err := t.connector.Connect(config.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", config.Endpoint, err)
	}

	size := config.MaxMessageSize
	if size <= 0 {
		size = common.DefaultMaxMessageSize
	}

	t.connMu.Lock()
	t.config = config
	t.config.MaxMessageSize = size
	t.conn = conn
	t.readBuf = make([]byte, size)
	t.connMu.Unlock()

	Logger.Infof("Connected %s client %s to %s", t.connector.GetName(), conn.LocalAddr(), config.Endpoint)
	return nil
}

func (t *clientTransport) Send(req []byte) error {
	conn, maxSize, err := t.getConn()
	if err != nil {
		return err
	}

	frame, err := EncodeFrame(req)
	if err != nil {
		return err
	}
	if len(frame) > maxSize {
		return fmt.Errorf("request has %d bytes, exceeds max message size %d", len(frame), maxSize)
	}

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

func (t *clientTransport) Receive() ([]byte, error) {
	conn, _, err := t.getConn()
	if err != nil {
		return nil, err
	}

	n, err := conn.Read(t.readBuf)
	if err != nil {
		return nil, err
	}

	payload, err := DecodeFrame(t.readBuf[:n])
	if err != nil {
		malformedFrames.Inc()
		return nil, err
	}

	// The read buffer is reused, hand out a copy
	result := make([]byte, len(payload))
	copy(result, payload)
	return result, nil
}

func (t *clientTransport) Close() error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// getConn returns the current connection and the max message size, or net.ErrClosed
func (t *clientTransport) getConn() (net.Conn, int, error) {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	if t.conn == nil {
		return nil, 0, net.ErrClosed
	}
	return t.conn, t.config.MaxMessageSize, nil
}
