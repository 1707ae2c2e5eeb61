package udp

import (
	"net"

	"github.com/ValentinKolb/rcq/rpc/transport"
	"github.com/ValentinKolb/rcq/rpc/transport/base"
)

// clientConnector implements the IClientConnector interface for UDP
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "udp"
}

// Connect returns a connected UDP socket, the kernel filters datagrams from other peers
func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("udp", endpoint)
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewUDPClientTransport creates a new UDP client transport
func NewUDPClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{})
}
