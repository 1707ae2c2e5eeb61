package udp

import (
	"net"

	"github.com/ValentinKolb/rcq/rpc/common"
	"github.com/ValentinKolb/rcq/rpc/transport"
	"github.com/ValentinKolb/rcq/rpc/transport/base"
)

// serverConnector implements the IServerConnector interface for UDP
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "udp"
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.PacketConn, error) {
	return net.ListenPacket("udp", config.Endpoint)
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewUDPServerTransport creates a new UDP server transport
func NewUDPServerTransport() transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{})
}
