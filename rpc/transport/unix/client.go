package unix

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/ValentinKolb/rcq/rpc/transport"
	"github.com/ValentinKolb/rcq/rpc/transport/base"
)

// socketCounter makes the local socket paths of one process unique
var socketCounter atomic.Uint64

// clientConnector implements the IClientConnector interface for unix datagram sockets
type clientConnector struct {
	dir string
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "unix"
}

// Connect binds a local socket (the server needs an address to answer to)
// and connects it to endpoint
func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	localPath := filepath.Join(c.dir, fmt.Sprintf("rcq-client-%d-%d.sock", os.Getpid(), socketCounter.Add(1)))
	_ = os.Remove(localPath)

	laddr := &net.UnixAddr{Name: localPath, Net: "unixgram"}
	raddr := &net.UnixAddr{Name: endpoint, Net: "unixgram"}
	conn, err := net.DialUnix("unixgram", laddr, raddr)
	if err != nil {
		return nil, err
	}
	return &socket{UnixConn: conn, path: localPath}, nil
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixClientTransport creates a new unix datagram client transport.
// The local sockets are created in os.TempDir().
func NewUnixClientTransport() transport.IRPCClientTransport {
	return NewUnixClientTransportIn(os.TempDir())
}

// NewUnixClientTransportIn creates a new unix datagram client transport with
// its local sockets in dir
func NewUnixClientTransportIn(dir string) transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{dir: dir})
}
