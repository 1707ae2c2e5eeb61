package unix

import (
	"net"
	"os"
)

// socket is a unix datagram socket that removes its file on Close
type socket struct {
	*net.UnixConn
	path string
}

func (s *socket) Close() error {
	err := s.UnixConn.Close()
	_ = os.Remove(s.path)
	return err
}
