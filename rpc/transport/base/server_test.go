package base

import (
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/rcq/rpc/common"
)

var errDeviceGone = errors.New("device gone")

// failingConn fails the first failures reads, then reads from the socket
type failingConn struct {
	net.PacketConn
	failures int32
	reads    atomic.Int32
}

func (c *failingConn) ReadFrom(p []byte) (int, net.Addr, error) {
	if c.reads.Add(1) <= c.failures {
		return 0, nil, errDeviceGone
	}
	return c.PacketConn.ReadFrom(p)
}

// failingConnector binds udp sockets wrapped in a failingConn
type failingConnector struct {
	failures int32
	conn     *failingConn
}

func (c *failingConnector) GetName() string {
	return "failing-udp"
}

func (c *failingConnector) Listen(config common.ServerConfig) (net.PacketConn, error) {
	conn, err := net.ListenPacket("udp", config.Endpoint)
	if err != nil {
		return nil, err
	}
	c.conn = &failingConn{PacketConn: conn, failures: c.failures}
	return c.conn, nil
}

func listenFailing(t *testing.T, failures int32, handler func([]byte)) (*failingConnector, *serverTransport) {
	t.Helper()

	connector := &failingConnector{failures: failures}
	server := NewBaseServerTransport(connector).(*serverTransport)
	server.RegisterHandler(func(from net.Addr, receivedAt time.Time, req []byte) []byte {
		handler(req)
		return nil
	})

	config := common.DefaultServerConfig()
	config.Endpoint = "127.0.0.1:0"
	if err := server.Listen(config); err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = server.Close() })
	return connector, server
}

func TestServeFailsOnPersistentReadErrors(t *testing.T) {
	_, server := listenFailing(t, MaxReadErrors, func([]byte) {})

	done := make(chan error, 1)
	go func() { done <- server.Serve() }()

	select {
	case err := <-done:
		if !errors.Is(err, errDeviceGone) {
			t.Errorf("Expected the read error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not give up")
	}
}

func TestServeRetriesTransientReadErrors(t *testing.T) {
	received := make(chan string, 1)
	_, server := listenFailing(t, MaxReadErrors-1, func(req []byte) { received <- string(req) })

	done := make(chan error, 1)
	go func() { done <- server.Serve() }()

	conn, err := net.Dial("udp", server.Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	frame, err := EncodeFrame([]byte("PING"))
	if err != nil {
		t.Fatalf("Failed to encode frame: %v", err)
	}
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}

	select {
	case got := <-received:
		if got != "PING" {
			t.Errorf("Expected PING, got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Datagram was not handled after the read errors")
	}

	_ = server.Close()
	if err := <-done; err != nil {
		t.Errorf("Expected nil after Close, got %v", err)
	}
}
