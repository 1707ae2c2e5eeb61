// Package udp implements the datagram transport of the command service over
// UDP. It only provides the connectors, framing and the read loop come from
// the base package.
//
// Key Components:
//
//   - serverConnector: binds a UDP socket on the configured host:port
//
//   - clientConnector: dials a connected UDP socket to the server
//
// Datagrams larger than the configured max message size are truncated by the
// kernel and then rejected by the frame check.
package udp
