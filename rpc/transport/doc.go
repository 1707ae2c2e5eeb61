// Package transport defines the interfaces between the command service and
// the datagram transports carrying its messages.
//
// A transport moves whole messages: the server side reads one datagram at a
// time, strips the frame (length and CRC16) and hands the request to a
// ServerHandleFunc, whose result is framed and sent back to the sender. The
// client side sends framed requests and receives unframed answers.
//
// Implementations:
//
//   - udp: UDP sockets, the default transport
//   - unix: unix datagram sockets for processes on the same machine
//
// Both are thin connectors over the generic packet transports in the base
// package, which own framing, buffers and the read loop.
package transport
