// Package base provides the datagram transports of the command service
// independent of the socket family. Protocol specific packages (udp, unix)
// only supply a connector that opens the socket.
//
// Frame format (all integers little endian):
//
//	[2] payload length (excludes the 4 byte header)
//	[2] CRC-16/CCITT-FALSE of the payload
//	[N] payload
//
// Datagrams that fail validation are counted, logged and dropped. The
// server never answers them since the sender cannot be trusted to be a
// client.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: open the socket for one transport type.
//
//   - serverTransport: reads one datagram at a time, unframes it, calls the
//     registered handler and writes the framed answer back to the sender.
//     Handling is sequential so answers leave in arrival order.
//
//   - clientTransport: sends framed requests on a connected socket and
//     returns unframed answers to a single reading goroutine.
package base
