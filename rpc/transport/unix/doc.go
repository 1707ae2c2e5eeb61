// Package unix implements the datagram transport of the command service over
// unix datagram sockets (unixgram) for processes running on the same machine.
//
// Key Components:
//
//   - serverConnector: binds the socket file given as endpoint, replacing a
//     stale file from an earlier run
//
//   - clientConnector: binds a private socket file in the temp directory and
//     connects it to the server, the server answers to that file
//
// Socket files are removed when the transport is closed.
package unix
