// Package rpc provides the datagram request / answer layer of the command
// service. It acts as the communication layer between clients and the
// command queue, enabling command execution across process and host
// boundaries.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the request meta, result codes, service state, configuration
//     structures, and logging.
//
//   - transport: Datagram communication abstractions with pluggable
//     implementations (UDP, Unix datagram sockets). Every datagram is framed
//     with its length and a CRC16 checksum.
//
//   - serializer: Binary encoding of request and answer metas and of the
//     GETSTATE and STOP payloads.
//
//   - client: RPC client running the EXECUTE, GETRESULT, FINALIZE handshake
//     and matching answers to their requests.
//
//   - server: RPC server handling incoming requests against the command queue
//     and running the stop / restart lifecycle of the service.
package rpc
