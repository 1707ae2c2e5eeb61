// Package server implements the RPC server of the command service.
// It parses datagrams, dispatches them to the command queue and runs the
// stop / restart lifecycle of the service.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface for handling one parsed request. The
//     adapter returns the answer meta with its result code plus the payload.
//
//   - NewQueueServerAdapter: Factory function creating the adapter that maps
//     GETSTATE, EXECUTE, GETRESULT, FINALIZE and STOP onto a
//     queue.ICommandQueue and the service lifecycle.
//
//   - RPCServer: The service itself. Serve binds the transport, starts the
//     queue processor and restarts both after a STOP with restart delay or a
//     transport failure if auto restart is configured.
//
// Request Handling:
//
//	Requests are handled one at a time in arrival order on the transport
//	goroutine. A request whose type can be parsed always gets an answer
//	(WrongFormat for truncated fields), anything else is dropped.
//	The answer to a STOP is sent before the socket is closed.
//
// Usage Example:
//
//	config := common.DefaultServerConfig()
//	config.Endpoint = "0.0.0.0:7380"
//
//	s, err := server.NewRPCServer(
//		config,
//		udp.NewUDPServerTransport(),
//		serializer.NewBinarySerializer(),
//		commands.PingPong(),
//	)
//	if err != nil {
//		panic(err)
//	}
//
//	// Blocks until ctx is cancelled or a STOP halts the service
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	}
//
// If ServerConfig.MetricsEndpoint is set, Serve also exposes the counters of
// the server and the queue gauges in Prometheus format on /metrics.
package server
