// Package client implements the RPC client of the command service.
// It issues single requests and runs the complete EXECUTE, GETRESULT,
// FINALIZE protocol of a remote command.
//
// Key Components:
//
//   - RPCClient: Client bound to one service endpoint. A single goroutine reads
//     all answers and routes them by message id to the waiting request, so the
//     client can be used from many goroutines at once.
//
//   - Execute: Submits a command, polls its result every PollInterval until it
//     is available or the execute timeout expired and releases the result slot
//     on the service afterwards.
//
//   - RequestError: Client side failure of a single request (build, send,
//     receive, parse). Failures reported by the service are *common.Error,
//     a missing answer is ErrTimeout.
//
// Thread Safety:
//
//	All methods of RPCClient are safe for concurrent use.
//
// Usage Example:
//
//	c, err := client.NewRPCClient(
//		common.ClientConfig{SenderID: 1, Endpoint: "localhost:7380", AnswerTimeoutMs: 2000},
//		udp.NewUDPClientTransport(),
//		serializer.NewBinarySerializer(),
//	)
//	if err != nil {
//		panic(err)
//	}
//	defer c.Close()
//
//	res, err := c.Execute(ctx, c.AnswerTimeout(), 5000, []byte("PING"))
//	if err != nil {
//		panic(err)
//	}
//	fmt.Println(string(res.Output)) // PONG
//
// Answers are only accepted if sender id, message id, request type and command
// id match the request. Anything else is counted and, if no valid answer
// arrives in time, reported as parse error instead of a timeout.
package client
