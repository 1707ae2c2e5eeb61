// Package common holds the types shared by the rcq server, client and queue:
//
//   - Meta and Answer, the request/answer envelope with one Go type per
//     request kind (GetState, Execute, GetResult, Finalize, Stop)
//   - ResultCode and Error, the protocol level error taxonomy
//   - ProcessingMode, ProcessorState and ServiceState (the GETSTATE payload)
//   - ServerConfig and ClientConfig
//   - the logger factory plugged into dragonboat's logger package
package common
