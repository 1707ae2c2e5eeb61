// Package serializer converts the message envelope (common.Meta and
// common.Answer) to and from the binary wire layout used by the command
// service. All integers are little endian.
//
// Request layout:
//
//	senderID   uint32
//	messageID  uint64
//	type       uint8
//	... type specific fields ...
//	payload    (all remaining bytes)
//
// Type specific fields:
//
//	GETSTATE   -
//	EXECUTE    commandID uint64, timeout int32
//	GETRESULT  commandID uint64 (answers add finalizationID uint64)
//	FINALIZE   commandID uint64, finalizationID uint64
//	STOP       -
//
// Answers repeat the request meta followed by a uint16 result code. If the
// code is not OK all remaining bytes are the error message and there is no
// payload.
//
// The package also holds the codecs for the GETSTATE answer payload and
// the STOP request payload.
//
// Thread Safety:
//
//	The serializer is stateless and safe for concurrent use.
//
// Usage:
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.SerializeRequest(common.NewGetStateRequest(senderID, msgID), nil)
//	// ... send data, receive answer ...
//	answer, payload, err := s.DeserializeAnswer(received)
package serializer
