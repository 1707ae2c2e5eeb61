package serializer

import "github.com/ValentinKolb/rcq/rpc/common"

// IRPCSerializer is the interface for all Meta serializers.
// A serialized message is the Meta followed by the opaque command payload;
// framing (length and CRC16) is the job of the transport.
type IRPCSerializer interface {
	// SerializeRequest serializes a request meta followed by the payload
	SerializeRequest(meta common.Meta, payload []byte) ([]byte, error)
	// DeserializeRequest parses a request and returns its meta and the remaining payload.
	// If the error has code ResultWrongFormat the returned meta still holds the
	// parsed header (sender, message id, type) so that the caller can answer.
	DeserializeRequest(b []byte) (meta common.Meta, payload []byte, err error)
	// SerializeAnswer serializes an answer followed by the payload.
	// Answers with a code other than ResultOK cannot carry a payload.
	SerializeAnswer(answer common.Answer, payload []byte) ([]byte, error)
	// DeserializeAnswer parses an answer and returns it with the remaining payload
	DeserializeAnswer(b []byte) (answer common.Answer, payload []byte, err error)
}
