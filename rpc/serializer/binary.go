package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/rcq/rpc/common"
)

// byteOrder is the byte order of every integer on the wire
var byteOrder = binary.LittleEndian

// Sizes of the fixed parts of a message
const (
	headerSize   = 4 + 8 + 1 // senderID + messageID + requestType
	executeSize  = 8 + 4     // commandID + timeout
	commandSize  = 8         // commandID
	finalizeSize = 8 + 8     // commandID + finalizationID
	codeSize     = 2         // answer result code
)

// NewBinarySerializer creates a new serializer for the fixed little endian
// layout used on the wire
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer for the binary wire format
type binarySerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (s binarySerializerImpl) SerializeRequest(meta common.Meta, payload []byte) ([]byte, error) {
	return s.build(meta, nil, payload)
}

func (s binarySerializerImpl) DeserializeRequest(b []byte) (common.Meta, []byte, error) {
	r := &reader{buf: b}
	meta, err := s.parse(r, false)
	if err != nil {
		return meta, nil, err
	}
	return meta, r.rest(), nil
}

func (s binarySerializerImpl) SerializeAnswer(answer common.Answer, payload []byte) ([]byte, error) {
	if answer.Code != common.ResultOK && len(payload) > 0 {
		return nil, common.NewError(common.ResultWrongFormat, "answer with code %s cannot carry a payload", answer.Code)
	}
	return s.build(answer.Meta, &answer, payload)
}

func (s binarySerializerImpl) DeserializeAnswer(b []byte) (common.Answer, []byte, error) {
	r := &reader{buf: b}
	meta, err := s.parse(r, true)
	answer := common.Answer{Meta: meta}
	if err != nil {
		return answer, nil, err
	}

	code, ok := r.uint16()
	if !ok {
		return answer, nil, common.NewError(common.ResultWrongFormat, "answer is missing the result code")
	}
	answer.Code = common.ResultCode(code)

	// The error message takes all remaining bytes, answers with errors have no payload
	if answer.Code != common.ResultOK {
		answer.Message = string(r.rest())
		return answer, nil, nil
	}
	return answer, r.rest(), nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// build writes the meta (and the answer trailer if answer is not nil) followed by the payload
func (s binarySerializerImpl) build(meta common.Meta, answer *common.Answer, payload []byte) ([]byte, error) {
	if !meta.Type().Valid() {
		return nil, common.NewError(common.ResultWrongValue, "no request type set")
	}

	size := s.sizeBytes(meta, answer) + len(payload)
	result := make([]byte, size)

	// Write header
	byteOrder.PutUint32(result[0:4], meta.SenderID)
	byteOrder.PutUint64(result[4:12], meta.MessageID)
	result[12] = byte(meta.Type())
	pos := headerSize

	// Write type specific fields
	switch c := meta.Command.(type) {
	case common.Execute:
		byteOrder.PutUint64(result[pos:pos+8], c.CommandID)
		byteOrder.PutUint32(result[pos+8:pos+12], uint32(c.Timeout))
		pos += executeSize
	case common.GetResult:
		byteOrder.PutUint64(result[pos:pos+8], c.CommandID)
		pos += commandSize
		// Only the answer carries the finalization id
		if answer != nil {
			byteOrder.PutUint64(result[pos:pos+8], c.FinalizationID)
			pos += 8
		}
	case common.Finalize:
		byteOrder.PutUint64(result[pos:pos+8], c.CommandID)
		byteOrder.PutUint64(result[pos+8:pos+16], c.FinalizationID)
		pos += finalizeSize
	}

	// Write answer trailer
	if answer != nil {
		byteOrder.PutUint16(result[pos:pos+2], uint16(answer.Code))
		pos += codeSize
		if answer.Code != common.ResultOK && answer.Message != "" {
			pos += copy(result[pos:], answer.Message)
		}
	}

	copy(result[pos:], payload)
	return result, nil
}

// sizeBytes returns the number of bytes needed for the meta and answer trailer
func (s binarySerializerImpl) sizeBytes(meta common.Meta, answer *common.Answer) int {
	size := headerSize
	switch meta.Command.(type) {
	case common.Execute:
		size += executeSize
	case common.GetResult:
		size += commandSize
		if answer != nil {
			size += 8
		}
	case common.Finalize:
		size += finalizeSize
	}
	if answer != nil {
		size += codeSize
		if answer.Code != common.ResultOK {
			size += len(answer.Message)
		}
	}
	return size
}

// parse reads the meta from r. On a format error after the header was read the
// returned meta holds the header and a zero valued command of the parsed type.
func (s binarySerializerImpl) parse(r *reader, isAnswer bool) (common.Meta, error) {
	var meta common.Meta

	senderID, ok1 := r.uint32()
	messageID, ok2 := r.uint64()
	typ, ok3 := r.uint8()
	if !ok1 || !ok2 || !ok3 {
		return meta, common.NewError(common.ResultWrongFormat, "message too short for header (%d bytes)", len(r.buf))
	}
	meta.SenderID = senderID
	meta.MessageID = messageID

	reqType := common.RequestType(typ)
	switch reqType {
	case common.ReqTGetState:
		meta.Command = common.GetState{}

	case common.ReqTExecute:
		meta.Command = common.Execute{}
		commandID, ok1 := r.uint64()
		timeout, ok2 := r.uint32()
		if !ok1 || !ok2 {
			return meta, errTruncated(reqType)
		}
		meta.Command = common.Execute{CommandID: commandID, Timeout: int32(timeout)}

	case common.ReqTGetResult:
		meta.Command = common.GetResult{}
		commandID, ok := r.uint64()
		if !ok {
			return meta, errTruncated(reqType)
		}
		cmd := common.GetResult{CommandID: commandID}
		if isAnswer {
			if cmd.FinalizationID, ok = r.uint64(); !ok {
				return meta, errTruncated(reqType)
			}
		}
		meta.Command = cmd

	case common.ReqTFinalize:
		meta.Command = common.Finalize{}
		commandID, ok1 := r.uint64()
		finalizationID, ok2 := r.uint64()
		if !ok1 || !ok2 {
			return meta, errTruncated(reqType)
		}
		meta.Command = common.Finalize{CommandID: commandID, FinalizationID: finalizationID}

	case common.ReqTStop:
		meta.Command = common.Stop{}

	default:
		return meta, common.NewError(common.ResultWrongValue, "unknown request type %d", typ)
	}

	return meta, nil
}

func errTruncated(t common.RequestType) error {
	return common.NewError(common.ResultWrongFormat, "message too short for %s fields", t)
}

// --------------------------------------------------------------------------
// Bounds checked reader
// --------------------------------------------------------------------------

// reader reads fixed width little endian integers from a byte slice.
// Every getter reports false instead of reading past the end.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) take(n int) ([]byte, bool) {
	if r.pos+n > len(r.buf) {
		return nil, false
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, true
}

func (r *reader) uint8() (uint8, bool) {
	b, ok := r.take(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (r *reader) uint16() (uint16, bool) {
	b, ok := r.take(2)
	if !ok {
		return 0, false
	}
	return byteOrder.Uint16(b), true
}

func (r *reader) uint32() (uint32, bool) {
	b, ok := r.take(4)
	if !ok {
		return 0, false
	}
	return byteOrder.Uint32(b), true
}

func (r *reader) uint64() (uint64, bool) {
	b, ok := r.take(8)
	if !ok {
		return 0, false
	}
	return byteOrder.Uint64(b), true
}

// rest returns the unread bytes (nil if there are none)
func (r *reader) rest() []byte {
	if r.pos >= len(r.buf) {
		return nil
	}
	return r.buf[r.pos:]
}

// remaining returns the number of unread bytes
func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) String() string {
	return fmt.Sprintf("reader{pos=%d len=%d}", r.pos, len(r.buf))
}
