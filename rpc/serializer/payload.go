package serializer

import (
	"github.com/ValentinKolb/rcq/rpc/common"
)

// stateSize is the size of an encoded common.ServiceState
const stateSize = 3*8 + 3*1 + 5*2

// --------------------------------------------------------------------------
// GETSTATE payload
// --------------------------------------------------------------------------

// EncodeServiceState encodes the payload of a successful GETSTATE answer.
//
// Layout: three int64 times, mode, single serial flag (0 if enabled),
// processor state, then the five uint16 counters.
func EncodeServiceState(s common.ServiceState) []byte {
	b := make([]byte, stateSize)
	byteOrder.PutUint64(b[0:8], uint64(s.LastStartTime))
	byteOrder.PutUint64(b[8:16], uint64(s.LastAutoRestartTime))
	byteOrder.PutUint64(b[16:24], uint64(s.LastStopTime))
	b[24] = byte(s.Mode)
	if s.SingleSerial {
		b[25] = 0
	} else {
		b[25] = 1
	}
	b[26] = byte(s.Processor)
	byteOrder.PutUint16(b[27:29], s.FreeSlots)
	byteOrder.PutUint16(b[29:31], s.BusySlots)
	byteOrder.PutUint16(b[31:33], s.ResultSlots)
	byteOrder.PutUint16(b[33:35], s.QueueFree)
	byteOrder.PutUint16(b[35:37], s.QueueLen)
	return b
}

// DecodeServiceState decodes the payload of a successful GETSTATE answer
func DecodeServiceState(b []byte) (common.ServiceState, error) {
	var s common.ServiceState
	if len(b) < stateSize {
		return s, common.NewError(common.ResultWrongFormat, "state payload too short (%d of %d bytes)", len(b), stateSize)
	}
	s.LastStartTime = int64(byteOrder.Uint64(b[0:8]))
	s.LastAutoRestartTime = int64(byteOrder.Uint64(b[8:16]))
	s.LastStopTime = int64(byteOrder.Uint64(b[16:24]))
	s.Mode = common.ProcessingMode(b[24])
	s.SingleSerial = b[25] == 0
	s.Processor = common.ProcessorState(b[26])
	s.FreeSlots = byteOrder.Uint16(b[27:29])
	s.BusySlots = byteOrder.Uint16(b[29:31])
	s.ResultSlots = byteOrder.Uint16(b[31:33])
	s.QueueFree = byteOrder.Uint16(b[33:35])
	s.QueueLen = byteOrder.Uint16(b[35:37])
	return s, nil
}

// --------------------------------------------------------------------------
// STOP payload
// --------------------------------------------------------------------------

// EncodeStopPayload encodes the restart delay of a STOP request in milliseconds.
// A negative delay stops the service for good.
func EncodeStopPayload(restartDelayMs int32) []byte {
	b := make([]byte, 4)
	byteOrder.PutUint32(b, uint32(restartDelayMs))
	return b
}

// DecodeStopPayload decodes the optional restart delay of a STOP request.
// ok is false if the payload carries no delay.
func DecodeStopPayload(b []byte) (restartDelayMs int32, ok bool, err error) {
	r := &reader{buf: b}
	if r.remaining() == 0 {
		return 0, false, nil
	}
	v, ok := r.uint32()
	if !ok {
		return 0, false, common.NewError(common.ResultWrongFormat, "stop payload has %d bytes, expected 4", len(b))
	}
	return int32(v), true, nil
}
