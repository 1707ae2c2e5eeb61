package base

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/sigurn/crc16"
)

// frameHeaderSize is the size of the frame header: payload length + CRC16
const frameHeaderSize = 4

// maxFramePayload is the largest payload the 16 bit length field can describe
const maxFramePayload = 0xFFFF

// ErrMalformedMessage is returned for datagrams that are not a valid frame
var ErrMalformedMessage = errors.New("malformed message")

var (
	crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

	malformedFrames = metrics.NewCounter("rcq_transport_malformed_frames_total")
)

// EncodeFrame wraps payload into a frame with the format:
// - 2 bytes: payload length (uint16, little endian)
// - 2 bytes: CRC16 of the payload (uint16, little endian)
// - N bytes: payload
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > maxFramePayload {
		return nil, fmt.Errorf("payload of %d bytes exceeds frame limit of %d bytes", len(payload), maxFramePayload)
	}
	frame := make([]byte, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(frame[0:2], uint16(len(payload)))
	binary.LittleEndian.PutUint16(frame[2:4], crc16.Checksum(payload, crcTable))
	copy(frame[frameHeaderSize:], payload)
	return frame, nil
}

// DecodeFrame validates a datagram and returns its payload.
// The returned slice shares memory with datagram.
func DecodeFrame(datagram []byte) ([]byte, error) {
	if len(datagram) < frameHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the frame header", ErrMalformedMessage, len(datagram))
	}
	length := int(binary.LittleEndian.Uint16(datagram[0:2]))
	if length != len(datagram)-frameHeaderSize {
		return nil, fmt.Errorf("%w: declared length %d, got %d", ErrMalformedMessage, length, len(datagram)-frameHeaderSize)
	}
	payload := datagram[frameHeaderSize:]
	expected := binary.LittleEndian.Uint16(datagram[2:4])
	if crc := crc16.Checksum(payload, crcTable); crc != expected {
		return nil, fmt.Errorf("%w: crc 0x%04X does not match 0x%04X", ErrMalformedMessage, crc, expected)
	}
	return payload, nil
}
