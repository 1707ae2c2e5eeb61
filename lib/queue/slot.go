package queue

import (
	"fmt"
	"net"
	"time"

	"github.com/ValentinKolb/rcq/rpc/common"
)

// SlotState is the lifecycle state of a slot
type SlotState uint8

const (
	SlotFree      SlotState = iota // Can take a new command
	SlotQueued                     // Waiting in the queue
	SlotExecuting                  // The body is running
	SlotResult                     // Holds a result until finalized or timed out
)

// String returns a string representation of the SlotState
func (s SlotState) String() string {
	switch s {
	case SlotFree:
		return "FREE"
	case SlotQueued:
		return "QUEUED"
	case SlotExecuting:
		return "EXECUTING"
	case SlotResult:
		return "RESULT"
	default:
		return fmt.Sprintf("SlotState(%d)", uint8(s))
	}
}

// slot holds one command for its whole lifecycle. Slots are recycled, never
// released. All fields are guarded by the queue mutex.
type slot struct {
	index int
	state SlotState

	addr        net.Addr
	receiveTime time.Time
	resultTime  time.Time

	senderID uint32
	cmd      common.Execute // Timeout is non negative after admission

	finalizationID uint64
	input          []byte
	output         []byte
	err            error
}

// isSameCommand reports whether the slot holds the command of senderID
func (s *slot) isSameCommand(senderID uint32, commandID uint64) bool {
	return s.senderID == senderID && s.cmd.CommandID == commandID
}

// expired reports whether the retention time of the slot has passed
func (s *slot) expired(now time.Time) bool {
	return now.Sub(s.receiveTime) > time.Duration(s.cmd.Timeout)*time.Millisecond
}

// free marks the slot as free and drops the buffers it references
func (s *slot) free() {
	s.state = SlotFree
	s.output = nil
	s.err = nil
}

func (s *slot) String() string {
	return fmt.Sprintf("slot{idx=%d state=%s sender=0x%X cmd=0x%X timeout=%d finID=0x%X}",
		s.index, s.state, s.senderID, s.cmd.CommandID, s.cmd.Timeout, s.finalizationID)
}
