package common

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Processing Mode
// --------------------------------------------------------------------------

// ProcessingMode selects how the processor schedules queued commands.
// The numeric values are part of the GETSTATE payload.
type ProcessingMode uint8

const (
	// ModeParallelForAll executes queued commands concurrently, limited only by the slot count
	ModeParallelForAll ProcessingMode = 1
	// ModeSerialForClient serializes the commands of one sender, different senders run concurrently
	ModeSerialForClient ProcessingMode = 2
	// ModeSerialForAll executes at most one command at a time service wide
	ModeSerialForAll ProcessingMode = 3
)

// String returns the flag value of the ProcessingMode
func (m ProcessingMode) String() string {
	switch m {
	case ModeParallelForAll:
		return "parallel"
	case ModeSerialForClient:
		return "serial-client"
	case ModeSerialForAll:
		return "serial-all"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseProcessingMode converts a flag value (see ProcessingMode.String) to a ProcessingMode
func ParseProcessingMode(s string) (ProcessingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "parallel", "parallel-for-all":
		return ModeParallelForAll, nil
	case "serial-client", "serial-for-client":
		return ModeSerialForClient, nil
	case "serial-all", "serial-for-all":
		return ModeSerialForAll, nil
	default:
		return 0, fmt.Errorf("invalid processing mode: %s (expected one of: parallel, serial-client, serial-all)", s)
	}
}

// --------------------------------------------------------------------------
// Processor State
// --------------------------------------------------------------------------

// ProcessorState is the state of the command processor goroutine
type ProcessorState uint8

const (
	ProcessorStopped    ProcessorState = 1 // Not started or stopped
	ProcessorReady      ProcessorState = 2 // Waiting for an eligible command
	ProcessorProcessing ProcessorState = 3 // Dispatching a command to a worker
)

// String returns a string representation of the ProcessorState
func (s ProcessorState) String() string {
	switch s {
	case ProcessorStopped:
		return "stopped"
	case ProcessorReady:
		return "ready"
	case ProcessorProcessing:
		return "processing"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// --------------------------------------------------------------------------
// Service State (GETSTATE payload)
// --------------------------------------------------------------------------

// ServiceState is the payload of a successful GETSTATE answer.
// Times are unix milliseconds, 0 means the event did not happen yet.
type ServiceState struct {
	LastStartTime       int64
	LastAutoRestartTime int64
	LastStopTime        int64

	Mode         ProcessingMode
	SingleSerial bool
	Processor    ProcessorState

	FreeSlots   uint16 // Slots that can take a new command
	BusySlots   uint16 // Slots that are queued or executing
	ResultSlots uint16 // Slots holding a result
	QueueFree   uint16 // Remaining queue capacity
	QueueLen    uint16 // Commands waiting for execution
}

// String returns a formatted string representation of the state
func (s *ServiceState) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Service")
	addField("Last Start", fmt.Sprintf("%d", s.LastStartTime))
	addField("Last Auto Restart", fmt.Sprintf("%d", s.LastAutoRestartTime))
	addField("Last Stop", fmt.Sprintf("%d", s.LastStopTime))

	addSection("Processor")
	addField("Mode", s.Mode.String())
	addField("Single Serial", fmt.Sprintf("%t", s.SingleSerial))
	addField("State", s.Processor.String())

	addSection("Slots")
	addField("Free", fmt.Sprintf("%d", s.FreeSlots))
	addField("Queued / Executing", fmt.Sprintf("%d", s.BusySlots))
	addField("Result", fmt.Sprintf("%d", s.ResultSlots))
	addField("Queue Length", fmt.Sprintf("%d", s.QueueLen))
	addField("Queue Free", fmt.Sprintf("%d", s.QueueFree))

	return sb.String()
}
