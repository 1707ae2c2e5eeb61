package queue

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/ValentinKolb/rcq/rpc/common"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// CommandBody executes the device specific work of one command. It is called
// outside the queue lock on its own goroutine. ctx is cancelled when the queue
// is stopped.
type CommandBody interface {
	Execute(ctx context.Context, input []byte) (output []byte, err error)
}

// CommandBodyFunc adapts a function to the CommandBody interface
type CommandBodyFunc func(ctx context.Context, input []byte) ([]byte, error)

// Execute calls f(ctx, input)
func (f CommandBodyFunc) Execute(ctx context.Context, input []byte) ([]byte, error) {
	return f(ctx, input)
}

// ICommandQueue is the slot based command queue of the service.
// All errors are of type *common.Error.
type ICommandQueue interface {
	// Execute admits a command. On success the command is queued and the
	// input is copied, the result has to be fetched with GetResult.
	Execute(addr net.Addr, receivedAt time.Time, senderID uint32, cmd common.Execute, input []byte) (err error)
	// GetResult returns the result of a finished command. If the command body
	// failed, the error has code common.ResultError and the result still
	// carries the finalization id. GetResult does not change any state.
	GetResult(senderID uint32, commandID uint64) (result Result, err error)
	// Finalize releases the slot of a finished command if finalizationID matches
	Finalize(senderID uint32, commandID, finalizationID uint64) (err error)
	// Snapshot returns the current slot and processor counters
	Snapshot() Snapshot
	// Start launches the processor. Commands queued before are executed.
	Start() (err error)
	// Stop cancels running bodies and waits for the processor and all
	// workers to exit. Queued commands and results are kept.
	Stop()
	// Close stops the processor and releases the instrumentation of the
	// queue. The queue cannot be started again.
	Close()
	// WriteMetrics writes the gauges of this queue in Prometheus text format
	WriteMetrics(w io.Writer)
}

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Config holds the settings of a command queue
type Config struct {
	// Size is the number of slots (and the queue capacity)
	Size int
	// Mode selects the scheduling policy of the processor
	Mode common.ProcessingMode
	// SingleSerial limits admission to one live command service wide
	// (ModeSerialForAll) or per sender (ModeSerialForClient)
	SingleSerial bool
	// Now returns the current time, time.Now if nil
	Now func() time.Time
}

// Result is the outcome of a finished command
type Result struct {
	FinalizationID uint64
	Output         []byte
}

// Snapshot is a consistent view of the queue counters
type Snapshot struct {
	Mode         common.ProcessingMode
	SingleSerial bool
	Processor    common.ProcessorState

	FreeSlots   int // Free and never allocated slots
	BusySlots   int // Queued or executing slots
	ResultSlots int // Slots holding a result
	QueueLen    int
	QueueCap    int

	Executed        int64         // Finished executions since the queue was created
	MeanExecution   time.Duration // Mean duration of a body execution
	AdmissionRate1m float64       // Successful admissions per second, one minute average
	MeanInputSize   float64       // Mean payload size of admitted commands
	MeanOutputSize  float64       // Mean payload size of successful results
}
