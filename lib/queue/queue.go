package queue

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/rcq/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("queue")

// commandQueue implements ICommandQueue. One mutex guards the slots and the
// fifo, the condition variable wakes the processor.
type commandQueue struct {
	config Config
	body   CommandBody
	now    func() time.Time

	mu    sync.Mutex
	cond  *sync.Cond
	slots []*slot // Allocated lazily, nil means free
	queue *fifo

	// nextFinID is the source of finalization ids
	nextFinID atomic.Uint64

	// Processor lifecycle
	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	closed      bool
	procWG      sync.WaitGroup
	workerWG    sync.WaitGroup
	procState   atomic.Uint32

	metrics *queueMetrics
}

// NewCommandQueue creates a new command queue. The processor is not started.
func NewCommandQueue(config Config, body CommandBody) (ICommandQueue, error) {
	if config.Size <= 0 || config.Size > 0xFFFF {
		return nil, fmt.Errorf("queue size must be between 1 and 65535, got %d", config.Size)
	}
	switch config.Mode {
	case common.ModeParallelForAll, common.ModeSerialForClient, common.ModeSerialForAll:
	default:
		return nil, fmt.Errorf("invalid processing mode %d", config.Mode)
	}
	if body == nil {
		return nil, fmt.Errorf("no command body provided")
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	q := &commandQueue{
		config: config,
		body:   body,
		now:    now,
		slots:  make([]*slot, config.Size),
		queue:  newFifo(config.Size),
	}
	q.cond = sync.NewCond(&q.mu)
	q.nextFinID.Store(uint64(now().UnixMilli()))
	q.procState.Store(uint32(common.ProcessorStopped))
	q.metrics = newQueueMetrics(q)

	return q, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see queue.ICommandQueue)
// --------------------------------------------------------------------------

func (q *commandQueue) Execute(addr net.Addr, receivedAt time.Time, senderID uint32, cmd common.Execute, input []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx, err := q.admit(senderID, cmd)
	if err != nil {
		q.metrics.rejected(err)
		Logger.Infof("Rejected command 0x%X of sender 0x%X: %v", cmd.CommandID, senderID, err)
		return err
	}

	s := q.slots[idx]
	if s == nil {
		s = &slot{index: idx}
		q.slots[idx] = s
	}

	// The sign only selects no-wait admission, the magnitude is the retention
	cmd.Timeout = retention(cmd.Timeout)

	s.state = SlotQueued
	s.addr = addr
	s.receiveTime = receivedAt
	s.resultTime = time.Time{}
	s.senderID = senderID
	s.cmd = cmd
	s.finalizationID = 0
	s.input = append([]byte(nil), input...)
	s.output = nil
	s.err = nil

	q.queue.push(s)
	q.metrics.admitted(len(input))
	q.cond.Broadcast()

	Logger.Debugf("Queued %s", s)
	return nil
}

func (q *commandQueue) GetResult(senderID uint32, commandID uint64) (Result, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := q.find(senderID, commandID)
	if s == nil {
		return Result{}, common.NewError(common.ResultCommandNotFound, "no slot holds command 0x%X", commandID)
	}

	if s.state != SlotResult {
		return Result{}, common.NewError(common.ResultNotReady, "command 0x%X is %s", commandID, s.state)
	}

	result := Result{FinalizationID: s.finalizationID}
	if s.err != nil {
		return result, common.NewError(common.ResultError, "%v", s.err)
	}
	result.Output = append([]byte(nil), s.output...)
	return result, nil
}

func (q *commandQueue) Finalize(senderID uint32, commandID, finalizationID uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := q.find(senderID, commandID)
	if s == nil {
		return common.NewError(common.ResultCommandNotFound, "no slot holds command 0x%X", commandID)
	}

	if s.state != SlotResult {
		return common.NewError(common.ResultNotReady, "slot of command 0x%X holds no result (state %s)", commandID, s.state)
	}
	if s.finalizationID != finalizationID {
		return common.NewError(common.ResultWrongFinalizationID,
			"wrong finalization id for command 0x%X (expected 0x%X, got 0x%X)", commandID, s.finalizationID, finalizationID)
	}

	s.free()
	q.cond.Broadcast()
	Logger.Debugf("Finalized command 0x%X of sender 0x%X", commandID, senderID)
	return nil
}

func (q *commandQueue) Snapshot() Snapshot {
	q.mu.Lock()
	snap := Snapshot{
		Mode:         q.config.Mode,
		SingleSerial: q.config.SingleSerial,
		QueueLen:     q.queue.len(),
		QueueCap:     q.queue.cap,
	}
	for _, s := range q.slots {
		switch {
		case s == nil || s.state == SlotFree:
			snap.FreeSlots++
		case s.state == SlotResult:
			snap.ResultSlots++
		default:
			snap.BusySlots++
		}
	}
	q.mu.Unlock()

	snap.Processor = common.ProcessorState(q.procState.Load())
	snap.Executed = q.metrics.execTimer.Count()
	snap.MeanExecution = time.Duration(q.metrics.execTimer.Mean())
	snap.AdmissionRate1m = q.metrics.admissions.Rate1()
	snap.MeanInputSize = q.metrics.inputSizes.Mean()
	snap.MeanOutputSize = q.metrics.outputSizes.Mean()
	return snap
}

func (q *commandQueue) WriteMetrics(w io.Writer) {
	q.metrics.set.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Helper Methods (must be called with q.mu held)
// --------------------------------------------------------------------------

// admit runs the purge pass and the admission checks and returns the index of
// the slot the command goes to
func (q *commandQueue) admit(senderID uint32, cmd common.Execute) (int, error) {
	now := q.now()
	reclaimed := 0
	freeIdx := -1
	dupIdx, conflictIdx := -1, -1

	// release frees slot i and remembers it if no free slot was found yet
	release := func(i int, s *slot) {
		if s.state == SlotQueued {
			q.queue.remove(s)
		}
		Logger.Debugf("Reclaiming %s", s)
		s.free()
		reclaimed++
		if freeIdx == -1 {
			freeIdx = i
		}
	}

	// All slots are visited, purging is not allowed to stop early
	for i, s := range q.slots {
		if s == nil || s.state == SlotFree {
			if freeIdx == -1 {
				freeIdx = i
			}
			continue
		}

		if s.state != SlotExecuting && s.expired(now) {
			release(i, s)
			continue
		}

		if q.config.SingleSerial && conflictIdx == -1 {
			conflicting := false
			switch q.config.Mode {
			case common.ModeSerialForAll:
				conflicting = true
			case common.ModeSerialForClient:
				conflicting = s.senderID == senderID
			}
			if conflicting {
				if s.state == SlotResult {
					release(i, s)
					continue
				}
				conflictIdx = i
			}
		}

		if dupIdx == -1 && s.isSameCommand(senderID, cmd.CommandID) {
			dupIdx = i
		}
	}

	// Reclaimed slots may unblock the processor even if the command is rejected
	if reclaimed > 0 {
		q.cond.Broadcast()
	}

	switch {
	case dupIdx != -1:
		return -1, common.NewError(common.ResultDuplicateCommand, "command 0x%X of sender 0x%X is already in slot %d",
			cmd.CommandID, senderID, dupIdx)
	case conflictIdx != -1 && q.config.Mode == common.ModeSerialForAll:
		return -1, common.NewError(common.ResultCannotExecute, "only one command at a time in single serial mode (slot %d)",
			conflictIdx)
	case conflictIdx != -1:
		return -1, common.NewError(common.ResultCannotExecute, "only one command per sender in single serial mode (slot %d)",
			conflictIdx)
	case freeIdx == -1:
		return -1, common.NewError(common.ResultCannotExecute, "no free slot")
	case cmd.Timeout <= 0 && !q.queue.empty():
		return -1, common.NewError(common.ResultCannotExecute, "no-wait command rejected, %d commands queued",
			q.queue.len())
	}
	return freeIdx, nil
}

// retention returns the magnitude of an execute timeout. math.MinInt32 has
// no positive counterpart and is clamped to math.MaxInt32.
func retention(timeout int32) int32 {
	switch {
	case timeout == math.MinInt32:
		return math.MaxInt32
	case timeout < 0:
		return -timeout
	default:
		return timeout
	}
}

// find returns the live slot holding the command, nil if there is none
func (q *commandQueue) find(senderID uint32, commandID uint64) *slot {
	for _, s := range q.slots {
		if s != nil && s.state != SlotFree && s.isSameCommand(senderID, commandID) {
			return s
		}
	}
	return nil
}
