package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/rcq/rpc/common"
)

// --------------------------------------------------------------------------
// Lifecycle (docu see queue.ICommandQueue)
// --------------------------------------------------------------------------

func (q *commandQueue) Start() error {
	q.lifecycleMu.Lock()
	defer q.lifecycleMu.Unlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}
	if q.cancel != nil {
		return fmt.Errorf("processor is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	q.procWG.Add(1)
	go q.process(ctx)

	Logger.Infof("Started processor (mode %s, single serial %t, %d slots)",
		q.config.Mode, q.config.SingleSerial, q.config.Size)
	return nil
}

func (q *commandQueue) Stop() {
	q.lifecycleMu.Lock()
	defer q.lifecycleMu.Unlock()
	q.stopLocked()
}

func (q *commandQueue) Close() {
	q.lifecycleMu.Lock()
	defer q.lifecycleMu.Unlock()

	if q.closed {
		return
	}
	q.stopLocked()
	q.closed = true
	q.metrics.close()
}

// stopLocked stops the processor, q.lifecycleMu must be held
func (q *commandQueue) stopLocked() {
	if q.cancel == nil {
		return
	}
	q.cancel()
	q.cancel = nil

	// Wake the processor so it observes the cancelled context
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()

	q.procWG.Wait()
	q.workerWG.Wait()

	snap := q.Snapshot()
	Logger.Infof("Stopped processor: %d executions (mean %s, mean output %.0f bytes), %d queued, %d results held",
		snap.Executed, snap.MeanExecution, snap.MeanOutputSize, snap.QueueLen, snap.ResultSlots)
}

// --------------------------------------------------------------------------
// Processor
// --------------------------------------------------------------------------

// process is the body of the processor goroutine. It moves eligible slots
// from the queue to EXECUTING and starts one worker per slot.
func (q *commandQueue) process(ctx context.Context) {
	defer q.procWG.Done()
	q.procState.Store(uint32(common.ProcessorReady))
	defer q.procState.Store(uint32(common.ProcessorStopped))

	for {
		var s *slot

		q.mu.Lock()
		for ctx.Err() == nil {
			if s = q.selectNext(); s != nil {
				q.queue.remove(s)
				s.state = SlotExecuting
				break
			}
			q.cond.Wait()
		}
		q.mu.Unlock()

		if s == nil {
			return
		}

		q.procState.Store(uint32(common.ProcessorProcessing))
		q.workerWG.Add(1)
		go q.work(ctx, s)
		q.procState.Store(uint32(common.ProcessorReady))
	}
}

// selectNext returns the next queued slot that may run under the processing
// mode, nil if there is none. Must be called with q.mu held.
func (q *commandQueue) selectNext() *slot {
	switch q.config.Mode {
	case common.ModeSerialForAll:
		for _, s := range q.slots {
			if s != nil && s.state == SlotExecuting {
				return nil
			}
		}
		return q.queue.peek()

	case common.ModeSerialForClient:
		for _, candidate := range q.queue.items {
			if !q.isExecuting(candidate.senderID) {
				return candidate
			}
		}
		return nil

	default:
		return q.queue.peek()
	}
}

// isExecuting reports whether a command of senderID is running
func (q *commandQueue) isExecuting(senderID uint32) bool {
	for _, s := range q.slots {
		if s != nil && s.state == SlotExecuting && s.senderID == senderID {
			return true
		}
	}
	return false
}

// --------------------------------------------------------------------------
// Worker
// --------------------------------------------------------------------------

// work runs the body of an EXECUTING slot and stores the result
func (q *commandQueue) work(ctx context.Context, s *slot) {
	defer q.workerWG.Done()

	q.mu.Lock()
	input := s.input
	Logger.Debugf("Executing %s", s)
	q.mu.Unlock()

	start := time.Now()
	output, err := q.runBody(ctx, input)
	q.metrics.executed(start, len(output), err)

	q.mu.Lock()
	defer q.mu.Unlock()

	s.resultTime = q.now()
	if err != nil {
		Logger.Warningf("Command 0x%X of sender 0x%X failed: %v", s.cmd.CommandID, s.senderID, err)
	}

	// Fire and forget commands drop their result
	if s.cmd.Timeout == 0 {
		s.free()
	} else {
		s.finalizationID = q.nextFinID.Add(1)
		s.output = output
		s.err = err
		s.state = SlotResult
	}
	Logger.Debugf("Finished %s", s)
	q.cond.Broadcast()
}

// runBody calls the body and turns a panic into an error
func (q *commandQueue) runBody(ctx context.Context, input []byte) (output []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = fmt.Errorf("command body panicked: %v", r)
		}
	}()
	return q.body.Execute(ctx, input)
}
