package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/rcq/rpc/common"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// The meter arbiter of go-metrics is a process wide goroutine
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("github.com/rcrowley/go-metrics.(*meterArbiter).tick"))
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var echoBody = CommandBodyFunc(func(ctx context.Context, input []byte) ([]byte, error) {
	return append([]byte("echo:"), input...), nil
})

// newTestQueue creates a queue with a fake clock, the processor is not started
func newTestQueue(t *testing.T, size int, mode common.ProcessingMode, singleSerial bool, body CommandBody) (*commandQueue, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	q, err := NewCommandQueue(Config{Size: size, Mode: mode, SingleSerial: singleSerial, Now: clock.Now}, body)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}
	t.Cleanup(q.Close)
	return q.(*commandQueue), clock
}

// startQueue starts the processor and stops it when the test ends
func startQueue(t *testing.T, q ICommandQueue) {
	t.Helper()
	if err := q.Start(); err != nil {
		t.Fatalf("Failed to start processor: %v", err)
	}
	t.Cleanup(q.Stop)
}

func execute(q ICommandQueue, clock *fakeClock, sender uint32, cmdID uint64, timeout int32, input string) error {
	return q.Execute(nil, clock.Now(), sender, common.Execute{CommandID: cmdID, Timeout: timeout}, []byte(input))
}

func expectCode(t *testing.T, err error, code common.ResultCode) {
	t.Helper()
	if got := common.CodeOf(err); got != code {
		t.Errorf("Expected code %s, got %s (%v)", code, got, err)
	}
}

// waitFor polls cond until it is true or the deadline passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

// waitResult polls GetResult until the command is no longer ResultNotReady
func waitResult(t *testing.T, q ICommandQueue, sender uint32, cmdID uint64) (Result, error) {
	t.Helper()
	var result Result
	var err error
	waitFor(t, fmt.Sprintf("result of 0x%X", cmdID), func() bool {
		result, err = q.GetResult(sender, cmdID)
		return common.CodeOf(err) != common.ResultNotReady
	})
	return result, err
}

// --------------------------------------------------------------------------
// Construction
// --------------------------------------------------------------------------

func TestNewCommandQueueValidation(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		body   CommandBody
	}{
		{"zero size", Config{Size: 0, Mode: common.ModeParallelForAll}, echoBody},
		{"too large", Config{Size: 0x10000, Mode: common.ModeParallelForAll}, echoBody},
		{"bad mode", Config{Size: 1, Mode: 9}, echoBody},
		{"no body", Config{Size: 1, Mode: common.ModeParallelForAll}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCommandQueue(tt.config, tt.body); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

// --------------------------------------------------------------------------
// Admission
// --------------------------------------------------------------------------

func TestDuplicateAdmission(t *testing.T) {
	for _, mode := range []common.ProcessingMode{common.ModeParallelForAll, common.ModeSerialForClient, common.ModeSerialForAll} {
		for _, singleSerial := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/single=%t", mode, singleSerial), func(t *testing.T) {
				q, clock := newTestQueue(t, 4, mode, singleSerial, echoBody)

				if err := execute(q, clock, 1, 100, 1000, "a"); err != nil {
					t.Fatalf("First admission failed: %v", err)
				}
				// The duplicate is reported even where a serial conflict exists
				expectCode(t, execute(q, clock, 1, 100, 1000, "a"), common.ResultDuplicateCommand)

				if snap := q.Snapshot(); snap.BusySlots != 1 || snap.QueueLen != 1 {
					t.Errorf("Expected one queued command, got %+v", snap)
				}
			})
		}
	}
}

func TestCapacityBound(t *testing.T) {
	q, clock := newTestQueue(t, 2, common.ModeParallelForAll, false, echoBody)

	for i := uint64(1); i <= 2; i++ {
		if err := execute(q, clock, uint32(i), i, 1000, "x"); err != nil {
			t.Fatalf("Admission %d failed: %v", i, err)
		}
	}
	expectCode(t, execute(q, clock, 3, 3, 1000, "x"), common.ResultCannotExecute)

	snap := q.Snapshot()
	if snap.FreeSlots != 0 || snap.BusySlots != 2 || snap.QueueLen != 2 || snap.QueueCap != 2 {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
}

func TestNoWaitAdmission(t *testing.T) {
	q, clock := newTestQueue(t, 4, common.ModeParallelForAll, false, echoBody)

	// Admitted into an empty queue, the magnitude becomes the retention
	if err := execute(q, clock, 1, 1, -500, "x"); err != nil {
		t.Fatalf("No-wait admission into empty queue failed: %v", err)
	}
	if timeout := q.slots[0].cmd.Timeout; timeout != 500 {
		t.Errorf("Expected stored timeout 500, got %d", timeout)
	}

	expectCode(t, execute(q, clock, 2, 2, -500, "x"), common.ResultCannotExecute)
	expectCode(t, execute(q, clock, 2, 3, 0, "x"), common.ResultCannotExecute)

	// Waiting commands are still admitted
	if err := execute(q, clock, 2, 4, 500, "x"); err != nil {
		t.Errorf("Waiting admission failed: %v", err)
	}
}

func TestNoWaitMinimumTimeoutIsClamped(t *testing.T) {
	q, clock := newTestQueue(t, 2, common.ModeParallelForAll, false, echoBody)

	if err := execute(q, clock, 1, 1, math.MinInt32, "x"); err != nil {
		t.Fatalf("No-wait admission into empty queue failed: %v", err)
	}
	if timeout := q.slots[0].cmd.Timeout; timeout != math.MaxInt32 {
		t.Errorf("Expected stored timeout %d, got %d", int32(math.MaxInt32), timeout)
	}

	// The slot must not count as expired on the next purge pass
	clock.Advance(time.Hour)
	if err := execute(q, clock, 2, 2, 1000, "y"); err != nil {
		t.Fatalf("Second admission failed: %v", err)
	}
	if snap := q.Snapshot(); snap.QueueLen != 2 {
		t.Errorf("Expected both commands queued, got %+v", snap)
	}
}

func TestRetention(t *testing.T) {
	tests := []struct {
		timeout int32
		want    int32
	}{
		{0, 0},
		{500, 500},
		{-500, 500},
		{math.MaxInt32, math.MaxInt32},
		{-math.MaxInt32, math.MaxInt32},
		{math.MinInt32, math.MaxInt32},
	}

	for _, tt := range tests {
		if got := retention(tt.timeout); got != tt.want {
			t.Errorf("retention(%d) = %d, expected %d", tt.timeout, got, tt.want)
		}
	}
}

func TestSingleSerialForClient(t *testing.T) {
	q, clock := newTestQueue(t, 4, common.ModeSerialForClient, true, echoBody)

	if err := execute(q, clock, 1, 1, 10000, "a"); err != nil {
		t.Fatalf("Admission failed: %v", err)
	}
	expectCode(t, execute(q, clock, 1, 2, 10000, "b"), common.ResultCannotExecute)
	if err := execute(q, clock, 2, 1, 10000, "c"); err != nil {
		t.Errorf("Other sender was rejected: %v", err)
	}
}

func TestSingleSerialForAll(t *testing.T) {
	q, clock := newTestQueue(t, 4, common.ModeSerialForAll, true, echoBody)

	if err := execute(q, clock, 1, 1, 10000, "a"); err != nil {
		t.Fatalf("Admission failed: %v", err)
	}
	expectCode(t, execute(q, clock, 2, 1, 10000, "b"), common.ResultCannotExecute)
	expectCode(t, execute(q, clock, 1, 2, 10000, "c"), common.ResultCannotExecute)
}

func TestSingleSerialReclaimsResult(t *testing.T) {
	for _, mode := range []common.ProcessingMode{common.ModeSerialForClient, common.ModeSerialForAll} {
		t.Run(mode.String(), func(t *testing.T) {
			q, clock := newTestQueue(t, 4, mode, true, echoBody)
			startQueue(t, q)

			if err := execute(q, clock, 1, 1, 10000, "a"); err != nil {
				t.Fatalf("Admission failed: %v", err)
			}
			if _, err := waitResult(t, q, 1, 1); err != nil {
				t.Fatalf("Result failed: %v", err)
			}

			// A held result does not block the next command, it is dropped
			if err := execute(q, clock, 1, 2, 10000, "b"); err != nil {
				t.Fatalf("Admission after result failed: %v", err)
			}
			_, err := q.GetResult(1, 1)
			expectCode(t, err, common.ResultCommandNotFound)
		})
	}
}

func TestTimeoutReclamation(t *testing.T) {
	q, clock := newTestQueue(t, 2, common.ModeParallelForAll, false, echoBody)

	if err := execute(q, clock, 1, 1, 100, "old"); err != nil {
		t.Fatalf("Admission failed: %v", err)
	}
	if err := execute(q, clock, 1, 2, 100, "old"); err != nil {
		t.Fatalf("Admission failed: %v", err)
	}
	expectCode(t, execute(q, clock, 1, 3, 100, "new"), common.ResultCannotExecute)

	// Exactly at the deadline the slots are kept
	clock.Advance(100 * time.Millisecond)
	expectCode(t, execute(q, clock, 1, 3, 100, "new"), common.ResultCannotExecute)

	clock.Advance(time.Millisecond)
	if err := execute(q, clock, 1, 3, 100, "new"); err != nil {
		t.Fatalf("Admission after timeout failed: %v", err)
	}

	_, err := q.GetResult(1, 1)
	expectCode(t, err, common.ResultCommandNotFound)
	_, err = q.GetResult(1, 2)
	expectCode(t, err, common.ResultCommandNotFound)

	// Reclaimed queued slots leave the queue
	if snap := q.Snapshot(); snap.QueueLen != 1 || snap.BusySlots != 1 || snap.FreeSlots != 1 {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
	if q.queue.peek() != q.slots[0] || q.slots[0].cmd.CommandID != 3 {
		t.Errorf("Expected new command at queue head, got %v", q.queue.peek())
	}
}

func TestRejectedAdmissionStillPurges(t *testing.T) {
	q, clock := newTestQueue(t, 2, common.ModeParallelForAll, false, echoBody)

	if err := execute(q, clock, 1, 1, 10, "old"); err != nil {
		t.Fatalf("Admission failed: %v", err)
	}
	if err := execute(q, clock, 1, 2, 10000, "fresh"); err != nil {
		t.Fatalf("Admission failed: %v", err)
	}
	clock.Advance(time.Second)

	// Rejected as no-wait, the expired slot is reclaimed anyway
	expectCode(t, execute(q, clock, 2, 1, -10, "x"), common.ResultCannotExecute)

	if snap := q.Snapshot(); snap.FreeSlots != 1 || snap.QueueLen != 1 {
		t.Errorf("Expected the expired slot to be reclaimed, got %+v", snap)
	}
	_, err := q.GetResult(1, 1)
	expectCode(t, err, common.ResultCommandNotFound)
}

// --------------------------------------------------------------------------
// Results and finalization
// --------------------------------------------------------------------------

func TestResultRoundTrip(t *testing.T) {
	q, clock := newTestQueue(t, 2, common.ModeSerialForClient, true, echoBody)
	startQueue(t, q)

	if err := execute(q, clock, 7, 42, 5000, "PING"); err != nil {
		t.Fatalf("Admission failed: %v", err)
	}

	result, err := waitResult(t, q, 7, 42)
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if string(result.Output) != "echo:PING" {
		t.Errorf("Expected echo:PING, got %q", result.Output)
	}
	if result.FinalizationID == 0 {
		t.Error("Expected a finalization id")
	}

	// GetResult has no side effects
	again, err := q.GetResult(7, 42)
	if err != nil || again.FinalizationID != result.FinalizationID {
		t.Errorf("Second GetResult differs: %+v, %v", again, err)
	}

	// Other senders cannot see the command
	_, err = q.GetResult(8, 42)
	expectCode(t, err, common.ResultCommandNotFound)

	expectCode(t, q.Finalize(7, 42, result.FinalizationID+1), common.ResultWrongFinalizationID)
	if snap := q.Snapshot(); snap.ResultSlots != 1 {
		t.Errorf("Wrong finalization id released the slot: %+v", snap)
	}

	if err := q.Finalize(7, 42, result.FinalizationID); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	expectCode(t, q.Finalize(7, 42, result.FinalizationID), common.ResultCommandNotFound)
	_, err = q.GetResult(7, 42)
	expectCode(t, err, common.ResultCommandNotFound)

	if snap := q.Snapshot(); snap.FreeSlots != 2 || snap.Executed != 1 {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
}

func TestNotReadyWhileQueued(t *testing.T) {
	q, clock := newTestQueue(t, 2, common.ModeParallelForAll, false, echoBody)

	if err := execute(q, clock, 1, 1, 1000, "x"); err != nil {
		t.Fatalf("Admission failed: %v", err)
	}
	_, err := q.GetResult(1, 1)
	expectCode(t, err, common.ResultNotReady)
	expectCode(t, q.Finalize(1, 1, 0), common.ResultNotReady)
	expectCode(t, q.Finalize(1, 2, 0), common.ResultCommandNotFound)
}

func TestFinalizationIDsAreUnique(t *testing.T) {
	q, clock := newTestQueue(t, 4, common.ModeParallelForAll, false, echoBody)
	startQueue(t, q)

	seen := make(map[uint64]bool)
	for i := uint64(1); i <= 10; i++ {
		if err := execute(q, clock, 1, i, 1000, "x"); err != nil {
			t.Fatalf("Admission %d failed: %v", i, err)
		}
		result, err := waitResult(t, q, 1, i)
		if err != nil {
			t.Fatalf("Result %d failed: %v", i, err)
		}
		if seen[result.FinalizationID] {
			t.Errorf("Finalization id 0x%X was handed out twice", result.FinalizationID)
		}
		seen[result.FinalizationID] = true
		if err := q.Finalize(1, i, result.FinalizationID); err != nil {
			t.Fatalf("Finalize %d failed: %v", i, err)
		}
	}
}

func TestFireAndForget(t *testing.T) {
	done := make(chan struct{})
	body := CommandBodyFunc(func(ctx context.Context, input []byte) ([]byte, error) {
		close(done)
		return []byte("ignored"), nil
	})
	q, clock := newTestQueue(t, 1, common.ModeParallelForAll, false, body)
	startQueue(t, q)

	if err := execute(q, clock, 1, 1, 0, "x"); err != nil {
		t.Fatalf("Admission failed: %v", err)
	}
	<-done
	waitFor(t, "slot to be freed", func() bool {
		return q.Snapshot().FreeSlots == 1
	})

	_, err := q.GetResult(1, 1)
	expectCode(t, err, common.ResultCommandNotFound)
}

func TestBodyFailures(t *testing.T) {
	bodies := map[string]CommandBody{
		"error": CommandBodyFunc(func(ctx context.Context, input []byte) ([]byte, error) {
			return nil, errors.New("device offline")
		}),
		"panic": CommandBodyFunc(func(ctx context.Context, input []byte) ([]byte, error) {
			panic("broken driver")
		}),
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			q, clock := newTestQueue(t, 1, common.ModeParallelForAll, false, body)
			startQueue(t, q)

			if err := execute(q, clock, 1, 1, 1000, "x"); err != nil {
				t.Fatalf("Admission failed: %v", err)
			}
			result, err := waitResult(t, q, 1, 1)
			expectCode(t, err, common.ResultError)
			if result.FinalizationID == 0 || result.Output != nil {
				t.Errorf("Expected finalization id without output, got %+v", result)
			}

			// The failed result is released like a successful one
			if err := q.Finalize(1, 1, result.FinalizationID); err != nil {
				t.Errorf("Finalize failed: %v", err)
			}
		})
	}
}

// --------------------------------------------------------------------------
// Scheduling
// --------------------------------------------------------------------------

// concurrencyBody blocks every execution until release is closed and records
// the peak number of concurrent executions overall and per sender (input)
type concurrencyBody struct {
	mu      sync.Mutex
	running map[string]int
	total   int
	peak    int
	peakPer map[string]int
	started chan string
	release chan struct{}
}

func newConcurrencyBody() *concurrencyBody {
	return &concurrencyBody{
		running: make(map[string]int),
		peakPer: make(map[string]int),
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
}

func (b *concurrencyBody) Execute(ctx context.Context, input []byte) ([]byte, error) {
	key := string(input)
	b.mu.Lock()
	b.running[key]++
	b.total++
	if b.running[key] > b.peakPer[key] {
		b.peakPer[key] = b.running[key]
	}
	if b.total > b.peak {
		b.peak = b.total
	}
	b.mu.Unlock()

	b.started <- key
	select {
	case <-b.release:
	case <-ctx.Done():
	}

	b.mu.Lock()
	b.running[key]--
	b.total--
	b.mu.Unlock()
	return input, nil
}

func TestSerialForClientScheduling(t *testing.T) {
	body := newConcurrencyBody()
	q, clock := newTestQueue(t, 4, common.ModeSerialForClient, false, body)
	startQueue(t, q)

	// Two commands of sender A, one of sender B
	for i, sender := range []uint32{1, 1, 2} {
		if err := execute(q, clock, sender, uint64(i+1), 10000, fmt.Sprintf("sender-%d", sender)); err != nil {
			t.Fatalf("Admission %d failed: %v", i, err)
		}
	}

	// A's first and B's command start, A's second waits
	first, second := <-body.started, <-body.started
	if first == second {
		t.Errorf("Expected two different senders to start, got %s twice", first)
	}
	waitFor(t, "two executing commands", func() bool {
		snap := q.Snapshot()
		return snap.BusySlots == 3 && snap.QueueLen == 1
	})

	close(body.release)
	for i := uint64(1); i <= 3; i++ {
		if _, err := waitResult(t, q, map[uint64]uint32{1: 1, 2: 1, 3: 2}[i], i); err != nil {
			t.Fatalf("Result %d failed: %v", i, err)
		}
	}

	body.mu.Lock()
	defer body.mu.Unlock()
	if body.peakPer["sender-1"] != 1 {
		t.Errorf("Sender 1 had %d concurrent executions", body.peakPer["sender-1"])
	}
	if body.peak != 2 {
		t.Errorf("Expected 2 concurrent executions, got %d", body.peak)
	}
}

func TestSerialForAllScheduling(t *testing.T) {
	body := newConcurrencyBody()
	q, clock := newTestQueue(t, 3, common.ModeSerialForAll, false, body)
	startQueue(t, q)

	for i := uint64(1); i <= 3; i++ {
		if err := execute(q, clock, uint32(i), i, 10000, fmt.Sprintf("sender-%d", i)); err != nil {
			t.Fatalf("Admission %d failed: %v", i, err)
		}
	}

	// FIFO order, one at a time
	for i := 1; i <= 3; i++ {
		if key := <-body.started; key != fmt.Sprintf("sender-%d", i) {
			t.Errorf("Expected sender-%d to run, got %s", i, key)
		}
		waitFor(t, "queue to settle", func() bool {
			return q.Snapshot().QueueLen == 3-i
		})
		body.release <- struct{}{}
	}

	for i := uint64(1); i <= 3; i++ {
		if _, err := waitResult(t, q, uint32(i), i); err != nil {
			t.Fatalf("Result %d failed: %v", i, err)
		}
	}
	body.mu.Lock()
	defer body.mu.Unlock()
	if body.peak != 1 {
		t.Errorf("Expected at most one execution at a time, got %d", body.peak)
	}
}

func TestParallelScheduling(t *testing.T) {
	body := newConcurrencyBody()
	q, clock := newTestQueue(t, 3, common.ModeParallelForAll, false, body)
	startQueue(t, q)

	for i := uint64(1); i <= 3; i++ {
		if err := execute(q, clock, 1, i, 10000, "sender-1"); err != nil {
			t.Fatalf("Admission %d failed: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		<-body.started
	}
	close(body.release)

	body.mu.Lock()
	defer body.mu.Unlock()
	if body.peak != 3 {
		t.Errorf("Expected 3 concurrent executions, got %d", body.peak)
	}
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func TestStopCancelsBodiesAndKeepsQueue(t *testing.T) {
	body := newConcurrencyBody()
	q, clock := newTestQueue(t, 2, common.ModeSerialForAll, false, body)

	if err := q.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := q.Start(); err == nil {
		t.Error("Expected error when starting twice")
	}

	if err := execute(q, clock, 1, 1, 10000, "a"); err != nil {
		t.Fatalf("Admission failed: %v", err)
	}
	if err := execute(q, clock, 2, 2, 10000, "b"); err != nil {
		t.Fatalf("Admission failed: %v", err)
	}
	<-body.started

	// Stop returns once the running body observed the cancellation
	q.Stop()
	if state := q.Snapshot().Processor; state != common.ProcessorStopped {
		t.Errorf("Expected stopped processor, got %s", state)
	}
	if _, err := q.GetResult(1, 1); err != nil {
		t.Errorf("Cancelled command should hold its result: %v", err)
	}
	_, err := q.GetResult(2, 2)
	expectCode(t, err, common.ResultNotReady)

	// The queued command runs after a restart
	startQueue(t, q)
	<-body.started
	body.release <- struct{}{}
	if _, err := waitResult(t, q, 2, 2); err != nil {
		t.Errorf("Queued command did not run after restart: %v", err)
	}
}

func TestSnapshotCounts(t *testing.T) {
	body := newConcurrencyBody()
	q, clock := newTestQueue(t, 4, common.ModeSerialForAll, false, body)

	snap := q.Snapshot()
	if snap.FreeSlots != 4 || snap.Processor != common.ProcessorStopped || snap.Mode != common.ModeSerialForAll {
		t.Errorf("Unexpected initial snapshot %+v", snap)
	}

	startQueue(t, q)
	waitFor(t, "processor ready", func() bool {
		return q.Snapshot().Processor == common.ProcessorReady
	})

	for i := uint64(1); i <= 3; i++ {
		if err := execute(q, clock, 1, i, 10000, "a"); err != nil {
			t.Fatalf("Admission %d failed: %v", i, err)
		}
	}
	<-body.started
	body.release <- struct{}{}
	if _, err := waitResult(t, q, 1, 1); err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	<-body.started

	// One result, one executing, one queued
	snap = q.Snapshot()
	if snap.FreeSlots != 1 || snap.ResultSlots != 1 || snap.BusySlots != 2 || snap.QueueLen != 1 || snap.QueueCap != 4 {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
	close(body.release)
}

func TestCloseReleasesQueue(t *testing.T) {
	q, clock := newTestQueue(t, 2, common.ModeParallelForAll, false, echoBody)
	if err := q.Start(); err != nil {
		t.Fatalf("Failed to start processor: %v", err)
	}
	if err := execute(q, clock, 1, 1, 1000, "a"); err != nil {
		t.Fatalf("Admission failed: %v", err)
	}

	q.Close()
	q.Close()

	if state := common.ProcessorState(q.procState.Load()); state != common.ProcessorStopped {
		t.Errorf("Expected stopped processor, got %s", state)
	}
	if err := q.Start(); err == nil {
		t.Error("Expected Start to fail after Close")
	}

	// A stopped meter ignores further admissions
	before := q.metrics.admissions.Count()
	if err := execute(q, clock, 1, 2, 1000, "b"); err != nil {
		t.Fatalf("Admission after Close failed: %v", err)
	}
	if after := q.metrics.admissions.Count(); after != before {
		t.Errorf("Expected the meter to be stopped, count went from %d to %d", before, after)
	}
}
