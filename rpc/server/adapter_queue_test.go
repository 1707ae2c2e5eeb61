package server

import (
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/rcq/lib/commands"
	"github.com/ValentinKolb/rcq/lib/queue"
	"github.com/ValentinKolb/rcq/rpc/common"
	"github.com/ValentinKolb/rcq/rpc/serializer"
)

// fakeService records stop requests and reports fixed times
type fakeService struct {
	start      time.Time
	stops      int
	lastDelay  int32
	lastHasDel bool
}

func (f *fakeService) ServiceTimes() (time.Time, time.Time, time.Time) {
	return f.start, time.Time{}, time.Time{}
}

func (f *fakeService) RequestStop(restartDelayMs int32, hasDelay bool) {
	f.stops++
	f.lastDelay = restartDelayMs
	f.lastHasDel = hasDelay
}

func newTestAdapter(t *testing.T) (IRPCServerAdapter, queue.ICommandQueue, *fakeService) {
	t.Helper()

	// The queue is never started, admitted commands stay queued
	q, err := queue.NewCommandQueue(queue.Config{Size: 2, Mode: common.ModeParallelForAll}, commands.Echo())
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}
	t.Cleanup(q.Close)
	service := &fakeService{start: time.UnixMilli(1700000000000)}
	return NewQueueServerAdapter(q, service), q, service
}

func handle(adapter IRPCServerAdapter, meta common.Meta, payload []byte) (common.Answer, []byte) {
	return adapter.Handle(Request{
		From:       &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000},
		ReceivedAt: time.Now(),
		Meta:       meta,
		Payload:    payload,
	})
}

func TestAdapterGetState(t *testing.T) {
	adapter, _, _ := newTestAdapter(t)

	answer, payload := handle(adapter, common.NewGetStateRequest(1, 1), nil)
	if answer.Code != common.ResultOK {
		t.Fatalf("Expected OK, got %s", answer)
	}

	state, err := serializer.DecodeServiceState(payload)
	if err != nil {
		t.Fatalf("Failed to decode state: %v", err)
	}
	if state.LastStartTime != 1700000000000 {
		t.Errorf("Expected start time 1700000000000, got %d", state.LastStartTime)
	}
	if state.LastStopTime != 0 {
		t.Errorf("Expected no stop time, got %d", state.LastStopTime)
	}
	if state.Mode != common.ModeParallelForAll || state.Processor != common.ProcessorStopped {
		t.Errorf("Unexpected state: %s", state.String())
	}
	if state.FreeSlots != 2 || state.QueueFree != 2 {
		t.Errorf("Unexpected slot counts: %s", state.String())
	}
}

func TestAdapterCommandFlow(t *testing.T) {
	adapter, _, _ := newTestAdapter(t)

	tests := []struct {
		name string
		meta common.Meta
		want common.ResultCode
	}{
		{"execute", common.NewExecuteRequest(1, 1, 10, 5000), common.ResultOK},
		{"duplicate", common.NewExecuteRequest(1, 2, 10, 5000), common.ResultDuplicateCommand},
		{"result not ready", common.NewGetResultRequest(1, 3, 10), common.ResultNotReady},
		{"unknown result", common.NewGetResultRequest(1, 4, 11), common.ResultCommandNotFound},
		{"finalize queued", common.NewFinalizeRequest(1, 5, 10, 1), common.ResultNotReady},
		{"finalize unknown", common.NewFinalizeRequest(2, 6, 10, 1), common.ResultCommandNotFound},
		{"second execute", common.NewExecuteRequest(2, 7, 10, 5000), common.ResultOK},
		{"queue full", common.NewExecuteRequest(3, 8, 10, 5000), common.ResultCannotExecute},
		{"no wait on busy queue", common.NewExecuteRequest(4, 9, 10, -5000), common.ResultCannotExecute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, payload := handle(adapter, tt.meta, []byte("input"))
			if answer.Code != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, answer)
			}
			if answer.MessageID != tt.meta.MessageID || answer.SenderID != tt.meta.SenderID {
				t.Errorf("Answer does not echo the request: %s", answer)
			}
			if payload != nil {
				t.Errorf("Expected no payload, got %q", payload)
			}
		})
	}
}

func TestAdapterStop(t *testing.T) {
	tests := []struct {
		name      string
		payload   []byte
		wantCode  common.ResultCode
		wantStops int
		wantDelay int32
		wantHas   bool
	}{
		{name: "no payload", wantStops: 1},
		{name: "restart delay", payload: serializer.EncodeStopPayload(250), wantStops: 1, wantDelay: 250, wantHas: true},
		{name: "halt", payload: serializer.EncodeStopPayload(-1), wantStops: 1, wantDelay: -1, wantHas: true},
		{name: "malformed payload", payload: []byte{1, 2}, wantCode: common.ResultWrongFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, _, service := newTestAdapter(t)

			answer, _ := handle(adapter, common.NewStopRequest(1, 1), tt.payload)
			if answer.Code != tt.wantCode {
				t.Errorf("Expected %s, got %s", tt.wantCode, answer)
			}
			if service.stops != tt.wantStops {
				t.Fatalf("Expected %d stop requests, got %d", tt.wantStops, service.stops)
			}
			if tt.wantStops > 0 && (service.lastDelay != tt.wantDelay || service.lastHasDel != tt.wantHas) {
				t.Errorf("Expected delay %d (%t), got %d (%t)", tt.wantDelay, tt.wantHas, service.lastDelay, service.lastHasDel)
			}
		})
	}
}
