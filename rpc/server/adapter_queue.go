package server

import (
	"github.com/ValentinKolb/rcq/lib/queue"
	"github.com/ValentinKolb/rcq/rpc/common"
	"github.com/ValentinKolb/rcq/rpc/serializer"
)

// NewQueueServerAdapter creates the adapter answering all request types
// with the given command queue and service lifecycle
func NewQueueServerAdapter(q queue.ICommandQueue, service IServiceControl) IRPCServerAdapter {
	return &queueServerAdapterImpl{queue: q, service: service}
}

type queueServerAdapterImpl struct {
	queue   queue.ICommandQueue
	service IServiceControl
}

func (adapter *queueServerAdapterImpl) Handle(req Request) (common.Answer, []byte) {
	meta := req.Meta

	switch cmd := meta.Command.(type) {
	case common.GetState:
		return common.NewAnswer(meta, nil), serializer.EncodeServiceState(adapter.state())

	case common.Execute:
		err := adapter.queue.Execute(req.From, req.ReceivedAt, meta.SenderID, cmd, req.Payload)
		return common.NewAnswer(meta, err), nil

	case common.GetResult:
		result, err := adapter.queue.GetResult(meta.SenderID, cmd.CommandID)
		// The finalization id is also sent with a failed result so the client can release it
		cmd.FinalizationID = result.FinalizationID
		meta.Command = cmd
		if err != nil {
			return common.NewAnswer(meta, err), nil
		}
		return common.NewAnswer(meta, nil), result.Output

	case common.Finalize:
		err := adapter.queue.Finalize(meta.SenderID, cmd.CommandID, cmd.FinalizationID)
		return common.NewAnswer(meta, err), nil

	case common.Stop:
		delay, hasDelay, err := serializer.DecodeStopPayload(req.Payload)
		if err != nil {
			return common.NewAnswer(meta, err), nil
		}
		adapter.service.RequestStop(delay, hasDelay)
		return common.NewAnswer(meta, nil), nil

	default:
		return common.NewAnswer(meta, common.NewError(common.ResultWrongValue,
			"RPC QueueAdapter - Unsupported request type: %s", meta.Type())), nil
	}
}

// state combines the service times with the queue snapshot
func (adapter *queueServerAdapterImpl) state() common.ServiceState {
	lastStart, lastAutoRestart, lastStop := adapter.service.ServiceTimes()
	snap := adapter.queue.Snapshot()

	return common.ServiceState{
		LastStartTime:       unixMilli(lastStart),
		LastAutoRestartTime: unixMilli(lastAutoRestart),
		LastStopTime:        unixMilli(lastStop),
		Mode:                snap.Mode,
		SingleSerial:        snap.SingleSerial,
		Processor:           snap.Processor,
		FreeSlots:           clampUint16(snap.FreeSlots),
		BusySlots:           clampUint16(snap.BusySlots),
		ResultSlots:         clampUint16(snap.ResultSlots),
		QueueFree:           clampUint16(snap.QueueCap - snap.QueueLen),
		QueueLen:            clampUint16(snap.QueueLen),
	}
}

func clampUint16(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}
