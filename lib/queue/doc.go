// Package queue implements the slot based command queue of the remote command
// service: admission with duplicate suppression, the processor goroutine that
// schedules queued commands under one of the processing modes, the workers
// running the command bodies and the result hand off with finalization.
//
// Slot lifecycle:
//
//	FREE -> QUEUED -> EXECUTING -> RESULT -> FREE
//	                  EXECUTING -> FREE     (timeout 0, fire and forget)
//
// A RESULT (or QUEUED) slot also returns to FREE when a later admission finds
// that its retention time (receive time + |timeout|) has passed. There is no
// background reaper, slots are only reclaimed during admission.
//
// Admission (Execute) makes one pass over all slots under the queue lock:
//
//  1. Expired slots that are not executing are reclaimed.
//  2. In single serial mode a conflicting command (any command for
//     ModeSerialForAll, a command of the same sender for ModeSerialForClient)
//     is reclaimed if it holds a result and rejects the admission otherwise.
//  3. A live slot with the same sender and command id rejects the admission
//     with ResultDuplicateCommand, this takes precedence over step 2.
//  4. Without a free slot the admission fails with ResultCannotExecute.
//  5. A command with timeout <= 0 is only admitted into an empty queue.
//
// Scheduling:
//
//   - ModeParallelForAll: the queue head runs as soon as it is queued.
//   - ModeSerialForAll: the queue head runs when nothing else is executing.
//   - ModeSerialForClient: the first queued command whose sender has no
//     executing command runs.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Command bodies run outside the
//	lock, one goroutine per executing slot.
//
// Usage:
//
//	q, err := queue.NewCommandQueue(queue.Config{Size: 2, Mode: common.ModeSerialForClient}, body)
//	_ = q.Start()
//	defer q.Stop()
//	err = q.Execute(addr, time.Now(), senderID, common.Execute{CommandID: 1, Timeout: 5000}, input)
//	result, err := q.GetResult(senderID, 1)
//	err = q.Finalize(senderID, 1, result.FinalizationID)
package queue
