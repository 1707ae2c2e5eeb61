package queue

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/rcq/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// queueIDs numbers the queues of one process for the metric labels
var queueIDs atomic.Uint64

// queueMetrics holds the instrumentation of one queue. Gauges live in a
// per queue set, counters are shared by all queues of the process.
type queueMetrics struct {
	set *metrics.Set

	execTimer   gometrics.Timer     // Body execution durations
	admissions  gometrics.Meter     // Successful admissions
	inputSizes  gometrics.Histogram // Payload sizes of admitted commands
	outputSizes gometrics.Histogram // Payload sizes of results

	bodyErrors *metrics.Counter
}

func newQueueMetrics(q *commandQueue) *queueMetrics {
	m := &queueMetrics{
		set:         metrics.NewSet(),
		execTimer:   gometrics.NewTimer(),
		admissions:  gometrics.NewMeter(),
		inputSizes:  gometrics.NewHistogram(gometrics.NewUniformSample(1028)),
		outputSizes: gometrics.NewHistogram(gometrics.NewUniformSample(1028)),
		bodyErrors:  metrics.GetOrCreateCounter("rcq_queue_body_errors_total"),
	}

	id := queueIDs.Add(1)
	gauge := func(name string, f func(s Snapshot) int) {
		m.set.NewGauge(fmt.Sprintf(`%s{queue="%d"}`, name, id), func() float64 {
			return float64(f(q.Snapshot()))
		})
	}
	gauge("rcq_queue_slots_free", func(s Snapshot) int { return s.FreeSlots })
	gauge("rcq_queue_slots_busy", func(s Snapshot) int { return s.BusySlots })
	gauge("rcq_queue_slots_result", func(s Snapshot) int { return s.ResultSlots })
	gauge("rcq_queue_length", func(s Snapshot) int { return s.QueueLen })
	gauge("rcq_queue_processor_state", func(s Snapshot) int { return int(s.Processor) })

	return m
}

// close detaches the meter from the process wide meter arbiter
func (m *queueMetrics) close() {
	m.admissions.Stop()
}

// admitted records a successful admission
func (m *queueMetrics) admitted(inputSize int) {
	m.admissions.Mark(1)
	m.inputSizes.Update(int64(inputSize))
	metrics.GetOrCreateCounter(`rcq_queue_admissions_total{result="OK"}`).Inc()
}

// rejected records a failed admission by result code
func (m *queueMetrics) rejected(err error) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`rcq_queue_admissions_total{result=%q}`, common.CodeOf(err).String())).Inc()
}

// executed records a finished body execution
func (m *queueMetrics) executed(start time.Time, outputSize int, err error) {
	m.execTimer.UpdateSince(start)
	if err != nil {
		m.bodyErrors.Inc()
		return
	}
	m.outputSizes.Update(int64(outputSize))
}
