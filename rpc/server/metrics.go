package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ValentinKolb/rcq/rpc/common"
	"github.com/VictoriaMetrics/metrics"
)

var droppedRequests = metrics.NewCounter("rcq_server_dropped_requests_total")

// countRequest counts a parsed request by type
func countRequest(t common.RequestType) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`rcq_server_requests_total{type=%q}`, t.String())).Inc()
}

// countAnswer counts an answer by result code
func countAnswer(code common.ResultCode) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`rcq_server_answers_total{code=%q}`, code.String())).Inc()
}

// startMetricsServer serves /metrics on config.MetricsEndpoint if it is set.
// The returned function shuts the server down.
func (s *RPCServer) startMetricsServer() (func(), error) {
	if s.config.MetricsEndpoint == "" {
		return func() {}, nil
	}

	listener, err := net.Listen("tcp", s.config.MetricsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics on %s: %w", s.config.MetricsEndpoint, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
		s.queue.WriteMetrics(w)
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("Metrics server failed: %v", err)
		}
	}()
	Logger.Infof("Serving metrics on http://%s/metrics", listener.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		<-done
	}, nil
}
