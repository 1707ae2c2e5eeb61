package server

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/rcq/lib/queue"
	"github.com/ValentinKolb/rcq/rpc/common"
	"github.com/ValentinKolb/rcq/rpc/serializer"
	"github.com/ValentinKolb/rcq/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// stopRequest is a pending STOP whose answer still has to be sent
type stopRequest struct {
	to     net.Addr
	answer []byte
	delay  time.Duration // negative halts the service
}

// RPCServer runs the command service: the transport receive loop, the
// command queue and the stop / restart lifecycle around both.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	queue      queue.ICommandQueue
	adapter    IRPCServerAdapter

	listening bool
	stopCh    chan stopRequest

	// pendingStop is set by RequestStop while a STOP is handled.
	// Only accessed from the transport goroutine.
	pendingStop *time.Duration

	timesMu         sync.RWMutex
	lastStart       time.Time
	lastAutoRestart time.Time
	lastStop        time.Time
}

// NewRPCServer creates a new RPC server
// It takes a config, transport, serializer and the command body as parameters
//
// Usage:
//
//	s, err := server.NewRPCServer(
//		config,
//		udp.NewUDPServerTransport(),
//		serializer.NewBinarySerializer(),
//		commands.PingPong(),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	body queue.CommandBody,
) (*RPCServer, error) {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	q, err := queue.NewCommandQueue(queue.Config{
		Size:         config.QueueSize,
		Mode:         config.Mode,
		SingleSerial: config.SingleSerial,
	}, body)
	if err != nil {
		return nil, err
	}

	s := &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		queue:      q,
		stopCh:     make(chan stopRequest, 1),
	}
	s.adapter = NewQueueServerAdapter(q, s)
	s.transport.RegisterHandler(s.handle)

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return s, nil
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Listen binds the transport. Serve calls it if it was not called before,
// calling it first allows reading Addr before serving.
// The first bound address is kept, restarts bind the same port even if the
// endpoint asked for an ephemeral one.
func (s *RPCServer) Listen() error {
	if s.listening {
		return nil
	}
	if err := s.transport.Listen(s.config); err != nil {
		return err
	}
	s.listening = true

	if addr := s.transport.Addr(); addr != nil && addr.String() != s.config.Endpoint {
		Logger.Debugf("Pinning endpoint %s to %s", s.config.Endpoint, addr)
		s.config.Endpoint = addr.String()
	}
	return nil
}

// Addr returns the address the transport is bound to, nil if it is not listening
func (s *RPCServer) Addr() net.Addr {
	return s.transport.Addr()
}

// Serve runs the service until ctx is cancelled or a STOP without restart is
// received. After a STOP with a restart delay (or when the transport fails
// and auto restart is configured) the service is started again, the command
// queue keeps its slots across restarts.
//
// The command queue is closed when Serve returns, a server is served once.
func (s *RPCServer) Serve(ctx context.Context) error {
	defer s.queue.Close()

	stopMetrics, err := s.startMetricsServer()
	if err != nil {
		return err
	}
	defer stopMetrics()

	restarted := false
	for {
		if err := s.Listen(); err != nil {
			return err
		}
		if err := s.queue.Start(); err != nil {
			_ = s.transport.Close()
			s.listening = false
			return err
		}

		now := time.Now()
		s.timesMu.Lock()
		s.lastStart = now
		if restarted {
			s.lastAutoRestart = now
		}
		s.timesMu.Unlock()
		Logger.Infof("Service %s started on %s", s.config.Name, s.Addr())

		delay := s.run(ctx)

		s.timesMu.Lock()
		s.lastStop = time.Now()
		s.timesMu.Unlock()

		if ctx.Err() != nil || delay < 0 {
			Logger.Infof("Service %s stopped", s.config.Name)
			return nil
		}

		Logger.Infof("Service %s stopped, restarting in %s", s.config.Name, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
		restarted = true
	}
}

// run serves requests until a stop is requested, the transport fails or ctx
// is cancelled. It shuts the transport and the processor down and returns
// the restart delay.
func (s *RPCServer) run(ctx context.Context) time.Duration {
	// Drop a stop that arrived after the previous run was shut down
	select {
	case <-s.stopCh:
	default:
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.transport.Serve() }()

	delay := s.autoRestartDelay()
	transportDone := false

	select {
	case <-ctx.Done():
	case req := <-s.stopCh:
		// The answer leaves before the socket is closed
		if err := s.transport.Send(req.to, req.answer); err != nil {
			Logger.Warningf("Failed to answer STOP from %s: %v", req.to, err)
		}
		delay = req.delay
	case err := <-serveErr:
		transportDone = true
		Logger.Errorf("Transport failed: %v", err)
	}

	_ = s.transport.Close()
	s.listening = false
	if !transportDone {
		if err := <-serveErr; err != nil {
			Logger.Errorf("Transport failed: %v", err)
		}
	}

	s.queue.Stop()
	return delay
}

// autoRestartDelay returns the configured restart delay, negative if disabled
func (s *RPCServer) autoRestartDelay() time.Duration {
	if s.config.AutoRestartMs < 0 {
		return -1
	}
	return time.Duration(s.config.AutoRestartMs) * time.Millisecond
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IServiceControl)
// --------------------------------------------------------------------------

func (s *RPCServer) ServiceTimes() (lastStart, lastAutoRestart, lastStop time.Time) {
	s.timesMu.RLock()
	defer s.timesMu.RUnlock()
	return s.lastStart, s.lastAutoRestart, s.lastStop
}

func (s *RPCServer) RequestStop(restartDelayMs int32, hasDelay bool) {
	delay := s.autoRestartDelay()
	if hasDelay {
		delay = time.Duration(restartDelayMs) * time.Millisecond
		if restartDelayMs < 0 {
			delay = -1
		}
	}
	s.pendingStop = &delay
}

// --------------------------------------------------------------------------
// Request Handling
// --------------------------------------------------------------------------

// handle is the transport handler: parse, dispatch to the adapter, serialize
func (s *RPCServer) handle(from net.Addr, receivedAt time.Time, req []byte) []byte {
	meta, payload, err := s.serializer.DeserializeRequest(req)
	if err != nil {
		// Without the request type there is nothing the client could correlate
		if meta.Command == nil {
			droppedRequests.Inc()
			Logger.Warningf("Dropping request from %s: %v", from, err)
			return nil
		}
		Logger.Warningf("Malformed %s request from %s: %v", meta.Type(), from, err)
		return s.serializeAnswer(common.NewAnswer(meta, err), nil)
	}

	countRequest(meta.Type())
	Logger.Debugf("Request from %s: %s", from, meta)

	answer, respPayload := s.dispatch(Request{
		From:       from,
		ReceivedAt: receivedAt,
		Meta:       meta,
		Payload:    payload,
	})
	countAnswer(answer.Code)
	Logger.Debugf("Answer to %s: %s", from, answer)

	resp := s.serializeAnswer(answer, respPayload)

	// The stop is executed by the lifecycle loop after the answer was sent
	if s.pendingStop != nil {
		delay := *s.pendingStop
		s.pendingStop = nil
		select {
		case s.stopCh <- stopRequest{to: from, answer: resp, delay: delay}:
			return nil
		default:
			Logger.Warningf("Stop already pending, answering %s directly", from)
		}
	}
	return resp
}

// dispatch passes req to the adapter. A panicking adapter is answered with
// ResultError, the transport goroutine keeps running.
func (s *RPCServer) dispatch(req Request) (answer common.Answer, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("Handler panicked on %s: %v", req.Meta, r)
			s.pendingStop = nil
			answer = common.NewAnswer(req.Meta, common.NewError(common.ResultError, "handler panicked: %v", r))
			payload = nil
		}
	}()
	return s.adapter.Handle(req)
}

// serializeAnswer serializes an answer, falling back to an error answer without payload
func (s *RPCServer) serializeAnswer(answer common.Answer, payload []byte) []byte {
	resp, err := s.serializer.SerializeAnswer(answer, payload)
	if err == nil {
		return resp
	}

	Logger.Errorf("Failed to serialize answer %s: %v", answer, err)
	fallback := common.NewAnswer(answer.Meta, common.NewError(common.ResultError, "failed to serialize answer: %v", err))
	resp, err = s.serializer.SerializeAnswer(fallback, nil)
	if err != nil {
		Logger.Errorf("Failed to serialize fallback answer: %v", err)
		return nil
	}
	return resp
}

// unixMilli converts t to unix milliseconds, 0 for the zero time
func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
