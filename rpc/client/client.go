package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/rcq/rpc/common"
	"github.com/ValentinKolb/rcq/rpc/serializer"
	"github.com/ValentinKolb/rcq/rpc/transport"
	"github.com/ValentinKolb/rcq/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	Logger = logger.GetLogger("client")
)

// PollInterval is the pause between two GETRESULT requests of Execute
const PollInterval = 30 * time.Millisecond

// Response is a matched answer with its payload
type Response struct {
	Answer  common.Answer
	Payload []byte
}

// ExecuteResult is the outcome of a successful Execute
type ExecuteResult struct {
	CommandID uint64
	// Output is nil for fire and forget commands
	Output []byte
}

// pendingRequest is a request waiting for its answer
type pendingRequest struct {
	meta common.Meta
	ch   chan Response
}

// RPCClient talks to one command service. It is safe for concurrent use,
// answers are routed to the waiting request by message id.
type RPCClient struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer

	nextMessageID atomic.Uint64
	nextCommandID atomic.Uint64

	pending *xsync.MapOf[uint64, *pendingRequest]

	// Datagrams that could not be matched to a request and receive failures
	parseErrors   atomic.Uint64
	receiveErrors atomic.Uint64

	readerDone chan struct{}
	closed     atomic.Bool
}

// NewRPCClient creates a new client
// The function takes a config, a transport and a serializer as parameters.
// It connects the transport and starts the goroutine reading answers.
func NewRPCClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCClient, error) {
	if config.AnswerTimeoutMs <= 0 {
		config.AnswerTimeoutMs = common.DefaultAnswerTimeoutMs
	}

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	c := &RPCClient{
		config:     config,
		transport:  transport,
		serializer: serializer,
		pending:    xsync.NewMapOf[uint64, *pendingRequest](),
		readerDone: make(chan struct{}),
	}

	// Ids start at the current time so a restarted client does not reuse them
	seed := uint64(time.Now().UnixMilli())
	c.nextMessageID.Store(seed)
	c.nextCommandID.Store(seed)

	go c.readLoop()
	return c, nil
}

// Close closes the transport and waits for the reader to exit
func (c *RPCClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.transport.Close()
	<-c.readerDone
	return err
}

// AnswerTimeout returns the configured answer timeout, the default for the
// timeout arguments of the request methods
func (c *RPCClient) AnswerTimeout() time.Duration {
	return time.Duration(c.config.AnswerTimeoutMs) * time.Millisecond
}

// NewMessageID returns a fresh message id
func (c *RPCClient) NewMessageID() uint64 {
	return c.nextMessageID.Add(1)
}

// NewCommandID returns a fresh command id
func (c *RPCClient) NewCommandID() uint64 {
	return c.nextCommandID.Add(1)
}

// --------------------------------------------------------------------------
// Requests
// --------------------------------------------------------------------------

// Request sends one request and waits up to timeout for the matching answer.
// An answer matches if sender, message id, request type and command id are
// equal to the request. Answers with an error code are returned as Response,
// not as error.
func (c *RPCClient) Request(ctx context.Context, timeout time.Duration, meta common.Meta, body []byte) (Response, error) {
	data, err := c.serializer.SerializeRequest(meta, body)
	if err != nil {
		return Response{}, &RequestError{Kind: ErrKindBuild, Err: err}
	}

	req := &pendingRequest{meta: meta, ch: make(chan Response, 1)}
	if _, loaded := c.pending.LoadOrStore(meta.MessageID, req); loaded {
		return Response{}, newRequestError(ErrKindBuild, "message id 0x%X is already in use", meta.MessageID)
	}
	defer c.pending.Delete(meta.MessageID)

	parseBefore := c.parseErrors.Load()
	receiveBefore := c.receiveErrors.Load()

	if err := c.transport.Send(data); err != nil {
		return Response{}, &RequestError{Kind: ErrKindSend, Err: err}
	}
	Logger.Debugf("Sent %s", meta)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-req.ch:
		Logger.Debugf("Received %s", resp.Answer)
		return resp, nil
	case <-timer.C:
		// Report why no valid answer arrived if there is a reason
		if n := c.parseErrors.Load() - parseBefore; n > 0 {
			return Response{}, newRequestError(ErrKindParse, "%d malformed or mismatching answers for %s", n, meta)
		}
		if n := c.receiveErrors.Load() - receiveBefore; n > 0 {
			return Response{}, newRequestError(ErrKindReceive, "%d receive errors while waiting for %s", n, meta)
		}
		return Response{}, ErrTimeout
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-c.readerDone:
		return Response{}, &RequestError{Kind: ErrKindReceive, Err: net.ErrClosed}
	}
}

// GetState requests the state of the service
func (c *RPCClient) GetState(ctx context.Context, timeout time.Duration) (common.ServiceState, error) {
	meta := common.NewGetStateRequest(c.config.SenderID, c.NewMessageID())
	resp, err := c.Request(ctx, timeout, meta, nil)
	if err != nil {
		return common.ServiceState{}, err
	}
	if err := resp.Answer.Err(); err != nil {
		return common.ServiceState{}, err
	}

	state, err := serializer.DecodeServiceState(resp.Payload)
	if err != nil {
		return common.ServiceState{}, &RequestError{Kind: ErrKindParse, Err: err}
	}
	return state, nil
}

// Stop asks the service to stop. With a nil restartDelayMs the service
// applies its configured auto restart, a negative delay halts it. The delay
// is used for this stop only and does not replace the auto restart setting
// of the service.
func (c *RPCClient) Stop(ctx context.Context, timeout time.Duration, restartDelayMs *int32) error {
	var payload []byte
	if restartDelayMs != nil {
		payload = serializer.EncodeStopPayload(*restartDelayMs)
	}

	meta := common.NewStopRequest(c.config.SenderID, c.NewMessageID())
	resp, err := c.Request(ctx, timeout, meta, payload)
	if err != nil {
		return err
	}
	return resp.Answer.Err()
}

// Execute runs a command on the service: EXECUTE, then GETRESULT every
// PollInterval until the result is available or |executeTimeoutMs| passed,
// then FINALIZE. Every single request waits up to answerTimeout. A timeout of 0 only submits the command, a negative timeout
// is rejected unless the queue of the service is empty.
//
// Errors are *common.Error for failures reported by the service (including
// ResultNotReady when the execute timeout expired), *RequestError or
// ErrTimeout for failures of a single request.
func (c *RPCClient) Execute(ctx context.Context, answerTimeout time.Duration, executeTimeoutMs int32, input []byte) (ExecuteResult, error) {
	start := time.Now()
	commandID := c.NewCommandID()
	result := ExecuteResult{CommandID: commandID}

	meta := common.NewExecuteRequest(c.config.SenderID, c.NewMessageID(), commandID, executeTimeoutMs)
	resp, err := c.Request(ctx, answerTimeout, meta, input)
	if err != nil {
		return result, err
	}
	if err := resp.Answer.Err(); err != nil {
		return result, err
	}
	if executeTimeoutMs == 0 {
		return result, nil
	}

	executeTimeout := time.Duration(executeTimeoutMs) * time.Millisecond
	if executeTimeout < 0 {
		executeTimeout = -executeTimeout
	}

	for {
		meta := common.NewGetResultRequest(c.config.SenderID, c.NewMessageID(), commandID)
		resp, err := c.Request(ctx, answerTimeout, meta, nil)
		if err != nil {
			return result, err
		}

		answerErr := resp.Answer.Err()
		switch resp.Answer.Code {
		case common.ResultOK:
			result.Output = resp.Payload
			c.finalize(ctx, answerTimeout, resp.Answer)
			return result, nil
		case common.ResultError:
			// The body failed, the slot still has to be released
			c.finalize(ctx, answerTimeout, resp.Answer)
			return result, answerErr
		case common.ResultNotReady:
		default:
			return result, answerErr
		}

		if time.Since(start) > executeTimeout {
			return result, answerErr
		}

		select {
		case <-time.After(PollInterval):
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}
}

// finalize releases the result described by a GETRESULT answer. Failures are
// only logged since the result was already received.
func (c *RPCClient) finalize(ctx context.Context, timeout time.Duration, answer common.Answer) {
	get, ok := answer.Command.(common.GetResult)
	if !ok {
		return
	}

	meta := common.NewFinalizeRequest(c.config.SenderID, c.NewMessageID(), get.CommandID, get.FinalizationID)
	resp, err := c.Request(ctx, timeout, meta, nil)
	if err != nil {
		Logger.Warningf("Finalize of command 0x%X failed: %v", get.CommandID, err)
		return
	}

	// An already released slot is fine
	if code := resp.Answer.Code; code != common.ResultOK && code != common.ResultCommandNotFound {
		Logger.Warningf("Finalize of command 0x%X failed: %v", get.CommandID, resp.Answer.Err())
	}
}

// --------------------------------------------------------------------------
// Reader
// --------------------------------------------------------------------------

// readLoop receives answers and hands them to the waiting requests
func (c *RPCClient) readLoop() {
	defer close(c.readerDone)

	for {
		data, err := c.transport.Receive()
		if err != nil {
			if c.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			if errors.Is(err, base.ErrMalformedMessage) {
				c.parseErrors.Add(1)
				Logger.Warningf("Dropping malformed answer: %v", err)
				continue
			}
			c.receiveErrors.Add(1)
			Logger.Warningf("Receive failed: %v", err)
			continue
		}

		if err := c.dispatch(data); err != nil {
			c.parseErrors.Add(1)
			Logger.Warningf("Dropping answer: %v", err)
		}
	}
}

// dispatch parses an answer and delivers it to the request it belongs to
func (c *RPCClient) dispatch(data []byte) error {
	answer, payload, err := c.serializer.DeserializeAnswer(data)
	if err != nil {
		return err
	}

	req, ok := c.pending.Load(answer.MessageID)
	if !ok {
		return fmt.Errorf("no request waits for %s", answer)
	}

	switch {
	case answer.SenderID != req.meta.SenderID:
		return fmt.Errorf("sender id mismatch: %s", answer)
	case answer.Type() != req.meta.Type():
		return fmt.Errorf("request type mismatch: %s", answer)
	case answer.CommandID() != req.meta.CommandID():
		return fmt.Errorf("command id mismatch: %s", answer)
	}

	// A duplicate answer finds the channel full and is dropped
	select {
	case req.ch <- Response{Answer: answer, Payload: payload}:
	default:
	}
	return nil
}
