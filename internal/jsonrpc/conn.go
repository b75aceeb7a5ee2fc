// Package jsonrpc implements the JSON-RPC 2.0 connection spoken by the Copilot
// CLI: Content-Length framed messages over a byte stream, with calls in both
// directions and server-pushed notifications.
package jsonrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/armatrix/copilot-sdk-go/internal/logging"
	"github.com/armatrix/copilot-sdk-go/internal/tracing"
)

// ErrClosed is returned by calls made on, or pending when, the connection closes.
var ErrClosed = errors.New("jsonrpc: connection closed")

// RequestHandler serves a server-to-client request. A non-nil *Error is sent
// back as the error response; otherwise result is marshalled as the result.
type RequestHandler func(ctx context.Context, params json.RawMessage) (any, *Error)

// NotificationHandler receives server notifications in arrival order.
type NotificationHandler func(method string, params json.RawMessage)

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the logger used for frame-level debug output.
func WithLogger(l *logging.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTracerProvider records a client span per outgoing call.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Conn) {
		if tp != nil {
			c.tracer = tp.Tracer("github.com/armatrix/copilot-sdk-go/jsonrpc")
		}
	}
}

// Conn is a bidirectional JSON-RPC connection. It is safe for concurrent use.
type Conn struct {
	rwc    io.ReadWriteCloser
	reader *bufio.Reader
	log    *logging.Logger
	tracer trace.Tracer

	writeMu sync.Mutex
	nextID  atomic.Int64

	mu       sync.Mutex
	pending  map[int64]chan *message
	handlers map[string]RequestHandler
	notify   NotificationHandler
	closed   bool
	err      error

	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewConn wraps rwc. Handlers should be registered before Start.
func NewConn(rwc io.ReadWriteCloser, opts ...Option) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		rwc:      rwc,
		reader:   bufio.NewReaderSize(rwc, 64*1024),
		log:      logging.Nop(),
		tracer:   noop.NewTracerProvider().Tracer(""),
		pending:  make(map[int64]chan *message),
		handlers: make(map[string]RequestHandler),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleRequest registers the handler for a server-to-client request method.
func (c *Conn) HandleRequest(method string, h RequestHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[method] = h
}

// HandleNotification registers the handler for all notifications.
func (c *Conn) HandleNotification(h NotificationHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = h
}

// Start launches the read loop. Calling Start twice is a no-op.
func (c *Conn) Start() {
	if c.started.Swap(true) {
		return
	}
	go c.readLoop()
}

// Done is closed once the read loop exits.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that terminated the connection, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Call sends a request and decodes the response result into result (which may be nil).
func (c *Conn) Call(ctx context.Context, method string, params, result any) (err error) {
	ctx, span := c.tracer.Start(ctx, "jsonrpc."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(tracing.AttrRPCSystem, "jsonrpc"),
			attribute.String(tracing.AttrRPCMethod, method),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	id := c.nextID.Add(1)
	ch := make(chan *message, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	raw, err := marshalParams(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}
	req := &message{
		JSONRPC: "2.0",
		ID:      json.RawMessage(strconv.FormatInt(id, 10)),
		Method:  method,
		Params:  raw,
	}
	c.log.Debug().Int64("id", id).Str("method", method).Msg("call")
	if err := c.send(req); err != nil {
		return err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return c.closedErr()
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify sends a notification. No response is expected.
func (c *Conn) Notify(method string, params any) error {
	raw, err := marshalParams(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}
	return c.send(&message{JSONRPC: "2.0", Method: method, Params: raw})
}

// Close closes the underlying stream and fails all pending calls.
func (c *Conn) Close() error {
	c.shutdown(ErrClosed)
	err := c.rwc.Close()
	if c.started.Load() {
		<-c.done
	}
	return err
}

func (c *Conn) send(m *message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := writeFrame(c.rwc, payload); err != nil {
		return fmt.Errorf("jsonrpc: write: %w", err)
	}
	return nil
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		payload, err := readFrame(c.reader)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				err = ErrClosed
			}
			c.shutdown(err)
			return
		}

		var m message
		if err := json.Unmarshal(payload, &m); err != nil {
			c.log.Warn().Err(err).Msg("discarding malformed frame")
			continue
		}

		switch {
		case m.isRequest():
			go c.serve(&m)
		case m.isNotification():
			c.mu.Lock()
			h := c.notify
			c.mu.Unlock()
			if h != nil {
				h(m.Method, m.Params)
			}
		default:
			c.deliver(&m)
		}
	}
}

func (c *Conn) deliver(m *message) {
	id, err := strconv.ParseInt(string(m.ID), 10, 64)
	if err != nil {
		c.log.Warn().Str("id", string(m.ID)).Msg("response with unknown id")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.pending[id]; ok {
		delete(c.pending, id)
		ch <- m
	}
}

func (c *Conn) serve(req *message) {
	c.mu.Lock()
	h, ok := c.handlers[req.Method]
	c.mu.Unlock()

	resp := &message{JSONRPC: "2.0", ID: req.ID}
	if !ok {
		resp.Error = &Error{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}
	} else {
		result, rpcErr := h(c.ctx, req.Params)
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			raw, err := json.Marshal(result)
			if err != nil {
				resp.Error = &Error{Code: CodeInternalError, Message: err.Error()}
			} else {
				resp.Result = raw
			}
		}
	}
	if err := c.send(resp); err != nil {
		c.log.Warn().Err(err).Str("method", req.Method).Msg("reply failed")
	}
}

func (c *Conn) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.err = err
	c.cancel()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Conn) closedErr() error {
	if err := c.Err(); err != nil {
		return err
	}
	return ErrClosed
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return json.RawMessage("{}"), nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return json.RawMessage("{}"), nil
	}
	return b, nil
}
