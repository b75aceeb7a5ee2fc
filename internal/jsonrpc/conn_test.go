package jsonrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// peer is the far end of a net.Pipe speaking raw frames.
type peer struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
	mu   sync.Mutex
}

func newPair(t *testing.T) (*Conn, *peer) {
	t.Helper()
	a, b := net.Pipe()
	c := NewConn(a)
	p := &peer{t: t, conn: b, r: bufio.NewReader(b)}
	t.Cleanup(func() {
		_ = c.Close()
		_ = b.Close()
	})
	return c, p
}

func (p *peer) read() *message {
	p.t.Helper()
	payload, err := readFrame(p.r)
	require.NoError(p.t, err)
	var m message
	require.NoError(p.t, json.Unmarshal(payload, &m))
	return &m
}

func (p *peer) write(v any) {
	p.t.Helper()
	b, err := json.Marshal(v)
	require.NoError(p.t, err)
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NoError(p.t, writeFrame(p.conn, b))
}

// --- Framing ---

func TestReadFrame_MissingLength(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("X-Other: 1\r\n\r\n{}"))
	_, err := readFrame(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing Content-Length")
}

func TestReadFrame_CaseInsensitiveHeader(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("content-length: 2\r\nContent-Type: application/json\r\n\r\n{}"))
	b, err := readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}

// --- Calls ---

func TestCall_Result(t *testing.T) {
	c, p := newPair(t)
	c.Start()

	go func() {
		req := p.read()
		assert.Equal(t, "ping", req.Method)
		assert.JSONEq(t, `{"message":"hi"}`, string(req.Params))
		p.write(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{"message": "pong", "protocolVersion": 2}})
	}()

	var out struct {
		Message         string `json:"message"`
		ProtocolVersion int    `json:"protocolVersion"`
	}
	err := c.Call(context.Background(), "ping", map[string]string{"message": "hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "pong", out.Message)
	assert.Equal(t, 2, out.ProtocolVersion)
}

func TestCall_ErrorObject(t *testing.T) {
	c, p := newPair(t)
	c.Start()

	go func() {
		req := p.read()
		p.write(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{"code": CodeMethodNotFound, "message": "no such method"}})
	}()

	err := c.Call(context.Background(), "session.nope", nil, nil)
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeMethodNotFound, rpcErr.Code)
	assert.Equal(t, "no such method", rpcErr.Message)
}

func TestCall_NilParamsSendsEmptyObject(t *testing.T) {
	c, p := newPair(t)
	c.Start()

	go func() {
		req := p.read()
		assert.JSONEq(t, `{}`, string(req.Params))
		p.write(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": nil})
	}()

	require.NoError(t, c.Call(context.Background(), "models.list", nil, nil))
}

func TestCall_ContextCancelled(t *testing.T) {
	c, p := newPair(t)
	c.Start()

	go func() { _ = p.read() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Call(ctx, "session.send", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCall_ConcurrentOutOfOrder(t *testing.T) {
	c, p := newPair(t)
	c.Start()

	go func() {
		first := p.read()
		second := p.read()
		p.write(map[string]any{"jsonrpc": "2.0", "id": second.ID, "result": second.Method})
		p.write(map[string]any{"jsonrpc": "2.0", "id": first.ID, "result": first.Method})
	}()

	var wg sync.WaitGroup
	results := make([]string, 2)
	for i, method := range []string{"a", "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, c.Call(context.Background(), method, nil, &results[i]))
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"a", "b"}, results)
}

func TestCall_PendingFailsOnClose(t *testing.T) {
	c, p := newPair(t)
	c.Start()

	go func() {
		_ = p.read()
		_ = p.conn.Close()
	}()

	err := c.Call(context.Background(), "session.send", nil, nil)
	assert.ErrorIs(t, err, ErrClosed)

	<-c.Done()
	assert.ErrorIs(t, c.Call(context.Background(), "ping", nil, nil), ErrClosed)
}

// --- Server-initiated traffic ---

func TestNotificationsInOrder(t *testing.T) {
	c, p := newPair(t)

	var mu sync.Mutex
	var got []string
	all := make(chan struct{})
	c.HandleNotification(func(method string, params json.RawMessage) {
		mu.Lock()
		defer mu.Unlock()
		var v struct {
			N string `json:"n"`
		}
		_ = json.Unmarshal(params, &v)
		got = append(got, method+":"+v.N)
		if len(got) == 3 {
			close(all)
		}
	})
	c.Start()

	for _, n := range []string{"1", "2", "3"} {
		p.write(map[string]any{"jsonrpc": "2.0", "method": "session.event", "params": map[string]string{"n": n}})
	}

	select {
	case <-all:
	case <-time.After(2 * time.Second):
		t.Fatal("notifications not delivered")
	}
	assert.Equal(t, []string{"session.event:1", "session.event:2", "session.event:3"}, got)
}

func TestServerRequest_Handled(t *testing.T) {
	c, p := newPair(t)
	c.HandleRequest("tool.call", func(_ context.Context, params json.RawMessage) (any, *Error) {
		var in struct {
			ToolName string `json:"toolName"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
		}
		return map[string]string{"echo": in.ToolName}, nil
	})
	c.Start()

	p.write(map[string]any{"jsonrpc": "2.0", "id": "req-7", "method": "tool.call", "params": map[string]string{"toolName": "lookup_account"}})
	resp := p.read()
	assert.JSONEq(t, `"req-7"`, string(resp.ID))
	assert.Nil(t, resp.Error)
	assert.JSONEq(t, `{"echo":"lookup_account"}`, string(resp.Result))
}

func TestServerRequest_MethodNotFound(t *testing.T) {
	c, p := newPair(t)
	c.Start()

	p.write(map[string]any{"jsonrpc": "2.0", "id": 9, "method": "unknown.method", "params": map[string]any{}})
	resp := p.read()
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestMalformedFrameSkipped(t *testing.T) {
	c, p := newPair(t)
	c.Start()

	go func() {
		req := p.read()
		p.mu.Lock()
		_ = writeFrame(p.conn, []byte("{not json"))
		p.mu.Unlock()
		p.write(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "ok"})
	}()

	var out string
	require.NoError(t, c.Call(context.Background(), "ping", nil, &out))
	assert.Equal(t, "ok", out)
}

func TestErrorString(t *testing.T) {
	err := &Error{Code: CodeInvalidParams, Message: "bad"}
	assert.Equal(t, "jsonrpc: bad (code -32602)", err.Error())
	assert.False(t, errors.Is(err, ErrClosed))
}
