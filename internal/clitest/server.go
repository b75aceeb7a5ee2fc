// Package clitest provides an in-process Copilot CLI server speaking the real
// wire protocol, for tests that need a live client without the copilot
// binary.
package clitest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/armatrix/copilot-sdk-go/internal/jsonrpc"
	"github.com/armatrix/copilot-sdk-go/rpc"
)

// ProtocolVersion is the version reported by ping unless overridden.
const ProtocolVersion = 2

// SendFunc reacts to a session.send. It runs on its own goroutine.
type SendFunc func(s *Server, sessionID, prompt string)

// Server is a fake CLI. Set ProtocolVersion and OnSend before the client
// connects.
type Server struct {
	// ProtocolVersion is reported by ping; nil omits the field.
	ProtocolVersion *int
	// OnSend defaults to Echo.
	OnSend SendFunc

	t testing.TB

	mu       sync.Mutex
	conns    map[string]*jsonrpc.Conn
	last     *jsonrpc.Conn
	methods  []string
	creates  []map[string]any
	agents   map[string][]rpc.Agent
	current  map[string]*rpc.Agent
	nextID   int
	messages map[string][]map[string]any
}

// New returns a server whose connections close when t ends.
func New(t testing.TB) *Server {
	v := ProtocolVersion
	return &Server{
		ProtocolVersion: &v,
		OnSend:          Echo,
		t:               t,
		conns:           make(map[string]*jsonrpc.Conn),
		agents:          make(map[string][]rpc.Agent),
		current:         make(map[string]*rpc.Agent),
		messages:        make(map[string][]map[string]any),
	}
}

// Echo answers every prompt with "echo: <prompt>" and goes idle.
func Echo(s *Server, sessionID, prompt string) {
	s.Emit(sessionID, "assistant.message", map[string]any{"content": "echo: " + prompt, "messageId": "m1"})
	s.Emit(sessionID, "session.idle", map[string]any{})
}

// Reply streams text as deltas, then the full message, then idle.
func Reply(deltas ...string) SendFunc {
	return func(s *Server, sessionID, _ string) {
		full := ""
		for _, d := range deltas {
			full += d
			s.Emit(sessionID, "assistant.message_delta", map[string]any{"deltaContent": d})
		}
		s.Emit(sessionID, "assistant.message", map[string]any{"content": full})
		s.Emit(sessionID, "session.idle", map[string]any{})
	}
}

// Pipe serves one in-memory connection and returns the client end.
func (s *Server) Pipe() io.ReadWriteCloser {
	client, server := net.Pipe()
	s.serve(server)
	return client
}

// Listen accepts TCP connections on a loopback port and returns its address,
// usable as ClientOptions.CLIUrl.
func (s *Server) Listen() string {
	s.t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		s.t.Fatalf("clitest: listen: %v", err)
	}
	s.t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			s.serve(c)
		}
	}()
	return ln.Addr().String()
}

func (s *Server) serve(rwc io.ReadWriteCloser) {
	conn := jsonrpc.NewConn(rwc)
	s.register(conn)
	s.mu.Lock()
	s.last = conn
	s.mu.Unlock()
	conn.Start()
	s.t.Cleanup(func() { _ = conn.Close() })
}

// connFor returns the connection that owns sessionID, or the newest one.
func (s *Server) connFor(sessionID string) *jsonrpc.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conns[sessionID]; ok {
		return c
	}
	return s.last
}

func (s *Server) handle(conn *jsonrpc.Conn, method string, fn func(p map[string]any) (any, *jsonrpc.Error)) {
	conn.HandleRequest(method, func(_ context.Context, raw json.RawMessage) (any, *jsonrpc.Error) {
		var p map[string]any
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: err.Error()}
		}
		s.mu.Lock()
		s.methods = append(s.methods, method)
		s.mu.Unlock()
		return fn(p)
	})
}

func (s *Server) register(conn *jsonrpc.Conn) {
	s.handle(conn, "ping", func(p map[string]any) (any, *jsonrpc.Error) {
		msg, _ := p["message"].(string)
		return rpc.PingResult{Message: "pong: " + msg, Timestamp: time.Now().UnixMilli(), ProtocolVersion: s.ProtocolVersion}, nil
	})
	s.handle(conn, "session.create", func(p map[string]any) (any, *jsonrpc.Error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.nextID++
		id := fmt.Sprintf("sess-%d", s.nextID)
		if want, ok := p["sessionId"].(string); ok && want != "" {
			id = want
		}
		s.conns[id] = conn
		s.creates = append(s.creates, p)
		if list, ok := p["customAgents"].([]any); ok {
			for _, item := range list {
				m, _ := item.(map[string]any)
				name, _ := m["name"].(string)
				a := rpc.Agent{Name: name}
				a.DisplayName, _ = m["displayName"].(string)
				a.Description, _ = m["description"].(string)
				s.agents[id] = append(s.agents[id], a)
			}
		}
		return map[string]any{"sessionId": id, "workspacePath": "/tmp/" + id}, nil
	})
	s.handle(conn, "session.resume", func(p map[string]any) (any, *jsonrpc.Error) {
		id, _ := p["sessionId"].(string)
		s.mu.Lock()
		s.conns[id] = conn
		s.mu.Unlock()
		return map[string]any{"sessionId": id, "workspacePath": "/tmp/resumed"}, nil
	})
	s.handle(conn, "session.send", func(p map[string]any) (any, *jsonrpc.Error) {
		id, _ := p["sessionId"].(string)
		prompt, _ := p["prompt"].(string)
		if s.OnSend != nil {
			go s.OnSend(s, id, prompt)
		}
		return map[string]any{"messageId": "msg-1"}, nil
	})
	s.handle(conn, "session.destroy", func(map[string]any) (any, *jsonrpc.Error) {
		return map[string]any{}, nil
	})
	s.handle(conn, "session.abort", func(map[string]any) (any, *jsonrpc.Error) {
		return map[string]any{}, nil
	})
	s.handle(conn, "session.getMessages", func(p map[string]any) (any, *jsonrpc.Error) {
		id, _ := p["sessionId"].(string)
		s.mu.Lock()
		defer s.mu.Unlock()
		return map[string]any{"events": s.messages[id]}, nil
	})
	s.handle(conn, "session.list", func(map[string]any) (any, *jsonrpc.Error) {
		return map[string]any{"sessions": []map[string]any{{"sessionId": "sess-1", "startTime": "2026-01-01T00:00:00Z", "modifiedTime": "2026-01-01T00:10:00Z", "isRemote": false}}}, nil
	})
	s.handle(conn, "session.getLastId", func(map[string]any) (any, *jsonrpc.Error) {
		return map[string]any{"sessionId": "sess-1"}, nil
	})
	s.handle(conn, "session.delete", func(p map[string]any) (any, *jsonrpc.Error) {
		if p["sessionId"] == "missing" {
			return map[string]any{"success": false, "error": "no such session"}, nil
		}
		return map[string]any{"success": true}, nil
	})
	s.handle(conn, "status.get", func(map[string]any) (any, *jsonrpc.Error) {
		return map[string]any{"version": "0.0.400", "protocolVersion": ProtocolVersion}, nil
	})
	s.handle(conn, "auth.getStatus", func(map[string]any) (any, *jsonrpc.Error) {
		return map[string]any{"isAuthenticated": true, "authType": "token", "login": "octocat"}, nil
	})
	s.handle(conn, "models.list", func(map[string]any) (any, *jsonrpc.Error) {
		return map[string]any{"models": []map[string]any{{"id": "gpt-4.1", "name": "GPT-4.1"}}}, nil
	})
	s.handle(conn, "tools.list", func(map[string]any) (any, *jsonrpc.Error) {
		return map[string]any{"tools": []map[string]any{
			{"name": "bash", "description": "Run a shell command"},
			{"name": "view", "namespacedName": "fs/view", "description": "Read a file"},
		}}, nil
	})
	s.handle(conn, "account.getQuota", func(map[string]any) (any, *jsonrpc.Error) {
		return map[string]any{"quotaSnapshots": map[string]any{
			"premium_interactions": map[string]any{
				"entitlementRequests": 300, "usedRequests": 42, "remainingPercentage": 86,
				"overage": 0, "overageAllowedWithExhaustedQuota": false, "resetDate": "2026-11-01",
			},
		}}, nil
	})
	s.handle(conn, "session.agent.list", func(p map[string]any) (any, *jsonrpc.Error) {
		id, _ := p["sessionId"].(string)
		s.mu.Lock()
		defer s.mu.Unlock()
		agents := s.agents[id]
		if agents == nil {
			agents = []rpc.Agent{}
		}
		return rpc.SessionAgentListResult{Agents: agents}, nil
	})
	s.handle(conn, "session.agent.getCurrent", func(p map[string]any) (any, *jsonrpc.Error) {
		id, _ := p["sessionId"].(string)
		s.mu.Lock()
		defer s.mu.Unlock()
		return rpc.SessionAgentGetCurrentResult{Agent: s.current[id]}, nil
	})
	s.handle(conn, "session.agent.select", func(p map[string]any) (any, *jsonrpc.Error) {
		id, _ := p["sessionId"].(string)
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, a := range s.agents[id] {
			if a.Name == p["name"] {
				a := a
				s.current[id] = &a
				return rpc.SessionAgentSelectResult{Agent: a}, nil
			}
		}
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: fmt.Sprintf("agent %v not found", p["name"])}
	})
	s.handle(conn, "session.agent.deselect", func(p map[string]any) (any, *jsonrpc.Error) {
		id, _ := p["sessionId"].(string)
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.current, id)
		return map[string]any{}, nil
	})
	s.handle(conn, "session.compaction.compact", func(map[string]any) (any, *jsonrpc.Error) {
		return rpc.SessionCompactionCompactResult{Success: true, TokensRemoved: 1200, MessagesRemoved: 4}, nil
	})
}

// Emit pushes one session.event notification and records it in the
// session's message log.
func (s *Server) Emit(sessionID, typ string, data map[string]any) {
	s.mu.Lock()
	ev := map[string]any{
		"id":        fmt.Sprintf("ev-%d", len(s.messages[sessionID])+1),
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"parentId":  nil,
		"type":      typ,
		"data":      data,
	}
	s.messages[sessionID] = append(s.messages[sessionID], ev)
	s.mu.Unlock()
	if conn := s.connFor(sessionID); conn != nil {
		_ = conn.Notify("session.event", map[string]any{"sessionId": sessionID, "event": ev})
	}
}

// CallTool issues a tool.call request to the client and returns the raw result.
func (s *Server) CallTool(params map[string]any) (json.RawMessage, error) {
	id, _ := params["sessionId"].(string)
	conn := s.connFor(id)
	if conn == nil {
		return nil, errors.New("clitest: no client connected")
	}
	var out json.RawMessage
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := conn.Call(ctx, "tool.call", params, &out)
	return out, err
}

// RequestPermission issues a permission.request and returns the decision kind.
func (s *Server) RequestPermission(sessionID string, req map[string]any) (string, error) {
	conn := s.connFor(sessionID)
	if conn == nil {
		return "", errors.New("clitest: no client connected")
	}
	var out struct {
		Result struct {
			Kind string `json:"kind"`
		} `json:"result"`
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := conn.Call(ctx, "permission.request", map[string]any{"sessionId": sessionID, "permissionRequest": req}, &out)
	return out.Result.Kind, err
}

// LastCreate returns the params of the most recent session.create.
func (s *Server) LastCreate() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.creates) == 0 {
		return nil
	}
	return s.creates[len(s.creates)-1]
}

// Creates reports how many sessions were created.
func (s *Server) Creates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creates)
}

// Called reports whether method was received at least once.
func (s *Server) Called(method string) bool {
	return s.Count(method) > 0
}

// Count reports how many times method was received.
func (s *Server) Count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.methods {
		if m == method {
			n++
		}
	}
	return n
}
