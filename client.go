package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/armatrix/copilot-sdk-go/hook"
	"github.com/armatrix/copilot-sdk-go/internal/hookrunner"
	"github.com/armatrix/copilot-sdk-go/internal/jsonrpc"
	"github.com/armatrix/copilot-sdk-go/internal/logging"
	"github.com/armatrix/copilot-sdk-go/rpc"
)

// ConnectionState is the lifecycle state of a Client.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("ConnectionState(%d)", int(s))
}

// connectFunc opens the byte stream to the CLI. Tests replace it with an
// in-process server.
type connectFunc func(ctx context.Context, o resolvedOptions) (io.ReadWriteCloser, *cliProcess, error)

// Client owns one CLI server and the JSON-RPC connection to it. It is safe
// for concurrent use.
type Client struct {
	// RPC reaches the server-scoped methods (ping, models, tools, account).
	RPC *rpc.ServerRpc

	opts    resolvedOptions
	optsErr error
	log     *logging.Logger
	connect connectFunc

	startMu  sync.Mutex
	mu       sync.Mutex
	state    ConnectionState
	conn     *jsonrpc.Conn
	proc     *cliProcess
	sessions map[string]*Session
}

// NewClient creates a client. Option errors surface from Start.
func NewClient(opts *ClientOptions) *Client {
	resolved, err := resolveOptions(opts)
	c := &Client{
		opts:     resolved,
		optsErr:  err,
		log:      resolved.log,
		connect:  connectCLI,
		sessions: make(map[string]*Session),
	}
	c.RPC = rpc.NewServerRpc(clientCaller{c})
	return c
}

// clientCaller routes rpc accessors through the client's current connection.
type clientCaller struct{ c *Client }

func (cc clientCaller) Call(ctx context.Context, method string, params, result any) error {
	return cc.c.call(ctx, method, params, result)
}

// Start connects to the CLI and verifies the protocol version. Calling Start
// on a connected client is a no-op.
func (c *Client) Start(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if c.optsErr != nil {
		return c.optsErr
	}
	if c.State() == StateConnected {
		return nil
	}
	c.setState(StateConnecting)

	rwc, proc, err := c.connect(ctx, c.opts)
	if err != nil {
		c.setState(StateError)
		return fmt.Errorf("copilot: start: %w", err)
	}

	conn := jsonrpc.NewConn(rwc,
		jsonrpc.WithLogger(c.log.Sub("jsonrpc")),
		jsonrpc.WithTracerProvider(c.opts.tracerProvider),
	)
	conn.HandleNotification(c.handleNotification)
	conn.HandleRequest("tool.call", c.handleToolCall)
	conn.HandleRequest("permission.request", c.handlePermissionRequest)
	conn.Start()

	if err := verifyProtocolVersion(ctx, conn); err != nil {
		_ = conn.Close()
		_ = proc.stop()
		c.setState(StateError)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.proc = proc
	c.state = StateConnected
	c.mu.Unlock()
	c.log.Info().Bool("stdio", c.opts.stdio).Bool("external", c.opts.external).Msg("connected to copilot cli")
	return nil
}

func verifyProtocolVersion(ctx context.Context, conn *jsonrpc.Conn) error {
	res, err := rpc.NewServerRpc(conn).Ping(ctx, &rpc.PingParams{})
	if err != nil {
		return fmt.Errorf("copilot: ping: %w", err)
	}
	if res.ProtocolVersion == nil {
		return fmt.Errorf("%w: SDK expects version %d, but server does not report a protocol version. "+
			"Please update your server to ensure compatibility", ErrProtocolVersion, SdkProtocolVersion)
	}
	if *res.ProtocolVersion != SdkProtocolVersion {
		return fmt.Errorf("%w: SDK expects version %d, but server reports version %d. "+
			"Please update your SDK or server to ensure compatibility", ErrProtocolVersion, SdkProtocolVersion, *res.ProtocolVersion)
	}
	return nil
}

// Stop destroys every session, closes the connection and terminates the
// CLI. All failures are joined into the returned error.
func (c *Client) Stop() error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	var errs []error
	for _, s := range c.liveSessions() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultStopTimeout)
		if err := s.Destroy(ctx); err != nil {
			errs = append(errs, fmt.Errorf("destroy session %s: %w", s.ID, err))
		}
		cancel()
	}
	errs = append(errs, c.teardown()...)
	return errors.Join(errs...)
}

// ForceStop drops the connection and kills the CLI without destroying
// sessions.
func (c *Client) ForceStop() {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	for _, err := range c.teardown() {
		c.log.Debug().Err(err).Msg("force stop")
	}
}

func (c *Client) teardown() []error {
	c.mu.Lock()
	conn, proc := c.conn, c.proc
	sessions := c.sessions
	c.conn, c.proc = nil, nil
	c.sessions = make(map[string]*Session)
	c.state = StateDisconnected
	c.mu.Unlock()

	for _, s := range sessions {
		s.close(ErrClientStopped)
	}
	var errs []error
	if conn != nil {
		if err := conn.Close(); err != nil && !errors.Is(err, jsonrpc.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	if err := proc.stop(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// State returns the connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s ConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// call issues a request on the current connection, starting the client
// first when AutoStart is enabled.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		if !c.opts.autoStart {
			return ErrNotConnected
		}
		if err := c.Start(ctx); err != nil {
			return err
		}
		c.mu.Lock()
		conn = c.conn
		c.mu.Unlock()
		if conn == nil {
			return ErrNotConnected
		}
	}
	return conn.Call(ctx, method, params, result)
}

// Ping round-trips message through the server.
func (c *Client) Ping(ctx context.Context, message string) (*rpc.PingResult, error) {
	return c.RPC.Ping(ctx, &rpc.PingParams{Message: message})
}

// ListModels returns the models available to the authenticated user.
func (c *Client) ListModels(ctx context.Context) ([]rpc.Model, error) {
	res, err := c.RPC.Models.List(ctx)
	if err != nil {
		return nil, err
	}
	return res.Models, nil
}

// StatusResult is returned by GetStatus.
type StatusResult struct {
	Version         string `json:"version"`
	ProtocolVersion int    `json:"protocolVersion"`
}

// GetStatus returns the CLI version information.
func (c *Client) GetStatus(ctx context.Context) (*StatusResult, error) {
	var out StatusResult
	if err := c.call(ctx, "status.get", nil, &out); err != nil {
		return nil, fmt.Errorf("status.get: %w", err)
	}
	return &out, nil
}

// AuthStatusResult is returned by GetAuthStatus.
type AuthStatusResult struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	AuthType        string `json:"authType,omitempty"`
	Host            string `json:"host,omitempty"`
	Login           string `json:"login,omitempty"`
	StatusMessage   string `json:"statusMessage,omitempty"`
}

// GetAuthStatus reports how the CLI is authenticated.
func (c *Client) GetAuthStatus(ctx context.Context) (*AuthStatusResult, error) {
	var out AuthStatusResult
	if err := c.call(ctx, "auth.getStatus", nil, &out); err != nil {
		return nil, fmt.Errorf("auth.getStatus: %w", err)
	}
	return &out, nil
}

// SessionMetadata describes a stored session.
type SessionMetadata struct {
	SessionID    string `json:"sessionId"`
	StartTime    string `json:"startTime"`
	ModifiedTime string `json:"modifiedTime"`
	Summary      string `json:"summary,omitempty"`
	IsRemote     bool   `json:"isRemote"`
}

// ListSessions returns the sessions stored by the CLI.
func (c *Client) ListSessions(ctx context.Context) ([]SessionMetadata, error) {
	var out struct {
		Sessions []SessionMetadata `json:"sessions"`
	}
	if err := c.call(ctx, "session.list", nil, &out); err != nil {
		return nil, fmt.Errorf("session.list: %w", err)
	}
	return out.Sessions, nil
}

// DeleteSession removes a stored session permanently.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	}
	if err := c.call(ctx, "session.delete", map[string]string{"sessionId": sessionID}, &out); err != nil {
		return fmt.Errorf("session.delete: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("session.delete %s: %s", sessionID, out.Error)
	}
	if s := c.Session(sessionID); s != nil {
		s.close(fmt.Errorf("%w: %s deleted", ErrSessionNotFound, sessionID))
	}
	return nil
}

// GetLastSessionID returns the most recently used session ID, or "" when
// there is none.
func (c *Client) GetLastSessionID(ctx context.Context) (string, error) {
	var out struct {
		SessionID *string `json:"sessionId"`
	}
	if err := c.call(ctx, "session.getLastId", nil, &out); err != nil {
		return "", fmt.Errorf("session.getLastId: %w", err)
	}
	if out.SessionID == nil {
		return "", nil
	}
	return *out.SessionID, nil
}

// CreateSession starts a new conversation.
func (c *Client) CreateSession(ctx context.Context, cfg *SessionConfig) (*Session, error) {
	if cfg == nil {
		cfg = &SessionConfig{}
	}
	req, tools, err := buildCreateRequest(cfg)
	if err != nil {
		return nil, err
	}
	hooks, err := newHookRunner(cfg.Hooks)
	if err != nil {
		return nil, err
	}

	var out createSessionResponse
	if err := c.call(ctx, "session.create", req, &out); err != nil {
		return nil, fmt.Errorf("session.create: %w", err)
	}
	s := c.register(sessionParams{
		id:            out.SessionID,
		workspacePath: out.WorkspacePath,
		tools:         tools,
		onPermission:  cfg.OnPermissionRequest,
		hooks:         hooks,
		onEvent:       cfg.OnEvent,
	})
	if err := hooks.RunSessionStart(ctx, s.ID, false); err != nil {
		s.log.Warn().Err(err).Msg("session start hook failed")
	}
	s.log.Debug().Str("model", cfg.Model).Int("tools", tools.Len()).Msg("session created")
	return s, nil
}

// ResumeSession reattaches to a stored session.
func (c *Client) ResumeSession(ctx context.Context, sessionID string, cfg *ResumeSessionConfig) (*Session, error) {
	if cfg == nil {
		cfg = &ResumeSessionConfig{}
	}
	req, tools, err := buildResumeRequest(sessionID, cfg)
	if err != nil {
		return nil, err
	}
	hooks, err := newHookRunner(cfg.Hooks)
	if err != nil {
		return nil, err
	}

	var out createSessionResponse
	if err := c.call(ctx, "session.resume", req, &out); err != nil {
		return nil, fmt.Errorf("session.resume: %w", err)
	}
	if out.SessionID == "" {
		out.SessionID = sessionID
	}
	s := c.register(sessionParams{
		id:            out.SessionID,
		workspacePath: out.WorkspacePath,
		tools:         tools,
		onPermission:  cfg.OnPermissionRequest,
		hooks:         hooks,
		onEvent:       cfg.OnEvent,
	})
	if err := hooks.RunSessionStart(ctx, s.ID, true); err != nil {
		s.log.Warn().Err(err).Msg("session start hook failed")
	}
	return s, nil
}

func newHookRunner(matchers []hook.Matcher) (*hookrunner.Runner, error) {
	if len(matchers) == 0 {
		return nil, nil
	}
	r, err := hookrunner.New(matchers)
	if err != nil {
		return nil, fmt.Errorf("%w: hooks: %v", ErrInvalidOptions, err)
	}
	return r, nil
}

// Session returns the live session with id, or nil.
func (c *Client) Session(id string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[id]
}

func (c *Client) register(p sessionParams) *Session {
	p.caller = clientCaller{c}
	p.log = c.log
	p.release = c.forget
	s := newSession(p)

	c.mu.Lock()
	if prev, ok := c.sessions[s.ID]; ok {
		defer prev.close(fmt.Errorf("%w: %s replaced", ErrSessionNotFound, s.ID))
	}
	c.sessions[s.ID] = s
	c.mu.Unlock()
	return s
}

// forget drops s from the live set unless it was already replaced.
func (c *Client) forget(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessions[s.ID] == s {
		delete(c.sessions, s.ID)
	}
}

func (c *Client) liveSessions() []*Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s)
	}
	return out
}

// --- server-to-client traffic ---

type sessionEventNotification struct {
	SessionID string       `json:"sessionId"`
	Event     SessionEvent `json:"event"`
}

func (c *Client) handleNotification(method string, params json.RawMessage) {
	if method != "session.event" {
		c.log.Debug().Str("method", method).Msg("ignored notification")
		return
	}
	var n sessionEventNotification
	if err := json.Unmarshal(params, &n); err != nil {
		c.log.Warn().Err(err).Msg("malformed session.event")
		return
	}
	s := c.Session(n.SessionID)
	if s == nil {
		c.log.Debug().Str("session", n.SessionID).Str("event", string(n.Event.Type)).Msg("event for unknown session")
		return
	}
	s.deliver(n.Event)
}

type toolCallRequest struct {
	SessionID  string          `json:"sessionId"`
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Arguments  json.RawMessage `json:"arguments"`
}

type toolCallResponse struct {
	Result ToolResult `json:"result"`
}

func (c *Client) handleToolCall(ctx context.Context, params json.RawMessage) (any, *jsonrpc.Error) {
	var req toolCallRequest
	if err := json.Unmarshal(params, &req); err != nil || req.SessionID == "" || req.ToolCallID == "" || req.ToolName == "" {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "invalid tool call payload"}
	}
	s := c.Session(req.SessionID)
	if s == nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "unknown session " + req.SessionID}
	}
	res := s.handleToolCall(ctx, ToolInvocation{
		SessionID:  req.SessionID,
		ToolCallID: req.ToolCallID,
		ToolName:   req.ToolName,
		Arguments:  req.Arguments,
	})
	return toolCallResponse{Result: res}, nil
}

type permissionRequestParams struct {
	SessionID         string          `json:"sessionId"`
	PermissionRequest json.RawMessage `json:"permissionRequest"`
}

type permissionResponse struct {
	Result PermissionResult `json:"result"`
}

func (c *Client) handlePermissionRequest(ctx context.Context, params json.RawMessage) (any, *jsonrpc.Error) {
	var p permissionRequestParams
	if err := json.Unmarshal(params, &p); err != nil || p.SessionID == "" || len(p.PermissionRequest) == 0 {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "invalid permission request payload"}
	}
	var req PermissionRequest
	if err := json.Unmarshal(p.PermissionRequest, &req); err != nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "invalid permission request payload"}
	}
	s := c.Session(p.SessionID)
	if s == nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "unknown session " + p.SessionID}
	}
	return permissionResponse{Result: s.handlePermission(ctx, req, p.PermissionRequest)}, nil
}
