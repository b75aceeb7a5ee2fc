// Package gateway exposes Copilot sessions to external chat threads over HTTP
// and WebSocket. Each thread ID maps to one CLI session through a
// session.Registry, so a thread survives gateway restarts when the registry
// is persistent.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/internal/logging"
	"github.com/armatrix/copilot-sdk-go/session"
)

// DefaultReplyTimeout bounds one POST /threads/{id}/messages turn.
const DefaultReplyTimeout = 5 * time.Minute

// ProfileFunc returns the session configuration for a new thread.
type ProfileFunc func(threadID string) *copilot.SessionConfig

// Options configures a Server.
type Options struct {
	Client   *copilot.Client
	Registry session.Registry
	// Profile defaults to an empty configuration.
	Profile        ProfileFunc
	Logger         *logging.Logger
	AllowedOrigins []string
	ReplyTimeout   time.Duration
}

// Server routes thread traffic to sessions.
type Server struct {
	client   *copilot.Client
	registry session.Registry
	profile  ProfileFunc
	log      *logging.Logger
	timeout  time.Duration
	origins  []string
	upgrader websocket.Upgrader

	mu      sync.Mutex
	threads map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

// New returns a gateway over opts.Client and opts.Registry.
func New(opts Options) *Server {
	s := &Server{
		client:   opts.Client,
		registry: opts.Registry,
		profile:  opts.Profile,
		log:      opts.Logger,
		timeout:  opts.ReplyTimeout,
		origins:  opts.AllowedOrigins,
		threads:  make(map[string]*threadLock),
	}
	if s.profile == nil {
		s.profile = func(string) *copilot.SessionConfig { return &copilot.SessionConfig{} }
	}
	if s.log == nil {
		s.log = logging.Nop()
	}
	if s.timeout <= 0 {
		s.timeout = DefaultReplyTimeout
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin(opts.AllowedOrigins),
	}
	return s
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return withMiddleware(mux, s.log, s.origins)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("gateway ready")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Release destroys the live session behind e. It is meant as the registry's
// eviction callback.
func (s *Server) Release(e session.Entry) {
	live := s.client.Session(e.SessionID)
	if live == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := live.Destroy(ctx); err != nil {
		s.log.Warn().Err(err).Str("thread", e.Key).Str("session", e.SessionID).Msg("destroy evicted session")
		return
	}
	s.log.Debug().Str("thread", e.Key).Str("session", e.SessionID).Msg("session released")
}

// lockThread serializes turns on one thread.
func (s *Server) lockThread(id string) func() {
	s.mu.Lock()
	l, ok := s.threads[id]
	if !ok {
		l = &threadLock{}
		s.threads[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.threads, id)
		}
		s.mu.Unlock()
	}
}

// sessionFor returns the thread's session: live, resumed from the registry,
// or newly created.
func (s *Server) sessionFor(ctx context.Context, threadID string) (*copilot.Session, error) {
	entry, err := s.registry.Get(ctx, threadID)
	switch {
	case err == nil:
		if live := s.client.Session(entry.SessionID); live != nil {
			return live, nil
		}
		cfg := s.profile(threadID)
		resumed, err := s.client.ResumeSession(ctx, entry.SessionID, resumeConfig(cfg))
		if err == nil {
			entry.UpdatedAt = time.Now().UTC()
			if err := s.registry.Put(ctx, entry); err != nil {
				return nil, fmt.Errorf("update registry: %w", err)
			}
			s.log.Debug().Str("thread", threadID).Str("session", resumed.ID).Msg("session resumed")
			return resumed, nil
		}
		s.log.Warn().Err(err).Str("thread", threadID).Str("session", entry.SessionID).Msg("resume failed, starting a new session")
	case !errors.Is(err, session.ErrNotFound):
		return nil, fmt.Errorf("registry lookup: %w", err)
	}

	sess, err := s.client.CreateSession(ctx, s.profile(threadID))
	if err != nil {
		return nil, err
	}
	if err := s.registry.Put(ctx, session.NewEntry(threadID, sess.ID)); err != nil {
		_ = sess.Destroy(ctx)
		return nil, fmt.Errorf("update registry: %w", err)
	}
	s.log.Info().Str("thread", threadID).Str("session", sess.ID).Msg("session created")
	return sess, nil
}

func resumeConfig(cfg *copilot.SessionConfig) *copilot.ResumeSessionConfig {
	if cfg == nil {
		return nil
	}
	return &copilot.ResumeSessionConfig{
		Tools:               cfg.Tools,
		Streaming:           cfg.Streaming,
		Provider:            cfg.Provider,
		OnPermissionRequest: cfg.OnPermissionRequest,
		Hooks:               cfg.Hooks,
		MCPServers:          cfg.MCPServers,
		CustomAgents:        cfg.CustomAgents,
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}
