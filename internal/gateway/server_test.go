package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/internal/clitest"
	"github.com/armatrix/copilot-sdk-go/session"
)

type testEnv struct {
	cli      *clitest.Server
	registry *session.MemoryStore
	gw       *Server
	ts       *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cli := clitest.New(t)
	client := copilot.NewClient(&copilot.ClientOptions{CLIUrl: cli.Listen()})
	require.NoError(t, client.Start(context.Background()))
	t.Cleanup(client.ForceStop)

	env := &testEnv{cli: cli}
	env.registry = session.NewMemoryStore(time.Hour, func(e session.Entry) { env.gw.Release(e) })
	env.gw = New(Options{
		Client:       client,
		Registry:     env.registry,
		Profile:      func(string) *copilot.SessionConfig { return &copilot.SessionConfig{Streaming: true} },
		ReplyTimeout: 5 * time.Second,
	})
	env.ts = httptest.NewServer(env.gw.Handler())
	t.Cleanup(env.ts.Close)
	return env
}

func (e *testEnv) post(t *testing.T, thread, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(e.ts.URL+"/threads/"+thread+"/messages", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) dial(t *testing.T, thread, prompt string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/threads/" + thread + "/stream?prompt=" + prompt
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrames(t *testing.T, conn *websocket.Conn) []Frame {
	t.Helper()
	var frames []Frame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return frames
		}
		frames = append(frames, f)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "connected", body["cli"])
}

func TestMessage_CreatesAndReusesSession(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "thread-a", `{"prompt":"hi"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first MessageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&first))
	assert.Equal(t, "echo: hi", first.Reply)
	assert.NotEmpty(t, first.SessionID)

	entry, err := env.registry.Get(context.Background(), "thread-a")
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, entry.SessionID)
	assert.Equal(t, true, env.cli.LastCreate()["streaming"])

	resp = env.post(t, "thread-a", `{"prompt":"again"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second MessageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&second))
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, "echo: again", second.Reply)
	assert.Equal(t, 1, env.cli.Creates())
}

func TestMessage_SeparateThreads(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "a", `{"prompt":"x"}`)
	env.post(t, "b", `{"prompt":"y"}`)
	assert.Equal(t, 2, env.cli.Creates())

	resp, err := http.Get(env.ts.URL + "/threads")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list ThreadsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, []string{"a", "b"}, list.Threads)
}

func TestMessage_BadRequests(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name, body, want string
	}{
		{"invalid json", `{`, "invalid JSON body"},
		{"empty prompt", `{"prompt":""}`, "prompt is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.post(t, "t", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.want, body.Error)
		})
	}
	assert.Equal(t, 0, env.cli.Creates())
}

func TestMessage_SessionError(t *testing.T) {
	env := newTestEnv(t)
	env.cli.OnSend = func(s *clitest.Server, id, _ string) {
		s.Emit(id, "session.error", map[string]any{"message": "rate limited"})
		s.Emit(id, "session.idle", map[string]any{})
	}
	resp := env.post(t, "t", `{"prompt":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "rate limited")
}

func TestMessage_ResumesRegisteredSession(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.registry.Put(context.Background(), session.NewEntry("old-thread", "sess-old")))

	resp := env.post(t, "old-thread", `{"prompt":"welcome back"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out MessageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "sess-old", out.SessionID)
	assert.Equal(t, "echo: welcome back", out.Reply)
	assert.True(t, env.cli.Called("session.resume"))
	assert.Equal(t, 0, env.cli.Creates())
}

func TestDeleteThread(t *testing.T) {
	env := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodDelete, env.ts.URL+"/threads/nope", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	env.post(t, "t", `{"prompt":"hi"}`)
	req, _ = http.NewRequest(http.MethodDelete, env.ts.URL+"/threads/t", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = env.registry.Get(context.Background(), "t")
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Equal(t, 1, env.cli.Count("session.destroy"))
}

func TestStream_Frames(t *testing.T) {
	env := newTestEnv(t)
	env.cli.OnSend = clitest.Reply("Hel", "lo")

	frames := readFrames(t, env.dial(t, "s", "greet"))
	require.Len(t, frames, 4)
	assert.Equal(t, Frame{Type: FrameDelta, Content: "Hel"}, frames[0])
	assert.Equal(t, Frame{Type: FrameDelta, Content: "lo"}, frames[1])
	assert.Equal(t, Frame{Type: FrameMessage, Content: "Hello"}, frames[2])
	assert.Equal(t, FrameIdle, frames[3].Type)
	assert.NotEmpty(t, frames[3].SessionID)
}

func TestStream_ErrorFrame(t *testing.T) {
	env := newTestEnv(t)
	env.cli.OnSend = func(s *clitest.Server, id, _ string) {
		s.Emit(id, "session.error", map[string]any{"message": "boom"})
		s.Emit(id, "session.idle", map[string]any{})
	}

	frames := readFrames(t, env.dial(t, "s", "x"))
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	assert.Equal(t, FrameError, last.Type)
	assert.Contains(t, last.Content, "boom")
}

func TestStream_MissingPrompt(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.ts.URL + "/threads/s/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", nil, "", true},
		{"cross origin denied by default", nil, "https://evil.example", false},
		{"listed origin", []string{"https://chat.example"}, "https://chat.example", true},
		{"wildcard", []string{"*"}, "https://any.example", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checkOrigin(tt.allowed)(r))
		})
	}
}
