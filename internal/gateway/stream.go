package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	copilot "github.com/armatrix/copilot-sdk-go"
)

// Frame types sent on the stream socket.
const (
	FrameDelta   = "delta"
	FrameMessage = "message"
	FrameTool    = "tool"
	FrameIdle    = "idle"
	FrameError   = "error"
)

// Frame is one websocket message of GET /threads/{id}/stream.
type Frame struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

const writeWait = 10 * time.Second

// handleStream runs one turn and streams its events over a websocket. The
// socket is closed after the idle or error frame.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	prompt := r.URL.Query().Get("prompt")
	if prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	unlock := s.lockThread(threadID)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	sess, err := s.sessionFor(ctx, threadID)
	if err != nil {
		s.log.Error().Err(err).Str("thread", threadID).Msg("open session")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(4096)

	// A client that goes away aborts the turn.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	stream := sess.Stream(ctx, copilot.MessageOptions{Prompt: prompt})
	defer stream.Close()
	for stream.Next() {
		ev := stream.Current()
		var f Frame
		switch ev.Type {
		case copilot.AssistantMessageDelta:
			f = Frame{Type: FrameDelta, Content: ev.Data.DeltaContent}
		case copilot.AssistantMessage:
			f = Frame{Type: FrameMessage, Content: ev.Data.Content}
		case copilot.ToolExecutionStart:
			f = Frame{Type: FrameTool, Content: ev.Data.ToolName}
		default:
			continue
		}
		if err := writeFrame(conn, f); err != nil {
			s.log.Debug().Err(err).Str("thread", threadID).Msg("stream write failed")
			_ = sess.Abort(context.Background())
			return
		}
	}

	final := Frame{Type: FrameIdle, SessionID: sess.ID}
	if err := stream.Err(); err != nil {
		final = Frame{Type: FrameError, Content: err.Error(), SessionID: sess.ID}
		if ctx.Err() != nil {
			_ = sess.Abort(context.Background())
		}
	}
	if err := writeFrame(conn, final); err != nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, final.Type),
		time.Now().Add(writeWait))
}

func writeFrame(conn *websocket.Conn, f Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}
