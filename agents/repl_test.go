package agents

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/internal/clitest"
)

func TestFail(t *testing.T) {
	assert.Equal(t, Failure{Error: "Invalid priority \"x\"."}, Fail("Invalid priority %q.", "x"))
}

func TestREPL_ExitBeforeAnyTurn(t *testing.T) {
	var out bytes.Buffer
	r := REPL{Label: "Customer: ", In: strings.NewReader("\n   \nEXIT\nnever sent\n"), Out: &out}
	assert.NoError(t, r.Run(t.Context(), nil))
	assert.Equal(t, "Customer: Customer: Customer: ", out.String())
}

func TestREPL_EOF(t *testing.T) {
	var out bytes.Buffer
	r := REPL{Label: "Engineer: ", In: strings.NewReader(""), Out: &out}
	assert.NoError(t, r.Run(t.Context(), nil))
	assert.Equal(t, "Engineer: \n", out.String())
}

func startSession(t *testing.T, cli *clitest.Server) *copilot.Session {
	t.Helper()
	client := copilot.NewClient(&copilot.ClientOptions{CLIUrl: cli.Listen()})
	require.NoError(t, client.Start(t.Context()))
	t.Cleanup(client.ForceStop)
	s, err := client.CreateSession(t.Context(), &copilot.SessionConfig{Streaming: true})
	require.NoError(t, err)
	return s
}

func TestREPL_StreamsTurns(t *testing.T) {
	cli := clitest.New(t)
	cli.OnSend = clitest.Reply("Hel", "lo")
	s := startSession(t, cli)

	var out bytes.Buffer
	r := REPL{Label: "Customer: ", In: strings.NewReader("hi\nexit\n"), Out: &out}
	require.NoError(t, r.Run(t.Context(), s))
	assert.Equal(t, "Customer: Agent: Hello\n\nCustomer: ", out.String())
}

func TestREPL_PrintsWholeMessageWithoutDeltas(t *testing.T) {
	cli := clitest.New(t)
	s := startSession(t, cli)

	var out bytes.Buffer
	r := REPL{Label: "> ", In: strings.NewReader("ping\n"), Out: &out}
	require.NoError(t, r.Run(t.Context(), s))
	assert.Equal(t, "> Agent: echo: ping\n\n> \n", out.String())
}

func TestREPL_TurnErrorKeepsLooping(t *testing.T) {
	cli := clitest.New(t)
	cli.OnSend = func(s *clitest.Server, id, prompt string) {
		if prompt == "bad" {
			s.Emit(id, "session.error", map[string]any{"message": "model unavailable"})
			return
		}
		clitest.Echo(s, id, prompt)
	}
	s := startSession(t, cli)

	var out bytes.Buffer
	r := REPL{Label: "> ", In: strings.NewReader("bad\ngood\nexit\n"), Out: &out}
	require.NoError(t, r.Run(t.Context(), s))
	assert.Contains(t, out.String(), "error: copilot: session error: model unavailable")
	assert.Contains(t, out.String(), "Agent: echo: good")
}

func TestREPL_StopsWhenExhausted(t *testing.T) {
	cli := clitest.New(t)
	s := startSession(t, cli)

	turns := 0
	var out bytes.Buffer
	r := REPL{
		Label:     "> ",
		In:        strings.NewReader("one\ntwo\nthree\n"),
		Out:       &out,
		Exhausted: func() bool { turns++; return turns > 1 },
	}
	require.NoError(t, r.Run(t.Context(), s))
	assert.Equal(t, "> Agent: echo: one\n\n> Premium request budget exhausted.\n", out.String())
	assert.Equal(t, 1, cli.Count("session.send"))
}
