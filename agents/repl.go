// Package agents holds the pieces shared by the example agents: the
// interactive prompt loop and the tool result helpers.
package agents

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	copilot "github.com/armatrix/copilot-sdk-go"
)

// Failure is the value a tool returns when it rejects its input. The model
// sees it as {"error": "..."}.
type Failure struct {
	Error string `json:"error"`
}

// Fail builds a Failure from a format string.
func Fail(format string, args ...any) Failure {
	return Failure{Error: fmt.Sprintf(format, args...)}
}

// REPL reads prompts line by line and streams each reply.
type REPL struct {
	// Label is printed before every prompt, e.g. "Customer: ".
	Label string
	In    io.Reader
	Out   io.Writer
	// Exhausted, when set, is checked before every turn; the loop ends once
	// it reports true.
	Exhausted func() bool
}

// Run loops until "exit", end of input or ctx cancellation. A failed turn is
// reported on Out and the loop continues.
func (r REPL) Run(ctx context.Context, s *copilot.Session) error {
	sc := bufio.NewScanner(r.In)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(r.Out, r.Label)
		if !sc.Scan() {
			fmt.Fprintln(r.Out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if strings.EqualFold(line, "exit") {
			return nil
		}
		if line == "" {
			continue
		}
		if r.Exhausted != nil && r.Exhausted() {
			fmt.Fprintln(r.Out, "Premium request budget exhausted.")
			return nil
		}

		fmt.Fprint(r.Out, "Agent: ")
		if err := r.turn(ctx, s, line); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, copilot.ErrClientStopped) {
				return err
			}
			fmt.Fprintf(r.Out, "\nerror: %v\n", err)
		}
		fmt.Fprint(r.Out, "\n\n")
	}
}

func (r REPL) turn(ctx context.Context, s *copilot.Session, prompt string) error {
	stream := s.Stream(ctx, copilot.MessageOptions{Prompt: prompt})
	defer stream.Close()

	streamed := false
	for stream.Next() {
		ev := stream.Current()
		switch ev.Type {
		case copilot.AssistantMessageDelta:
			streamed = true
			fmt.Fprint(r.Out, ev.Data.DeltaContent)
		case copilot.AssistantMessage:
			if !streamed {
				fmt.Fprint(r.Out, ev.Data.Content)
			}
			streamed = false
		}
	}
	return stream.Err()
}
