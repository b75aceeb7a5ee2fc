package copilot

import (
	"context"
	"io"
	"testing"

	"github.com/armatrix/copilot-sdk-go/internal/clitest"
)

type fakeCLI = clitest.Server

func newFakeCLI(t *testing.T) *fakeCLI {
	return clitest.New(t)
}

// newTestClient returns a client wired to f over an in-memory pipe.
func newTestClient(t *testing.T, f *fakeCLI) *Client {
	t.Helper()
	c := NewClient(&ClientOptions{CLIPath: "copilot-test"})
	c.connect = func(context.Context, resolvedOptions) (io.ReadWriteCloser, *cliProcess, error) {
		return f.Pipe(), nil, nil
	}
	t.Cleanup(c.ForceStop)
	return c
}
