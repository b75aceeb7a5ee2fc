package devops

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

// DefaultTimeout bounds every kubectl invocation.
const DefaultTimeout = 30 * time.Second

var (
	// ErrKubectlNotFound is returned when the kubectl binary is missing.
	ErrKubectlNotFound = errors.New("kubectl not found. Install kubectl and ensure it is in your PATH.")
	// ErrTimeout is returned when kubectl runs past its deadline.
	ErrTimeout = errors.New("kubectl timed out")
)

// Output is the captured result of one kubectl run.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes kubectl with args. A non-zero exit is reported in Output,
// not as an error.
type Runner interface {
	Run(ctx context.Context, args ...string) (Output, error)
}

// ExecRunner runs the kubectl binary.
type ExecRunner struct {
	// Binary defaults to "kubectl".
	Binary string
	// Kubeconfig, when set, is exported as KUBECONFIG.
	Kubeconfig string
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
}

// Run executes kubectl and captures stdout and stderr separately.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (Output, error) {
	bin := r.Binary
	if bin == "" {
		bin = "kubectl"
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	if r.Kubeconfig != "" {
		cmd.Env = append(os.Environ(), "KUBECONFIG="+r.Kubeconfig)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return out, ErrKubectlNotFound
	}
	if ctx.Err() == context.DeadlineExceeded {
		return out, ErrTimeout
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	return out, err
}
