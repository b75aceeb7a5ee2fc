package copilot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/armatrix/copilot-sdk-go/internal/logging"
)

var listeningRe = regexp.MustCompile(`listening on port (\d+)`)

// cliProcess is a spawned CLI server.
type cliProcess struct {
	cmd *exec.Cmd
	log *logging.Logger
}

// stop kills the process and reaps it. Exit errors caused by the kill are
// not reported.
func (p *cliProcess) stop() error {
	if p == nil || p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill cli: %w", err)
	}
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return fmt.Errorf("wait cli: %w", err)
	}
	return nil
}

// buildCLIArgs returns the server arguments for the spawned CLI.
func buildCLIArgs(o resolvedOptions) []string {
	args := append([]string(nil), o.cliArgs...)
	args = append(args, "--server", "--log-level", o.logLevel)
	if o.stdio {
		args = append(args, "--stdio")
	} else if o.port > 0 {
		args = append(args, "--port", strconv.Itoa(o.port))
	}
	if o.token != "" {
		args = append(args, "--auth-token-env", authTokenEnv)
	}
	if !o.useLoggedInUser {
		args = append(args, "--no-auto-login")
	}
	return args
}

// commandFor runs JavaScript entry points through node.
func commandFor(cliPath string, args []string) (string, []string) {
	if strings.HasSuffix(cliPath, ".js") {
		return "node", append([]string{cliPath}, args...)
	}
	return cliPath, args
}

// buildEnv returns the CLI environment, with the auth token exported under
// authTokenEnv when one is configured.
func buildEnv(o resolvedOptions) []string {
	env := o.env
	if env == nil {
		env = os.Environ()
	}
	env = append([]string(nil), env...)
	if o.token != "" {
		env = append(env, authTokenEnv+"="+o.token)
	}
	return env
}

// connectCLI spawns or dials the CLI according to o and returns the byte
// stream carrying JSON-RPC frames.
func connectCLI(ctx context.Context, o resolvedOptions) (io.ReadWriteCloser, *cliProcess, error) {
	if o.external {
		conn, err := dialCLI(ctx, o.host, o.port)
		return conn, nil, err
	}

	name, args := commandFor(o.cliPath, buildCLIArgs(o))
	cmd := exec.Command(name, args...)
	cmd.Dir = o.cwd
	cmd.Env = buildEnv(o)
	proc := &cliProcess{cmd: cmd, log: o.log.Sub("cli")}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stderr pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	var stdin io.WriteCloser
	if o.stdio {
		if stdin, err = cmd.StdinPipe(); err != nil {
			return nil, nil, fmt.Errorf("stdin pipe: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, nil, fmt.Errorf("copilot CLI %q not found: %w", o.cliPath, err)
		}
		return nil, nil, fmt.Errorf("start cli: %w", err)
	}
	proc.log.Debug().Str("path", name).Strs("args", args).Int("pid", cmd.Process.Pid).Msg("cli started")
	go proc.pipeLines(stderr, "stderr")

	if o.stdio {
		return &stdioPipe{r: stdout, w: stdin}, proc, nil
	}

	port, err := waitForPort(ctx, stdout, proc)
	if err != nil {
		_ = proc.stop()
		return nil, nil, err
	}
	conn, err := dialCLI(ctx, o.host, port)
	if err != nil {
		_ = proc.stop()
		return nil, nil, err
	}
	return conn, proc, nil
}

// waitForPort scans stdout for the CLI's "listening on port N" line. Lines
// after the announcement keep being drained into the log.
func waitForPort(ctx context.Context, stdout io.Reader, proc *cliProcess) (int, error) {
	found := make(chan int, 1)
	go func() {
		sc := bufio.NewScanner(stdout)
		announced := false
		for sc.Scan() {
			line := sc.Text()
			if !announced {
				if m := listeningRe.FindStringSubmatch(line); m != nil {
					if port, err := strconv.Atoi(m[1]); err == nil {
						announced = true
						found <- port
						continue
					}
				}
			}
			proc.log.Debug().Str("stream", "stdout").Msg(line)
		}
		close(found)
	}()

	timer := time.NewTimer(DefaultStartTimeout)
	defer timer.Stop()
	select {
	case port, ok := <-found:
		if !ok {
			return 0, errors.New("cli exited before announcing its port")
		}
		return port, nil
	case <-timer.C:
		return 0, fmt.Errorf("timed out after %s waiting for cli to listen", DefaultStartTimeout)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func dialCLI(ctx context.Context, host string, port int) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("dial cli: %w", err)
	}
	return conn, nil
}

func (p *cliProcess) pipeLines(r io.Reader, stream string) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		p.log.Debug().Str("stream", stream).Msg(sc.Text())
	}
}

// stdioPipe joins the child's stdout and stdin into one stream.
type stdioPipe struct {
	r io.ReadCloser
	w io.WriteCloser
}

func (p *stdioPipe) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *stdioPipe) Write(b []byte) (int, error) { return p.w.Write(b) }

func (p *stdioPipe) Close() error {
	return errors.Join(p.w.Close(), p.r.Close())
}
