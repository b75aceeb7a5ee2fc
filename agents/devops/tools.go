package devops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/agents"
)

const (
	minLines = 1
	maxLines = 1000
)

type kubectlArgs struct {
	Command string `json:"command" jsonschema:"required,description=kubectl arguments e.g. 'get pods -n production'"`
}

type logsArgs struct {
	Service   string `json:"service" jsonschema:"required,description=App label selector value"`
	Namespace string `json:"namespace,omitempty" jsonschema:"default=production"`
	Lines     *int   `json:"lines,omitempty" jsonschema:"default=100"`
	Since     string `json:"since,omitempty" jsonschema:"default=1h,description=Duration e.g. 1h or 30m"`
}

type deploymentsArgs struct {
	Namespace string `json:"namespace,omitempty" jsonschema:"default=production"`
}

// KubectlResult is the output of run_kubectl.
type KubectlResult struct {
	Output string `json:"output"`
	Stderr string `json:"stderr"`
}

// LogsResult is the output of fetch_logs.
type LogsResult struct {
	Logs   string `json:"logs"`
	Stderr string `json:"stderr"`
}

// Deployment summarizes one Kubernetes deployment.
type Deployment struct {
	Name      string `json:"name"`
	Image     string `json:"image"`
	Timestamp string `json:"timestamp"`
	Ready     string `json:"ready"`
}

// DeploymentsResult is the output of list_recent_deployments.
type DeploymentsResult struct {
	Deployments []Deployment `json:"deployments"`
}

// Tools returns the devops agent's tools.
func Tools(opts Options) []copilot.Tool {
	t := &toolset{opts: opts.withDefaults()}
	return []copilot.Tool{
		copilot.DefineTool("run_kubectl", "Execute a read-only kubectl command to inspect cluster state", t.kubectl),
		copilot.DefineTool("fetch_logs", "Fetch recent logs for a service", t.logs),
		copilot.DefineTool("list_recent_deployments", "List recent deployment events in a namespace", t.deployments),
	}
}

type toolset struct {
	opts Options
}

func (t *toolset) kubectl(ctx context.Context, in kubectlArgs, _ copilot.ToolInvocation) (any, error) {
	args, err := ValidateKubectl(in.Command)
	if err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}
	t.opts.Logger.Debug().Strs("args", args).Msg("kubectl")
	out, err := t.opts.Runner.Run(ctx, args...)
	if err != nil {
		return runFailure(err, "kubectl command timed out after 30 seconds.")
	}
	return KubectlResult{Output: out.Stdout, Stderr: out.Stderr}, nil
}

func (t *toolset) logs(ctx context.Context, in logsArgs, _ copilot.ToolInvocation) (any, error) {
	if in.Namespace == "" {
		in.Namespace = "production"
	}
	if in.Since == "" {
		in.Since = "1h"
	}
	lines := 100
	if in.Lines != nil {
		lines = ClampLines(*in.Lines)
	}

	if err := ValidateK8sName(in.Service, "service name"); err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}
	if err := ValidateK8sName(in.Namespace, "namespace"); err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}
	if err := ValidateDuration(in.Since); err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}

	out, err := t.opts.Runner.Run(ctx,
		"logs", "-l", "app="+in.Service,
		"-n", in.Namespace,
		"--tail="+strconv.Itoa(lines),
		"--since="+in.Since,
	)
	if err != nil {
		return runFailure(err, "kubectl command timed out.")
	}
	return LogsResult{Logs: out.Stdout, Stderr: out.Stderr}, nil
}

func (t *toolset) deployments(ctx context.Context, in deploymentsArgs, _ copilot.ToolInvocation) (any, error) {
	if in.Namespace == "" {
		in.Namespace = "production"
	}
	if err := ValidateK8sName(in.Namespace, "namespace"); err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}

	out, err := t.opts.Runner.Run(ctx, "get", "deployments", "-n", in.Namespace, "-o", "json")
	if err != nil {
		return runFailure(err, "kubectl command timed out.")
	}
	if out.ExitCode != 0 {
		msg := out.Stderr
		if msg == "" {
			msg = "kubectl returned non-zero exit code"
		}
		return agents.Failure{Error: msg}, nil
	}
	deps, err := ParseDeployments([]byte(out.Stdout))
	if err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}
	return DeploymentsResult{Deployments: deps}, nil
}

// ClampLines bounds a requested log line count to [1, 1000].
func ClampLines(n int) int {
	return max(minLines, min(maxLines, n))
}

type deploymentList struct {
	Items []struct {
		Metadata struct {
			Name              string `json:"name"`
			CreationTimestamp string `json:"creationTimestamp"`
		} `json:"metadata"`
		Spec struct {
			Template struct {
				Spec struct {
					Containers []struct {
						Image string `json:"image"`
					} `json:"containers"`
				} `json:"spec"`
			} `json:"template"`
		} `json:"spec"`
		Status struct {
			Replicas      int `json:"replicas"`
			ReadyReplicas int `json:"readyReplicas"`
		} `json:"status"`
	} `json:"items"`
}

// ParseDeployments decodes `kubectl get deployments -o json` output.
func ParseDeployments(data []byte) ([]Deployment, error) {
	var list deploymentList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse kubectl output: %w", err)
	}
	deps := make([]Deployment, 0, len(list.Items))
	for _, item := range list.Items {
		image := "unknown"
		if cs := item.Spec.Template.Spec.Containers; len(cs) > 0 && cs[0].Image != "" {
			image = cs[0].Image
		}
		deps = append(deps, Deployment{
			Name:      item.Metadata.Name,
			Image:     image,
			Timestamp: item.Metadata.CreationTimestamp,
			Ready:     fmt.Sprintf("%d/%d", item.Status.ReadyReplicas, item.Status.Replicas),
		})
	}
	return deps, nil
}

func runFailure(err error, timeoutMsg string) (any, error) {
	switch {
	case errors.Is(err, ErrKubectlNotFound):
		return agents.Failure{Error: ErrKubectlNotFound.Error()}, nil
	case errors.Is(err, ErrTimeout):
		return agents.Failure{Error: timeoutMsg}, nil
	}
	return agents.Failure{Error: err.Error()}, nil
}
