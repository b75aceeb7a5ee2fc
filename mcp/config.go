// Package mcp describes the MCP (Model Context Protocol) servers a session
// hands to the Copilot CLI. The CLI owns the connections; this package only
// validates and serializes their configuration.
package mcp

import (
	"fmt"
	"strings"
)

// ServerType identifies the MCP transport the CLI should use.
type ServerType string

const (
	// TypeLocal spawns the server as a subprocess.
	TypeLocal ServerType = "local"

	// TypeStdio is an alias of TypeLocal accepted by the CLI.
	TypeStdio ServerType = "stdio"

	// TypeHTTP connects to a streamable HTTP endpoint.
	TypeHTTP ServerType = "http"

	// TypeSSE connects to a Server-Sent Events endpoint.
	TypeSSE ServerType = "sse"
)

// AllTools is the Tools entry that exposes every tool of a server.
const AllTools = "*"

// ServerConfig describes how the CLI reaches a single MCP server.
type ServerConfig struct {
	// Type selects the transport. Empty means TypeLocal.
	Type ServerType `json:"type,omitempty" yaml:"type,omitempty"`

	// Command, Args, Env and Cwd apply to local/stdio servers.
	Command string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Cwd     string            `json:"cwd,omitempty" yaml:"cwd,omitempty"`

	// URL and Headers apply to http/sse servers.
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Tools lists the tool names exposed to the model. Empty or ["*"]
	// exposes all of them.
	Tools []string `json:"tools" yaml:"tools,omitempty"`

	// Timeout is the per-call timeout in milliseconds. Zero uses the CLI default.
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Validate checks that the fields required by the transport are present.
func (c ServerConfig) Validate() error {
	switch c.Type {
	case "", TypeLocal, TypeStdio:
		if c.Command == "" {
			return fmt.Errorf("%w: %s server requires command", ErrInvalidConfig, c.transport())
		}
	case TypeHTTP, TypeSSE:
		if c.URL == "" {
			return fmt.Errorf("%w: %s server requires url", ErrInvalidConfig, c.Type)
		}
		if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
			return fmt.Errorf("%w: url %q must be http or https", ErrInvalidConfig, c.URL)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidConfig, c.Type)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return nil
}

// Normalized returns a copy with Type and Tools defaulted the way the CLI
// expects them on the wire.
func (c ServerConfig) Normalized() ServerConfig {
	if c.Type == "" {
		c.Type = TypeLocal
	}
	if len(c.Tools) == 0 {
		c.Tools = []string{AllTools}
	}
	return c
}

// Allows reports whether tool is exposed by this server's allow-list.
func (c ServerConfig) Allows(tool string) bool {
	if len(c.Tools) == 0 {
		return true
	}
	for _, t := range c.Tools {
		if t == AllTools || t == tool {
			return true
		}
	}
	return false
}

func (c ServerConfig) transport() ServerType {
	if c.Type == "" {
		return TypeLocal
	}
	return c.Type
}

// ValidateAll validates every server in servers, naming the first bad one.
func ValidateAll(servers map[string]ServerConfig) error {
	for name, cfg := range servers {
		if name == "" {
			return fmt.Errorf("%w: empty server name", ErrInvalidConfig)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("server %q: %w", name, err)
		}
	}
	return nil
}

// NormalizeAll returns a copy of servers with every entry normalized.
func NormalizeAll(servers map[string]ServerConfig) map[string]ServerConfig {
	if len(servers) == 0 {
		return nil
	}
	out := make(map[string]ServerConfig, len(servers))
	for name, cfg := range servers {
		out[name] = cfg.Normalized()
	}
	return out
}

// NamespacedName returns the "server/tool" name used in permission requests.
func NamespacedName(server, tool string) string {
	return server + "/" + tool
}

// ParseNamespacedName splits a name produced by NamespacedName.
func ParseNamespacedName(name string) (server, tool string, ok bool) {
	server, tool, ok = strings.Cut(name, "/")
	if !ok || server == "" || tool == "" {
		return "", "", false
	}
	return server, tool, true
}
