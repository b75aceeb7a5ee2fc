// Package tracing configures the OpenTelemetry tracer used for CLI RPC spans.
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span attribute keys.
const (
	AttrRPCSystem  = "rpc.system"
	AttrRPCMethod  = "rpc.method"
	AttrSessionID  = "session.id"
	AttrToolName   = "tool.name"
	AttrToolCallID = "tool.call_id"
)

// Config configures the tracing subsystem.
type Config struct {
	// Enabled controls whether tracing is active. When false a no-op
	// provider is returned.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Exporter selects the export backend: "stdout" or "none".
	Exporter string `mapstructure:"exporter" yaml:"exporter"`

	// ServiceName identifies this process in traces.
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`

	// Writer receives stdout exporter output. Defaults to os.Stdout.
	Writer io.Writer `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns tracing disabled with stdout as the exporter.
func DefaultConfig() Config {
	return Config{
		Exporter:    "stdout",
		ServiceName: "copilot-agents",
	}
}

// Provider owns the tracer provider and its shutdown.
type Provider struct {
	sdk      *sdktrace.TracerProvider
	provider trace.TracerProvider
	enabled  bool
}

// NewProvider builds a provider from cfg.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{provider: noop.NewTracerProvider()}, nil
	}

	var opts []sdktrace.TracerProviderOption
	switch cfg.Exporter {
	case "stdout":
		exOpts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if cfg.Writer != nil {
			exOpts = append(exOpts, stdouttrace.WithWriter(cfg.Writer))
		}
		exporter, err := stdouttrace.New(exOpts...)
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithSyncer(exporter))
	case "none", "":
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}

	name := cfg.ServiceName
	if name == "" {
		name = DefaultConfig().ServiceName
	}
	opts = append(opts, sdktrace.WithResource(resource.NewSchemaless(
		attribute.String("service.name", name),
	)))

	sdk := sdktrace.NewTracerProvider(opts...)
	return &Provider{sdk: sdk, provider: sdk, enabled: true}, nil
}

// TracerProvider returns the underlying provider. Never nil.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.provider
}

// Enabled reports whether spans are recorded.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk != nil {
		return p.sdk.Shutdown(ctx)
	}
	return nil
}
