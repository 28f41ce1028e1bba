/*
Copyright © 2026 Deutsche Telekom AG
*/
package cmd

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/telekom/pod-identity-operator/internal/system"
	"github.com/telekom/pod-identity-operator/pkg/tracing"
)

// Only one subcommand runs per process, so the controller and the agent can
// share one set of tracing flag variables.
var (
	tracingEnabled      bool
	tracingEndpoint     string
	tracingSamplingRate float64
	tracingInsecure     bool
)

func registerTracingFlags(flags *pflag.FlagSet) {
	flags.BoolVar(&tracingEnabled, "enable-tracing", false,
		"Enable OpenTelemetry tracing. Spans are exported via OTLP gRPC.")
	flags.StringVar(&tracingEndpoint, "tracing-endpoint", "otel-collector:4317",
		"The OTLP gRPC endpoint traces are exported to.")
	flags.Float64Var(&tracingSamplingRate, "tracing-sampling-rate", 0.1,
		"The ratio of traces to sample, between 0.0 and 1.0.")
	flags.BoolVar(&tracingInsecure, "tracing-insecure", false,
		"Disable TLS for the OTLP exporter connection.")
}

func setupTracing(ctx context.Context) (*tracing.Provider, error) {
	return tracing.Setup(ctx, tracing.Config{
		Enabled:      tracingEnabled,
		Endpoint:     tracingEndpoint,
		SamplingRate: tracingSamplingRate,
		Insecure:     tracingInsecure,
	}, system.Version)
}
