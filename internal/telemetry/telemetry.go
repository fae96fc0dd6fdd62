package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Shutdown flushes and stops a provider.
type Shutdown func(context.Context) error

func noShutdown(context.Context) error { return nil }

// InitTracing installs an OTLP/HTTP tracer provider as the global provider. With an
// empty endpoint tracing is disabled and a no-op provider is returned.
func InitTracing(ctx context.Context, serviceName, endpoint string) (trace.TracerProvider, Shutdown, error) {
	if endpoint == "" {
		return tracenoop.NewTracerProvider(), noShutdown, nil
	}

	target, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, nil, err
	}
	exporter, err := otlptracehttp.New(ctx, target.traceOptions()...)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}
	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, tp.Shutdown, nil
}

// InitMetrics installs a meter provider that pushes to the OTLP/HTTP endpoint every
// interval. With an empty endpoint a no-op provider is returned and nothing is
// installed globally.
func InitMetrics(ctx context.Context, serviceName, endpoint string, interval time.Duration) (metric.MeterProvider, Shutdown, error) {
	if endpoint == "" {
		return metricnoop.NewMeterProvider(), noShutdown, nil
	}

	target, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, nil, err
	}
	exporter, err := otlpmetrichttp.New(ctx, target.metricOptions()...)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}
	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, nil, err
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return mp, mp.Shutdown, nil
}

func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}
	return res, nil
}

// otlpTarget is one collector shared by the trace and metric exporters. basePath is
// the URL path in front of the signal suffix, empty for the collector default.
type otlpTarget struct {
	host     string
	basePath string
	insecure bool
}

// parseEndpoint accepts either host:port or a full URL. Plain http URLs and bare
// host:port endpoints are dialed without TLS. A path ending in /v1/traces or
// /v1/metrics is treated as the signal path and its prefix kept for both signals.
func parseEndpoint(endpoint string) (otlpTarget, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		if strings.Contains(endpoint, "://") {
			return otlpTarget{}, fmt.Errorf("telemetry: invalid OTLP endpoint %q", endpoint)
		}
		return otlpTarget{host: endpoint, insecure: true}, nil
	}

	base := strings.TrimSuffix(parsed.Path, "/")
	base = strings.TrimSuffix(base, "/v1/traces")
	base = strings.TrimSuffix(base, "/v1/metrics")
	return otlpTarget{
		host:     parsed.Host,
		basePath: base,
		insecure: parsed.Scheme == "http",
	}, nil
}

func (t otlpTarget) traceOptions() []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(t.host)}
	if t.basePath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(t.basePath+"/v1/traces"))
	}
	if t.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

func (t otlpTarget) metricOptions() []otlpmetrichttp.Option {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(t.host)}
	if t.basePath != "" {
		opts = append(opts, otlpmetrichttp.WithURLPath(t.basePath+"/v1/metrics"))
	}
	if t.insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return opts
}

// NewLogger returns a JSON logger in production and a console logger otherwise.
func NewLogger(serviceName, level string, production bool) zerolog.Logger {
	return newLogger(os.Stdout, serviceName, level, production)
}

func newLogger(out io.Writer, serviceName, level string, production bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if !production {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("service", serviceName).Logger()
}
