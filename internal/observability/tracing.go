package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/universe-simulator/internal/logging"
)

// TracerName is the instrumentation scope of the scheduler and registry spans.
const TracerName = "github.com/signalsfoundry/universe-simulator"

// DefaultServiceName is reported when no service name is configured.
const DefaultServiceName = "universe-simulator"

// Span exporters.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// ShutdownTimeout bounds how long Shutdown waits for buffered spans.
const ShutdownTimeout = 5 * time.Second

// TracingConfig governs how tracing is initialised. Component distinguishes
// processes sharing a service name, such as the server and the offline
// simulator. Writer receives stdout exporter output; nil means os.Stdout.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Component   string
	Exporter    string
	Endpoint    string
	SampleRatio float64
	Writer      io.Writer
}

// Tracing owns the tracer provider installed by InitTracing.
type Tracing struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
	log      logging.Logger
}

// InitTracing installs a global tracer provider and propagators built from
// cfg. When tracing is disabled the provider is a noop and spans are never
// recorded, but callers still get a usable tracer.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (*Tracing, error) {
	log = logging.OrNoop(log)

	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Info(ctx, "tracing disabled")
		return &Tracing{provider: tp, log: log}, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(resourceAttributes(cfg)...))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.String("component", cfg.Component),
		logging.Float("sample_ratio", cfg.SampleRatio))
	return &Tracing{provider: tp, shutdown: tp.Shutdown, log: log}, nil
}

func resourceAttributes(cfg TracingConfig) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", "universe"),
	}
	if cfg.Component != "" {
		attrs = append(attrs, attribute.String("universe.component", cfg.Component))
	}
	return attrs
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterStdout, "":
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	case ExporterOTLP:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("otlp exporter needs an endpoint")
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}

// Tracer returns the tracer handed to the scheduler and registry. A nil
// Tracing yields a noop tracer.
func (t *Tracing) Tracer() trace.Tracer {
	if t == nil || t.provider == nil {
		return noop.NewTracerProvider().Tracer(TracerName)
	}
	return t.provider.Tracer(TracerName)
}

// Shutdown flushes buffered spans, waiting at most ShutdownTimeout. Errors
// are logged, not returned.
func (t *Tracing) Shutdown(ctx context.Context) {
	if t == nil || t.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, ShutdownTimeout)
	defer cancel()
	if err := t.shutdown(ctx); err != nil {
		t.log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
