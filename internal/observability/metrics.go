package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// AdminCollector bundles Prometheus metrics for the admin gRPC surface and
// the universe-wide gauges it reports.
type AdminCollector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	UniverseRunning prometheus.Gauge
}

// NewAdminCollector registers admin metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewAdminCollector(reg prometheus.Registerer) (*AdminCollector, error) {
	reg, gatherer := resolveRegistry(reg)

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_requests_total",
		Help: "Total number of handled admin RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "admin_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "admin_request_duration_seconds",
		Help:    "Admin RPC latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"service", "method"}), "admin_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	running, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "universe_running",
		Help: "1 while the scheduler and registry loops are running, 0 otherwise.",
	}), "universe_running")
	if err != nil {
		return nil, err
	}

	return &AdminCollector{
		gatherer:        gatherer,
		RPCRequests:     requests,
		RPCDurations:    durations,
		UniverseRunning: running,
	}, nil
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *AdminCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, code).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}
		return resp, err
	}
}

// SetRunning updates the universe_running gauge.
func (c *AdminCollector) SetRunning(running bool) {
	if c == nil || c.UniverseRunning == nil {
		return
	}
	if running {
		c.UniverseRunning.Set(1)
		return
	}
	c.UniverseRunning.Set(0)
}

// Handler exposes a ready-to-use /metrics handler.
func (c *AdminCollector) Handler() http.Handler {
	return HandlerFor(c.gatherer)
}

// HandlerFor returns a /metrics handler for gatherer, falling back to the
// default gatherer when nil.
func HandlerFor(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func resolveRegistry(reg prometheus.Registerer) (prometheus.Registerer, prometheus.Gatherer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	return reg, gatherer
}

// register adds c to reg, returning the already registered collector of the
// same type when an identical one exists.
func register[C prometheus.Collector](reg prometheus.Registerer, c C, name string) (C, error) {
	if err := reg.Register(c); err != nil {
		var zero C
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return zero, err
	}
	return c, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	return register(reg, vec, name)
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	return register(reg, vec, name)
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	return register(reg, vec, name)
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	return register(reg, gauge, name)
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	return register(reg, hist, name)
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	return register(reg, counter, name)
}
