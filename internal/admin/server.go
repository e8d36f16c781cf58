// Package admin serves the gRPC admin surface of a running universe: the
// standard health service, whose serving status follows the simulation
// loops, the universe.v1.Admin service for snapshots and state files, and
// server reflection.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/signalsfoundry/universe-simulator/internal/logging"
	"github.com/signalsfoundry/universe-simulator/internal/observability"
	"github.com/signalsfoundry/universe-simulator/timectrl"
)

// ServiceName is the health service name reflecting the simulation loops.
// The empty service name reports the same status.
const ServiceName = "universe"

// DefaultPollInterval is how often the serving status is refreshed.
const DefaultPollInterval = time.Second

// StatusSource reports whether the simulation is running.
type StatusSource interface {
	Running() bool
}

// Server is the admin gRPC server.
type Server struct {
	addr       string
	source     StatusSource
	controller Controller
	log        logging.Logger
	metrics    *observability.AdminCollector
	clock      timectrl.SimClock
	interval   time.Duration

	health *health.Server
	grpc   *grpc.Server

	mu       sync.Mutex
	listener net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records RPC metrics and the running gauge on c.
func WithMetrics(c *observability.AdminCollector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithPollInterval sets how often the serving status is refreshed.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock overrides the clock timing status refreshes.
func WithClock(c timectrl.SimClock) Option {
	return func(s *Server) {
		if c != nil {
			s.clock = c
		}
	}
}

// New builds an admin server listening on addr once served.
func New(addr string, source StatusSource, log logging.Logger, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		source:   source,
		log:      logging.OrNoop(log),
		clock:    timectrl.Wall(),
		interval: DefaultPollInterval,
		health:   health.NewServer(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.grpc = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			RequestIDUnaryServerInterceptor(s.log),
			SpanAttributesUnaryServerInterceptor(),
			s.metrics.UnaryServerInterceptor(),
			StatusUnaryServerInterceptor(),
		),
	)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	if s.controller != nil {
		s.grpc.RegisterService(&adminServiceDesc, &adminService{ctrl: s.controller, log: s.log})
	}
	reflection.Register(s.grpc)
	s.Refresh()
	return s
}

// Refresh sets the serving status from the status source and returns
// whether the universe is running.
func (s *Server) Refresh() bool {
	running := s.source != nil && s.source.Running()
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if running {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
	s.metrics.SetRunning(running)
	return running
}

// Serve listens on the configured address and serves until ctx is
// cancelled, refreshing the serving status every poll interval. It then
// marks every service NOT_SERVING and stops gracefully.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpc.Serve(listener)
	}()
	s.log.Info(ctx, "admin server started", logging.String("addr", listener.Addr().String()))

	last := s.Refresh()
	for {
		select {
		case err := <-errCh:
			if errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return err
		case <-ctx.Done():
			s.health.Shutdown()
			s.grpc.GracefulStop()
			<-errCh
			s.log.Info(context.Background(), "admin server stopped")
			return nil
		case <-s.clock.After(s.interval):
			if running := s.Refresh(); running != last {
				s.log.Info(ctx, "universe serving status changed", logging.Bool("running", running))
				last = running
			}
		}
	}
}

// Addr returns the bound address, or "" before Serve has started listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
