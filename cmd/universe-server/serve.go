package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/universe-simulator/internal/admin"
	"github.com/signalsfoundry/universe-simulator/internal/config"
	"github.com/signalsfoundry/universe-simulator/internal/logging"
	"github.com/signalsfoundry/universe-simulator/internal/observability"
	"github.com/signalsfoundry/universe-simulator/internal/sim/registry"
	"github.com/signalsfoundry/universe-simulator/internal/sim/scheduler"
	"github.com/signalsfoundry/universe-simulator/internal/sim/universe"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation until interrupted",
		Long: `Start the location scheduler and the registry cycles, serve /metrics and
health probes over HTTP and the admin health service over gRPC, and run
until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logging.New(cfg.Logging()))
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServe runs the universe with its servers until ctx is cancelled or a
// server fails, then stops the universe and saves state if configured.
func runServe(ctx context.Context, cfg config.Config, log logging.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log = logging.OrNoop(log)

	tcfg := cfg.TracingConfig()
	tcfg.Component = "server"
	tracing, err := observability.InitTracing(ctx, tcfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tracing.Shutdown(context.Background())

	promReg := observability.NewRegistry()
	schedMetrics, err := observability.NewSchedulerCollector(promReg)
	if err != nil {
		return fmt.Errorf("scheduler metrics: %w", err)
	}
	regMetrics, err := observability.NewRegistryCollector(promReg)
	if err != nil {
		return fmt.Errorf("registry metrics: %w", err)
	}
	adminMetrics, err := observability.NewAdminCollector(promReg)
	if err != nil {
		return fmt.Errorf("admin metrics: %w", err)
	}

	tracer := tracing.Tracer()
	u := universe.New(
		scheduler.New(
			scheduler.WithLogger(log),
			scheduler.WithMetrics(schedMetrics),
			scheduler.WithTracer(tracer),
		),
		registry.New(
			registry.WithLogger(log),
			registry.WithMetrics(regMetrics),
			registry.WithTracer(tracer),
			registry.WithPollIntervals(
				cfg.Registry.AttackInterval,
				cfg.Registry.MiningInterval,
				cfg.Registry.ConstructionInterval,
			),
		),
		log,
	)

	if cfg.State.RestoreOnStart {
		switch err := u.RestoreState(ctx, cfg.State.Dir); {
		case errors.Is(err, universe.ErrNoState):
			log.Warn(ctx, "no saved state, starting empty", logging.String("dir", cfg.State.Dir))
		case err != nil:
			return err
		}
	}

	u.Start()
	snap := u.Snapshot()
	log.Info(ctx, "universe started",
		logging.Int("locations", snap.Locations),
		logging.Int("ships", snap.Ships),
		logging.Int("stations", snap.Stations))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Addr != "" {
		srv := observability.NewServer(cfg.Metrics.Addr, promReg, u.Running, log)
		g.Go(func() error { return srv.Serve(gctx) })
	}
	if cfg.Admin.GRPCAddr != "" {
		srv := admin.New(cfg.Admin.GRPCAddr, u, log, admin.WithMetrics(adminMetrics), admin.WithController(u))
		g.Go(func() error { return srv.Serve(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	serveErr := g.Wait()

	log.Info(context.Background(), "stopping universe")
	u.Stop()
	if cfg.State.SaveOnShutdown {
		if err := u.SaveState(context.Background(), cfg.State.Dir); err != nil {
			return errors.Join(serveErr, err)
		}
	}
	return serveErr
}
