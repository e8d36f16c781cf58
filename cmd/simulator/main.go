// Command simulator plays a short scripted scenario against an in-process
// universe and prints the world state after every tick. Simulated time is
// driven by a manual clock, so a run finishes in moments. With --trace the
// scheduler and registry spans are exported; stdout spans go to stderr so
// the report stays readable.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/signalsfoundry/universe-simulator/core"
	"github.com/signalsfoundry/universe-simulator/internal/config"
	"github.com/signalsfoundry/universe-simulator/internal/logging"
	"github.com/signalsfoundry/universe-simulator/internal/observability"
	"github.com/signalsfoundry/universe-simulator/internal/sim/registry"
	"github.com/signalsfoundry/universe-simulator/internal/sim/scheduler"
	"github.com/signalsfoundry/universe-simulator/internal/sim/universe"
	"github.com/signalsfoundry/universe-simulator/model"
	"github.com/signalsfoundry/universe-simulator/timectrl"
)

type options struct {
	ticks    int
	tick     time.Duration
	stateDir string
	logLevel string
	trace    string
	endpoint string

	tracing *observability.Tracing
}

func main() {
	var opts options
	fs := pflag.NewFlagSet("simulator", pflag.ExitOnError)
	fs.IntVar(&opts.ticks, "ticks", 20, "number of simulated ticks")
	fs.DurationVar(&opts.tick, "tick", time.Second, "simulated time per tick")
	fs.StringVar(&opts.stateDir, "state-dir", "", "save the final state into this directory")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")
	fs.StringVar(&opts.trace, "trace", "", "export spans with this exporter (stdout or otlp); empty disables tracing")
	fs.StringVar(&opts.endpoint, "trace-endpoint", "", "OTLP collector endpoint for --trace=otlp")
	_ = fs.Parse(os.Args[1:])

	ctx := context.Background()
	log := logging.NewFromEnv()
	if fs.Changed("log-level") {
		log = logging.New(logging.Config{Level: opts.logLevel})
	}
	tcfg := config.Default().TracingConfig()
	tcfg.Enabled = opts.trace != ""
	tcfg.Exporter = opts.trace
	tcfg.Endpoint = opts.endpoint
	tcfg.Component = "simulator"
	tcfg.Writer = os.Stderr
	tracing, err := observability.InitTracing(ctx, tcfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulator: %v\n", err)
		os.Exit(1)
	}
	opts.tracing = tracing
	err = run(ctx, os.Stdout, log, opts)
	tracing.Shutdown(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulator: %v\n", err)
		os.Exit(1)
	}
}

// scenario is the scripted world: a raider attacking a hauler, a miner
// working an asteroid and a station building an escort.
type scenario struct {
	raider   *model.Ship
	hauler   *model.Ship
	miner    *model.Ship
	station  *model.Station
	asteroid *model.ResourceSource
	escort   *model.Ship
}

const system = "Athena"

func newScenario() *scenario {
	raider := model.NewShip("raider", "pirates", model.ShipDestroyer, system,
		moving(model.Vec3{X: -10}, model.Vec3{Y: 1}, 1))
	hauler := model.NewShip("hauler", "traders", model.ShipTransport, system,
		moving(model.Vec3{X: 10}, model.Vec3{Y: 1}, 1))
	hauler.Resources["metal"] = 5

	miner := model.NewShip("miner", "traders", model.ShipMining, system,
		model.NewLocation(0, model.Vec3{X: 200}))
	asteroid := &model.ResourceSource{
		EntityID:   "asteroid-1",
		ResourceID: "metal",
		Quantity:   50,
		System:     system,
		Location:   model.NewLocation(0, model.Vec3{X: 220}),
	}

	station := model.NewStation("yard", "traders", model.StationManufacturing, system,
		model.NewLocation(0, model.Vec3{X: 500}))
	escort := model.NewShip("escort", "traders", model.ShipEscort, system,
		model.NewLocation(0, model.Vec3{X: 510}))

	return &scenario{
		raider:   raider,
		hauler:   hauler,
		miner:    miner,
		station:  station,
		asteroid: asteroid,
		escort:   escort,
	}
}

func moving(at, direction model.Vec3, speed float64) *model.Location {
	loc := model.NewLocation(0, at)
	loc.Strategy = core.NewLinear(direction, speed, time.Second)
	return loc
}

func (s *scenario) install(ctx context.Context, u *universe.Universe, buildTime time.Duration) error {
	for _, e := range []model.Entity{s.raider, s.hauler, s.miner, s.station} {
		if _, err := u.CreateEntity(ctx, e); err != nil {
			return fmt.Errorf("create %s: %w", e.GetID(), err)
		}
	}
	reg := u.Registry()
	if _, err := reg.ScheduleAttack(core.AttackArgs{Attacker: s.raider, Defender: s.hauler}); err != nil {
		return err
	}
	if _, err := reg.ScheduleMining(core.MiningArgs{Ship: s.miner, Source: s.asteroid}); err != nil {
		return err
	}
	if _, err := reg.ScheduleConstruction(core.ConstructionArgs{
		Station:   s.station,
		Entity:    s.escort,
		BuildTime: buildTime,
	}); err != nil {
		return err
	}
	return nil
}

// report prints one line per tick. Entity fields are read under the
// registry lock.
func (s *scenario) report(w io.Writer, u *universe.Universe, elapsed time.Duration) {
	snap := u.Snapshot()
	var haulerHP, minerCargo, raiderY float64
	u.Registry().SafelyRun(func() {
		haulerHP = s.hauler.HP
		minerCargo = s.miner.Resources.Total()
		raiderY = s.raider.Location.Coordinates.Y
	})
	fmt.Fprintf(w, "[t+%-4s] locations=%d ships=%d graveyard=%d loot=%d attacks=%d minings=%d constructions=%d hauler_hp=%.0f miner_cargo=%.0f raider_y=%.0f\n",
		elapsed, snap.Locations, snap.Ships, snap.Graveyard, snap.Loot,
		snap.Attacks, snap.Minings, snap.Constructions,
		haulerHP, minerCargo, raiderY)
}

// run drives the scenario for opts.ticks ticks. The scheduler runs in the
// background on a manual clock; each tick advances the clock and runs one
// pass of every registry cycle.
func run(ctx context.Context, w io.Writer, log logging.Logger, opts options) error {
	if opts.ticks <= 0 || opts.tick <= 0 {
		return fmt.Errorf("ticks and tick must be positive")
	}
	clock := timectrl.NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	tracer := opts.tracing.Tracer()
	u := universe.New(
		scheduler.New(
			scheduler.WithClock(clock),
			scheduler.WithLogger(log),
			scheduler.WithTracer(tracer),
		),
		registry.New(
			registry.WithClock(clock),
			registry.WithLogger(log),
			registry.WithTracer(tracer),
		),
		log,
	)

	s := newScenario()
	if err := s.install(ctx, u, 3*opts.tick); err != nil {
		return err
	}
	fmt.Fprintf(w, "Starting scenario: ticks=%d, tick=%s\n", opts.ticks, opts.tick)

	u.Scheduler().Start()
	defer u.Scheduler().Stop()

	reg := u.Registry()
	for i := 1; i <= opts.ticks; i++ {
		clock.Advance(opts.tick)
		reg.AttackCycle(ctx)
		reg.MiningCycle(ctx)
		reg.ConstructionCycle(ctx)
		s.report(w, u, time.Duration(i)*opts.tick)
	}

	if opts.stateDir != "" {
		u.Scheduler().Stop()
		if err := u.SaveState(ctx, opts.stateDir); err != nil {
			return err
		}
		fmt.Fprintf(w, "State saved to %s\n", opts.stateDir)
	}
	fmt.Fprintln(w, "Scenario complete.")
	return nil
}
