package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RegistryCollector exposes entity registry and command cycle metrics.
type RegistryCollector struct {
	gatherer prometheus.Gatherer

	Entities        *prometheus.GaugeVec
	Commands        *prometheus.GaugeVec
	CycleDuration   *prometheus.HistogramVec
	CommandFailures *prometheus.CounterVec
	ShipsDestroyed  prometheus.Counter
}

// NewRegistryCollector registers registry metrics against the provided registerer.
func NewRegistryCollector(reg prometheus.Registerer) (*RegistryCollector, error) {
	reg, gatherer := resolveRegistry(reg)

	entities, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "registry_entities",
		Help: "Number of entities tracked by the registry, labeled by bucket.",
	}, []string{"bucket"}), "registry_entities")
	if err != nil {
		return nil, err
	}

	commands, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "registry_commands",
		Help: "Number of scheduled commands, labeled by kind.",
	}, []string{"kind"}), "registry_commands")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "registry_cycle_duration_seconds",
		Help:    "Duration of one command cycle pass, labeled by kind.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"kind"}), "registry_cycle_duration_seconds")
	if err != nil {
		return nil, err
	}

	failures, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registry_command_failures_total",
		Help: "Number of commands dropped after a recovered panic, labeled by kind.",
	}, []string{"kind"}), "registry_command_failures_total")
	if err != nil {
		return nil, err
	}

	destroyed, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registry_ships_destroyed_total",
		Help: "Number of ships moved to the graveyard by the attack cycle.",
	}), "registry_ships_destroyed_total")
	if err != nil {
		return nil, err
	}

	return &RegistryCollector{
		gatherer:        gatherer,
		Entities:        entities,
		Commands:        commands,
		CycleDuration:   durations,
		CommandFailures: failures,
		ShipsDestroyed:  destroyed,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *RegistryCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// SetEntityCounts updates the per-bucket entity gauges.
func (c *RegistryCollector) SetEntityCounts(ships, stations, fleets, graveyard, loot int) {
	if c == nil || c.Entities == nil {
		return
	}
	c.Entities.WithLabelValues("ships").Set(float64(ships))
	c.Entities.WithLabelValues("stations").Set(float64(stations))
	c.Entities.WithLabelValues("fleets").Set(float64(fleets))
	c.Entities.WithLabelValues("graveyard").Set(float64(graveyard))
	c.Entities.WithLabelValues("loot").Set(float64(loot))
}

// SetCommandCount updates the scheduled command gauge for kind.
func (c *RegistryCollector) SetCommandCount(kind string, n int) {
	if c == nil || c.Commands == nil {
		return
	}
	c.Commands.WithLabelValues(kind).Set(float64(n))
}

// ObserveCycle records the duration of one cycle pass.
func (c *RegistryCollector) ObserveCycle(kind string, d time.Duration) {
	if c == nil || c.CycleDuration == nil {
		return
	}
	c.CycleDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncCommandFailures increments the failure counter for kind.
func (c *RegistryCollector) IncCommandFailures(kind string) {
	if c == nil || c.CommandFailures == nil {
		return
	}
	c.CommandFailures.WithLabelValues(kind).Inc()
}

// AddShipsDestroyed adds n to the destroyed ships counter.
func (c *RegistryCollector) AddShipsDestroyed(n int) {
	if c == nil || c.ShipsDestroyed == nil || n <= 0 {
		return
	}
	c.ShipsDestroyed.Add(float64(n))
}
