package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerCollector exposes location scheduler metrics.
type SchedulerCollector struct {
	gatherer prometheus.Gatherer

	LocationsTracked  prometheus.Gauge
	LocationsSet      *prometheus.GaugeVec
	MovesTotal        prometheus.Counter
	MoveBatchDuration prometheus.Histogram
	CallbackFailures  prometheus.Counter
}

// NewSchedulerCollector registers scheduler metrics against the provided registerer.
func NewSchedulerCollector(reg prometheus.Registerer) (*SchedulerCollector, error) {
	reg, gatherer := resolveRegistry(reg)

	tracked, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_locations_tracked",
		Help: "Number of locations tracked by the scheduler.",
	}), "scheduler_locations_tracked")
	if err != nil {
		return nil, err
	}

	sets, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scheduler_locations",
		Help: "Number of locations in each scheduler set.",
	}, []string{"set"}), "scheduler_locations")
	if err != nil {
		return nil, err
	}

	moves, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_moves_total",
		Help: "Cumulative number of location moves performed by the mover loop.",
	}), "scheduler_moves_total")
	if err != nil {
		return nil, err
	}

	batch, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_move_batch_duration_seconds",
		Help:    "Duration of one mover pass including callbacks.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "scheduler_move_batch_duration_seconds")
	if err != nil {
		return nil, err
	}

	failures, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_callback_failures_total",
		Help: "Number of recovered panics raised by movement strategies or callbacks.",
	}), "scheduler_callback_failures_total")
	if err != nil {
		return nil, err
	}

	return &SchedulerCollector{
		gatherer:          gatherer,
		LocationsTracked:  tracked,
		LocationsSet:      sets,
		MovesTotal:        moves,
		MoveBatchDuration: batch,
		CallbackFailures:  failures,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SchedulerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// SetLocationCounts updates the tracked and per-set gauges.
func (c *SchedulerCollector) SetLocationCounts(scheduled, running int) {
	if c == nil {
		return
	}
	if c.LocationsTracked != nil {
		c.LocationsTracked.Set(float64(scheduled + running))
	}
	if c.LocationsSet != nil {
		c.LocationsSet.WithLabelValues("schedule").Set(float64(scheduled))
		c.LocationsSet.WithLabelValues("run").Set(float64(running))
	}
}

// ObserveMoveBatch records one mover pass over size locations.
func (c *SchedulerCollector) ObserveMoveBatch(size int, d time.Duration) {
	if c == nil {
		return
	}
	if c.MovesTotal != nil {
		c.MovesTotal.Add(float64(size))
	}
	if c.MoveBatchDuration != nil {
		c.MoveBatchDuration.Observe(d.Seconds())
	}
}

// IncCallbackFailures increments the recovered failure counter.
func (c *SchedulerCollector) IncCallbackFailures() {
	if c == nil || c.CallbackFailures == nil {
		return
	}
	c.CallbackFailures.Inc()
}
