package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewAdminCollector(reg)
	if err != nil {
		t.Fatalf("NewAdminCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("Health", "Check", "OK")); got != 1 {
		t.Fatalf("admin_requests_total = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "admin_request_duration_seconds", map[string]string{
		"service": "Health",
		"method":  "Check",
	}); count != 1 {
		t.Fatalf("admin_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewAdminCollector(reg)
	if err != nil {
		t.Fatalf("NewAdminCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("Health", "Check", "NotFound")); got != 1 {
		t.Fatalf("admin_requests_total error label = %v, want 1", got)
	}
}

func TestCollectorsReuseRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSchedulerCollector(reg)
	if err != nil {
		t.Fatalf("NewSchedulerCollector: %v", err)
	}
	second, err := NewSchedulerCollector(reg)
	if err != nil {
		t.Fatalf("second NewSchedulerCollector: %v", err)
	}
	first.ObserveMoveBatch(3, time.Millisecond)
	if got := testutil.ToFloat64(second.MovesTotal); got != 3 {
		t.Fatalf("second collector should share scheduler_moves_total, got %v", got)
	}
}

func TestSchedulerCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSchedulerCollector(reg)
	if err != nil {
		t.Fatalf("NewSchedulerCollector: %v", err)
	}
	c.SetLocationCounts(4, 2)
	c.ObserveMoveBatch(2, 3*time.Millisecond)
	c.IncCallbackFailures()

	if got := testutil.ToFloat64(c.LocationsTracked); got != 6 {
		t.Fatalf("scheduler_locations_tracked = %v, want 6", got)
	}
	if got := testutil.ToFloat64(c.LocationsSet.WithLabelValues("run")); got != 2 {
		t.Fatalf("scheduler_locations{set=run} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.CallbackFailures); got != 1 {
		t.Fatalf("scheduler_callback_failures_total = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "scheduler_move_batch_duration_seconds", nil); count != 1 {
		t.Fatalf("move batch sample_count = %d, want 1", count)
	}
}

func TestRegistryCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewRegistryCollector(reg)
	if err != nil {
		t.Fatalf("NewRegistryCollector: %v", err)
	}
	c.SetEntityCounts(5, 2, 1, 3, 1)
	c.SetCommandCount("attack", 4)
	c.ObserveCycle("attack", time.Millisecond)
	c.IncCommandFailures("mining")
	c.AddShipsDestroyed(2)

	if got := testutil.ToFloat64(c.Entities.WithLabelValues("graveyard")); got != 3 {
		t.Fatalf("registry_entities{bucket=graveyard} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.Commands.WithLabelValues("attack")); got != 4 {
		t.Fatalf("registry_commands{kind=attack} = %v, want 4", got)
	}
	if got := testutil.ToFloat64(c.CommandFailures.WithLabelValues("mining")); got != 1 {
		t.Fatalf("registry_command_failures_total{kind=mining} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ShipsDestroyed); got != 2 {
		t.Fatalf("registry_ships_destroyed_total = %v, want 2", got)
	}
	if count := histogramSampleCount(t, reg, "registry_cycle_duration_seconds", map[string]string{"kind": "attack"}); count != 1 {
		t.Fatalf("cycle sample_count = %d, want 1", count)
	}
}

func TestNilCollectorsAreSafe(t *testing.T) {
	var s *SchedulerCollector
	s.SetLocationCounts(1, 1)
	s.ObserveMoveBatch(1, time.Second)
	s.IncCallbackFailures()

	var r *RegistryCollector
	r.SetEntityCounts(1, 1, 1, 1, 1)
	r.ObserveCycle("attack", time.Second)

	var a *AdminCollector
	a.SetRunning(true)
}

func TestMetricsHandlerExposesGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewAdminCollector(reg)
	if err != nil {
		t.Fatalf("NewAdminCollector: %v", err)
	}
	collector.SetRunning(true)
	collector.RPCRequests.WithLabelValues("svc", "method", "OK").Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{"admin_requests_total", "universe_running 1"} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output:\n%s", metric, body)
		}
	}
}

func TestSplitMethod(t *testing.T) {
	cases := map[string][2]string{
		"":                             {"unknown", "unknown"},
		"/grpc.health.v1.Health/Check": {"Health", "Check"},
		"Watch":                        {"unknown", "unknown"},
	}
	for in, want := range cases {
		svc, method := SplitMethod(in)
		if svc != want[0] || method != want[1] {
			t.Fatalf("SplitMethod(%q) = %q, %q; want %q, %q", in, svc, method, want[0], want[1])
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
