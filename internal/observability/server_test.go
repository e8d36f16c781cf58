package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/signalsfoundry/universe-simulator/internal/logging"
)

func TestServerHandler_Probes(t *testing.T) {
	var ready atomic.Bool
	srv := NewServer("127.0.0.1:0", NewRegistry(), ready.Load, logging.Noop())
	h := srv.Handler()

	get := func(path string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		return rr
	}

	if rr := get("/healthz/liveness"); rr.Code != http.StatusOK {
		t.Fatalf("liveness = %d, want 200", rr.Code)
	}
	if rr := get("/healthz/readiness"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readiness before ready = %d, want 503", rr.Code)
	}
	ready.Store(true)
	if rr := get("/healthz/readiness"); rr.Code != http.StatusOK {
		t.Fatalf("readiness after ready = %d, want 200", rr.Code)
	}
	rr := get("/metrics")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("/metrics should expose Go collector metrics, got %d", rr.Code)
	}
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil, nil, logging.Noop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatalf("server never started listening")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/healthz/liveness")
	if err != nil {
		t.Fatalf("GET liveness: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("liveness = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve did not return after cancel")
	}
}
