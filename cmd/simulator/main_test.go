package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/signalsfoundry/universe-simulator/internal/logging"
	"github.com/signalsfoundry/universe-simulator/internal/sim/universe"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func lastReport(t *testing.T, out string) string {
	t.Helper()
	var last string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "[t+") {
			last = line
		}
	}
	if last == "" {
		t.Fatalf("no tick reports in output:\n%s", out)
	}
	return last
}

// TestRun_Scenario plays the full script: the hauler is destroyed and
// leaves loot, the asteroid is mined out and the escort is built.
func TestRun_Scenario(t *testing.T) {
	var buf bytes.Buffer
	if err := run(context.Background(), &buf, logging.Noop(), options{ticks: 20, tick: time.Second}); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Scenario complete.") {
		t.Fatalf("missing completion line:\n%s", out)
	}
	last := lastReport(t, out)
	for _, want := range []string{
		"ships=3", "graveyard=1", "loot=1",
		"attacks=0", "minings=0", "constructions=0",
		"hauler_hp=0", "miner_cargo=50",
	} {
		if !strings.Contains(last, want) {
			t.Fatalf("final report %q missing %q", last, want)
		}
	}
}

func TestRun_ShortScenarioKeepsCommands(t *testing.T) {
	var buf bytes.Buffer
	if err := run(context.Background(), &buf, logging.Noop(), options{ticks: 2, tick: time.Second}); err != nil {
		t.Fatalf("run: %v", err)
	}
	last := lastReport(t, buf.String())
	for _, want := range []string{"attacks=1", "minings=1", "constructions=1", "graveyard=0"} {
		if !strings.Contains(last, want) {
			t.Fatalf("report after two ticks %q missing %q", last, want)
		}
	}
}

func TestRun_SavesState(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	var buf bytes.Buffer
	if err := run(context.Background(), &buf, logging.Noop(), options{ticks: 5, tick: time.Second, stateDir: dir}); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, name := range []string{universe.LocationsFile, universe.EntitiesFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	if !strings.Contains(buf.String(), "State saved to "+dir) {
		t.Fatalf("missing save line:\n%s", buf.String())
	}
}

func TestRun_RejectsBadOptions(t *testing.T) {
	if err := run(context.Background(), &bytes.Buffer{}, nil, options{ticks: 0, tick: time.Second}); err == nil {
		t.Fatalf("expected an error for zero ticks")
	}
}
