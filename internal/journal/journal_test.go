package journal

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/universe-simulator/core"
	"github.com/signalsfoundry/universe-simulator/model"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	loc := model.NewLocation(3, model.Vec3{X: 1, Y: 2, Z: 3})
	loc.Parent = "Athena"
	loc.Strategy = core.NewLinear(model.Vec3{X: 1}, 2, 250*time.Millisecond)
	rec, err := EncodeLocation(loc)
	if err != nil {
		t.Fatalf("EncodeLocation: %v", err)
	}
	if err := w.Write(KindLocation, rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	sh := model.NewShip("sh1", "user1", model.ShipMining, "Athena", model.NewLocation(4, model.Vec3{X: 9}))
	sh.Resources["ore"] = 12
	if err := WriteEntity(w, sh); err != nil {
		t.Fatalf("WriteEntity: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if w.Count() != 2 {
		t.Fatalf("Count = %d, want 2", w.Count())
	}
	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Fatalf("expected two lines, got %d:\n%s", n, buf.String())
	}

	r := NewReader(&buf)
	first, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	var got LocationRecord
	if err := first.Decode(&got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	restored, err := got.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if restored.ID != 3 || restored.Coordinates != loc.Coordinates || restored.Parent != "Athena" {
		t.Fatalf("restored location mismatch: %+v", restored)
	}
	if restored.Strategy.Kind() != core.KindLinear || restored.StepDelay() != 250*time.Millisecond {
		t.Fatalf("restored strategy mismatch: %+v", restored.Strategy)
	}

	second, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	e, ok, err := ReadEntity(second)
	if err != nil || !ok {
		t.Fatalf("ReadEntity: ok=%v err=%v", ok, err)
	}
	rs, isShip := e.(*model.Ship)
	if !isShip {
		t.Fatalf("expected *model.Ship, got %T", e)
	}
	if rs.ID != "sh1" || rs.Quantity("ore") != 12 || rs.Location.ID != 4 || rs.HP != sh.HP {
		t.Fatalf("restored ship mismatch: %+v", rs)
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReader_MalformedLineNamesLine(t *testing.T) {
	r := NewReader(strings.NewReader("{\"kind\":\"Location\",\"data\":{}}\n\nnot json\n"))
	if _, err := r.Next(); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	_, err := r.Next()
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("error should name line 3, got %v", err)
	}
}

func TestReadEntity_UnknownKind(t *testing.T) {
	_, ok, err := ReadEntity(Record{Kind: "Asteroid", Data: []byte(`{}`)})
	if ok || err != nil {
		t.Fatalf("unknown kinds should be reported as not ok, got ok=%v err=%v", ok, err)
	}
}

func TestWriteEntity_FleetHasNoRecord(t *testing.T) {
	w := NewWriter(io.Discard)
	if err := WriteEntity(w, &model.Fleet{ID: "f1", UserID: "u", Location: model.NewLocation(1, model.Vec3{})}); err == nil {
		t.Fatalf("expected an error writing a fleet")
	}
}
