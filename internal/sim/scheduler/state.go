package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/signalsfoundry/universe-simulator/core"
	"github.com/signalsfoundry/universe-simulator/internal/journal"
	"github.com/signalsfoundry/universe-simulator/internal/logging"
	"github.com/signalsfoundry/universe-simulator/model"
)

// SaveState writes every tracked location to w, one record per line. The
// set is captured under both locks so no location moves mid-save.
func (s *Scheduler) SaveState(w io.Writer) error {
	jw := journal.NewWriter(w)
	var err error
	s.SafelyRun(func() {
		for _, loc := range s.locationsLocked() {
			var rec journal.LocationRecord
			if rec, err = journal.EncodeLocation(loc); err != nil {
				return
			}
			if err = jw.Write(journal.KindLocation, rec); err != nil {
				return
			}
		}
	})
	if err != nil {
		return fmt.Errorf("save locations: %w", err)
	}
	if err := jw.Flush(); err != nil {
		return fmt.Errorf("save locations: %w", err)
	}
	return nil
}

// RestoreState reads location records from r and registers each through
// Run. Records of other kinds are skipped. Strategies referring to other
// locations by id are bound once every record has been loaded. It returns
// the number of locations restored.
func (s *Scheduler) RestoreState(r io.Reader) (int, error) {
	ctx := context.Background()
	jr := journal.NewReader(r)
	var restored []*model.Location
	for {
		rec, err := jr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return len(restored), fmt.Errorf("restore locations: %w", err)
		}
		if rec.Kind != journal.KindLocation {
			s.log.Warn(ctx, "skipping unknown record",
				logging.String("kind", rec.Kind), logging.Int("line", jr.Line()))
			continue
		}
		var lr journal.LocationRecord
		if err := rec.Decode(&lr); err != nil {
			return len(restored), fmt.Errorf("restore locations: line %d: %w", jr.Line(), err)
		}
		loc, err := lr.Location()
		if err != nil {
			return len(restored), fmt.Errorf("restore locations: line %d: %w", jr.Line(), err)
		}
		restored = append(restored, s.Run(loc))
	}

	s.SafelyRun(func() {
		for _, loc := range restored {
			if res, ok := loc.Strategy.(core.Resolver); ok {
				res.Resolve(s.locationLocked)
			}
		}
	})
	s.log.Info(ctx, "locations restored", logging.Int("count", len(restored)))
	return len(restored), nil
}
