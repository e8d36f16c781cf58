package registry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/signalsfoundry/universe-simulator/internal/journal"
	"github.com/signalsfoundry/universe-simulator/internal/logging"
	"github.com/signalsfoundry/universe-simulator/model"
)

// SaveState writes live ships and stations followed by the graveyard to w.
// Fleets, loot and commands are not persisted; clients reissue commands
// after a restart.
func (r *Registry) SaveState(w io.Writer) error {
	jw := journal.NewWriter(w)
	r.mu.RLock()
	err := r.saveLocked(jw)
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("save entities: %w", err)
	}
	if err := jw.Flush(); err != nil {
		return fmt.Errorf("save entities: %w", err)
	}
	return nil
}

func (r *Registry) saveLocked(jw *journal.Writer) error {
	for _, e := range r.childrenLocked() {
		if e.GetKind() == model.KindFleet {
			continue
		}
		if err := journal.WriteEntity(jw, e); err != nil {
			return err
		}
	}
	for _, s := range r.graveyard {
		if err := journal.WriteEntity(jw, s); err != nil {
			return err
		}
	}
	return nil
}

// RestoreState creates every ship and station record read from r. Dead
// ships land in the graveyard as with Create. Records of other kinds are
// skipped. It returns the entities restored.
func (r *Registry) RestoreState(rd io.Reader) ([]model.Entity, error) {
	ctx := context.Background()
	jr := journal.NewReader(rd)
	var restored []model.Entity
	for {
		rec, err := jr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return restored, fmt.Errorf("restore entities: %w", err)
		}
		e, ok, err := journal.ReadEntity(rec)
		if err != nil {
			return restored, fmt.Errorf("restore entities: line %d: %w", jr.Line(), err)
		}
		if !ok {
			r.log.Warn(ctx, "skipping unknown record",
				logging.String("kind", rec.Kind), logging.Int("line", jr.Line()))
			continue
		}
		if _, err := r.Create(e); err != nil {
			return restored, fmt.Errorf("restore entities: line %d: %w", jr.Line(), err)
		}
		restored = append(restored, e)
	}
	r.log.Info(ctx, "entities restored", logging.Int("count", len(restored)))
	return restored, nil
}
