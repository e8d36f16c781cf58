package registry

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/universe-simulator/core"
	"github.com/signalsfoundry/universe-simulator/internal/logging"
	"github.com/signalsfoundry/universe-simulator/model"
)

// CommandKind names one of the three command cycles.
type CommandKind string

const (
	CommandAttack       CommandKind = "attack"
	CommandMining       CommandKind = "mining"
	CommandConstruction CommandKind = "construction"
)

// ScheduleAttack registers an attack command, replacing any command with
// the same id.
func (r *Registry) ScheduleAttack(args core.AttackArgs) (*core.AttackCommand, error) {
	cmd, err := core.NewAttackCommand(args)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attacks[cmd.ID()] = cmd
	r.reportCommandsLocked()
	r.log.Debug(context.Background(), "attack scheduled", logging.String("command_id", cmd.ID()))
	return cmd, nil
}

// ScheduleMining registers a mining command, replacing any command with
// the same id.
func (r *Registry) ScheduleMining(args core.MiningArgs) (*core.MiningCommand, error) {
	cmd, err := core.NewMiningCommand(args)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minings[cmd.ID()] = cmd
	r.reportCommandsLocked()
	r.log.Debug(context.Background(), "mining scheduled", logging.String("command_id", cmd.ID()))
	return cmd, nil
}

// ScheduleConstruction registers a construction command, replacing any
// command with the same id. Without an explicit clock the command is timed
// by the registry's clock.
func (r *Registry) ScheduleConstruction(args core.ConstructionArgs) (*core.ConstructionCommand, error) {
	if args.Clock == nil {
		args.Clock = r.clock
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// Station range checks read entity locations.
	cmd, err := core.NewConstructionCommand(args)
	if err != nil {
		return nil, err
	}
	r.constructions[cmd.ID()] = cmd
	r.reportCommandsLocked()
	r.log.Debug(context.Background(), "construction scheduled", logging.String("command_id", cmd.ID()))
	return cmd, nil
}

// Commands returns the ids of the scheduled commands of kind, sorted.
func (r *Registry) Commands(kind CommandKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case CommandAttack:
		return slices.Sorted(maps.Keys(r.attacks))
	case CommandMining:
		return slices.Sorted(maps.Keys(r.minings))
	case CommandConstruction:
		return slices.Sorted(maps.Keys(r.constructions))
	}
	return nil
}

// AttackCycle runs one attack pass: every before hook, then every ready
// attack, then removal of finished commands, then the destruction scan
// that moves dead ships to the graveyard and drops their cargo as loot.
func (r *Registry) AttackCycle(ctx context.Context) {
	ctx, span := r.startCycle(ctx, CommandAttack)
	defer span.End()
	started := time.Now()

	r.mu.Lock()
	span.SetAttributes(attribute.Int("commands", len(r.attacks)))
	runCycle(ctx, r, CommandAttack, r.attacks,
		func(cmd *core.AttackCommand) {
			if !cmd.Attackable() {
				return
			}
			if !cmd.Attacker().Attacking() {
				cmd.Attacker().StartAttacking(cmd.Defender())
			}
			cmd.Attack()
		},
		func(cmd *core.AttackCommand) { cmd.Attacker().StopAttacking() })
	destroyed := r.reapDestroyedLocked(ctx)
	r.mu.Unlock()

	span.SetAttributes(attribute.Int("ships.destroyed", destroyed))
	r.observeCycle(CommandAttack, started)
}

// reapDestroyedLocked moves ships without hit points to the graveyard,
// leaving loot behind for any that carried cargo.
func (r *Registry) reapDestroyedLocked(ctx context.Context) int {
	var destroyed []*model.Ship
	r.ships = slices.DeleteFunc(r.ships, func(s *model.Ship) bool {
		if s.Alive() {
			return false
		}
		destroyed = append(destroyed, s)
		return true
	})
	if len(destroyed) == 0 {
		return 0
	}
	for _, s := range destroyed {
		if !s.CargoEmpty() {
			l := model.NewLootFromShip(s)
			r.loot[l.ID] = l
		}
		r.log.Info(ctx, "ship destroyed",
			logging.String("ship_id", s.ID),
			logging.Bool("loot", !s.CargoEmpty()))
	}
	r.graveyard = append(r.graveyard, destroyed...)
	r.reportEntitiesLocked()
	if r.metrics != nil {
		r.metrics.AddShipsDestroyed(len(destroyed))
	}
	return len(destroyed)
}

// MiningCycle runs one mining pass: every before hook, then every ready
// mining step, then removal of finished commands.
func (r *Registry) MiningCycle(ctx context.Context) {
	ctx, span := r.startCycle(ctx, CommandMining)
	defer span.End()
	started := time.Now()

	r.mu.Lock()
	span.SetAttributes(attribute.Int("commands", len(r.minings)))
	runCycle(ctx, r, CommandMining, r.minings,
		func(cmd *core.MiningCommand) {
			if !cmd.Minable() {
				return
			}
			if !cmd.Ship().Mining() {
				cmd.Ship().StartMining(cmd.Source())
			}
			cmd.Mine()
		},
		func(cmd *core.MiningCommand) { cmd.Ship().StopMining() })
	r.mu.Unlock()

	r.observeCycle(CommandMining, started)
}

// ConstructionCycle runs one construction pass: every before hook, then
// each command's own construction step, then removal of finished commands.
// Finished products are created in the registry and handed to the
// construction handler once the lock is released.
func (r *Registry) ConstructionCycle(ctx context.Context) {
	ctx, span := r.startCycle(ctx, CommandConstruction)
	defer span.End()
	started := time.Now()

	var built []model.Entity
	r.mu.Lock()
	handler := r.onConstructed
	span.SetAttributes(attribute.Int("commands", len(r.constructions)))
	runCycle(ctx, r, CommandConstruction, r.constructions,
		func(cmd *core.ConstructionCommand) { cmd.ConstructionCycle() },
		func(cmd *core.ConstructionCommand) {
			product := cmd.Constructed()
			if product == nil {
				return
			}
			if err := r.createLocked(product); err != nil {
				r.log.Warn(ctx, "constructed entity rejected",
					logging.String("command_id", cmd.ID()), logging.Err(err))
				return
			}
			built = append(built, product)
		})
	r.mu.Unlock()

	for _, e := range built {
		r.log.Info(ctx, "construction completed",
			logging.String("kind", string(e.GetKind())),
			logging.String("entity_id", e.GetID()))
		if handler != nil {
			r.guard(ctx, CommandConstruction, e.GetID(), func() { handler(ctx, e) })
		}
	}
	r.observeCycle(CommandConstruction, started)
}

// runCycle drives one pass over cmds with the registry lock held. All
// before hooks run first, then execute for each command, then commands
// whose removal predicate holds are dropped after onRemove. A command that
// panics at any stage is logged, counted and dropped.
func runCycle[C core.Command](ctx context.Context, r *Registry, kind CommandKind, cmds map[string]C, execute, onRemove func(C)) {
	ids := slices.Sorted(maps.Keys(cmds))
	failed := make(map[string]bool)

	for _, id := range ids {
		cmd := cmds[id]
		for _, hook := range cmd.Hooks(core.PhaseBefore) {
			if !r.guard(ctx, kind, id, func() { hook(cmd) }) {
				failed[id] = true
				break
			}
		}
	}
	for _, id := range ids {
		if failed[id] {
			continue
		}
		cmd := cmds[id]
		if !r.guard(ctx, kind, id, func() { execute(cmd) }) {
			failed[id] = true
		}
	}
	for _, id := range ids {
		cmd := cmds[id]
		remove := failed[id]
		if !remove && !r.guard(ctx, kind, id, func() { remove = cmd.Remove() }) {
			remove = true
		}
		if !remove {
			continue
		}
		r.guard(ctx, kind, id, func() { onRemove(cmd) })
		delete(cmds, id)
		r.log.Debug(ctx, "command removed",
			logging.String("kind", string(kind)),
			logging.String("command_id", id))
	}
	r.reportCommandsLocked()
}

// guard runs fn and reports whether it returned without panicking.
func (r *Registry) guard(ctx context.Context, kind CommandKind, id string, fn func()) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			ok = false
			r.log.Error(ctx, "command failed",
				logging.String("kind", string(kind)),
				logging.String("command_id", id),
				logging.String("panic", fmt.Sprint(p)))
			if r.metrics != nil {
				r.metrics.IncCommandFailures(string(kind))
			}
		}
	}()
	fn()
	return true
}

func (r *Registry) startCycle(ctx context.Context, kind CommandKind) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return r.tracer.Start(ctx, "registry."+string(kind)+"_cycle")
}

func (r *Registry) observeCycle(kind CommandKind, started time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveCycle(string(kind), time.Since(started))
	}
}

func (r *Registry) reportCommandsLocked() {
	if r.metrics == nil {
		return
	}
	r.metrics.SetCommandCount(string(CommandAttack), len(r.attacks))
	r.metrics.SetCommandCount(string(CommandMining), len(r.minings))
	r.metrics.SetCommandCount(string(CommandConstruction), len(r.constructions))
}

// Start launches the three cycle loops. It is a no-op while they run.
func (r *Registry) Start() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if r.stop != nil {
		return
	}
	stop := make(chan struct{})
	r.stop = stop
	r.wg.Add(3)
	go r.loop(stop, r.attackInterval, r.AttackCycle)
	go r.loop(stop, r.miningInterval, r.MiningCycle)
	go r.loop(stop, r.constructionInterval, r.ConstructionCycle)
	r.running.Store(true)
	r.log.Info(context.Background(), "registry cycles started",
		logging.Duration("attack_interval", r.attackInterval),
		logging.Duration("mining_interval", r.miningInterval),
		logging.Duration("construction_interval", r.constructionInterval))
}

// Terminate stops the cycle loops and waits for them to exit. No command
// runs after Terminate returns.
func (r *Registry) Terminate() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if r.stop == nil {
		return
	}
	close(r.stop)
	r.wg.Wait()
	r.stop = nil
	r.running.Store(false)
	r.log.Info(context.Background(), "registry cycles stopped")
}

// Running reports whether the cycle loops are running.
func (r *Registry) Running() bool { return r.running.Load() }

func (r *Registry) loop(stop <-chan struct{}, interval time.Duration, pass func(context.Context)) {
	defer r.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-stop:
			return
		default:
		}
		pass(ctx)
		select {
		case <-stop:
			return
		case <-r.clock.After(interval):
		}
	}
}
