package core

import (
	"fmt"

	"github.com/signalsfoundry/universe-simulator/model"
)

// AttackID derives the id of the attack command between two ships.
func AttackID(attackerID, defenderID string) string {
	return attackerID + "-" + defenderID
}

// AttackArgs configures an attack command.
type AttackArgs struct {
	Attacker *model.Ship
	Defender *model.Ship
	// Damage overrides the attacker's per-cycle damage when positive.
	Damage float64
	Hooks  Hooks
}

// AttackCommand makes one ship repeatedly damage another.
type AttackCommand struct {
	commandBase
	attacker *model.Ship
	defender *model.Ship
	damage   float64
}

// NewAttackCommand validates args and builds an attack command.
func NewAttackCommand(args AttackArgs) (*AttackCommand, error) {
	if args.Attacker == nil || args.Defender == nil {
		return nil, fmt.Errorf("%w: attack needs an attacker and a defender", ErrInvalidCommand)
	}
	if args.Attacker == args.Defender || args.Attacker.ID == args.Defender.ID {
		return nil, fmt.Errorf("%w: ship %q cannot attack itself", ErrInvalidCommand, args.Attacker.ID)
	}
	return &AttackCommand{
		commandBase: commandBase{id: AttackID(args.Attacker.ID, args.Defender.ID), hooks: args.Hooks},
		attacker:    args.Attacker,
		defender:    args.Defender,
		damage:      args.Damage,
	}, nil
}

// Attacker returns the attacking ship.
func (c *AttackCommand) Attacker() *model.Ship { return c.attacker }

// Defender returns the attacked ship.
func (c *AttackCommand) Defender() *model.Ship { return c.defender }

// Damage returns the hit points removed per attack step.
func (c *AttackCommand) Damage() float64 {
	if c.damage > 0 {
		return c.damage
	}
	return c.attacker.Damage
}

// Attackable reports whether both ships are alive, in the same system and
// within the attacker's range.
func (c *AttackCommand) Attackable() bool {
	a, d := c.attacker, c.defender
	if !a.Alive() || !d.Alive() {
		return false
	}
	if a.System != d.System || a.Location == nil || d.Location == nil {
		return false
	}
	return a.Location.DistanceTo(d.Location) <= a.AttackDistance
}

// Attack applies one step of damage. Hit points never drop below zero.
func (c *AttackCommand) Attack() {
	c.defender.HP -= c.Damage()
	if c.defender.HP < 0 {
		c.defender.HP = 0
	}
}

// Remove is true once either ship has been destroyed.
func (c *AttackCommand) Remove() bool {
	return !c.attacker.Alive() || !c.defender.Alive()
}
