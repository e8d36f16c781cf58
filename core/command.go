package core

import "errors"

// ErrInvalidCommand indicates a command was built from incomplete arguments.
var ErrInvalidCommand = errors.New("invalid command")

// Phase names a point in a command's lifecycle at which hooks run.
type Phase string

const (
	// PhaseBefore hooks run every cycle before readiness is checked.
	PhaseBefore Phase = "before"
	// PhaseComplete hooks run once when a construction finishes.
	PhaseComplete Phase = "complete"
)

// Hook is a lifecycle callback. Hooks run with the registry lock held and
// must not call back into the registry.
type Hook func(cmd Command)

// Hooks groups hooks by phase.
type Hooks map[Phase][]Hook

// Add appends hook to phase, allocating the map if needed.
func (h *Hooks) Add(phase Phase, hook Hook) {
	if *h == nil {
		*h = Hooks{}
	}
	(*h)[phase] = append((*h)[phase], hook)
}

// Command is a recurring game action evaluated by a registry cycle.
type Command interface {
	// ID is derived from the actor and target; scheduling a command with
	// an existing id replaces the old one.
	ID() string
	Hooks(phase Phase) []Hook
	// Remove reports whether the command is finished and should be dropped.
	Remove() bool
}

type commandBase struct {
	id    string
	hooks Hooks
}

func (c *commandBase) ID() string { return c.id }

func (c *commandBase) Hooks(phase Phase) []Hook {
	return c.hooks[phase]
}
