package formula

import (
	"errors"
	"fmt"
	"slices"
)

// State is a node of the per-invocation state machine.
type State int

const (
	StateResolved State = iota
	StatePlacing
	StatePlaced
	StateVerifying
	StateVerified
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolved:
		return "resolved"
	case StatePlacing:
		return "placing"
	case StatePlaced:
		return "placed"
	case StateVerifying:
		return "verifying"
	case StateVerified:
		return "verified"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StageName is the user-facing name of the step that failed.
type StageName string

const (
	StageResolve StageName = "resolve"
	StagePlace   StageName = "place"
	StageVerify  StageName = "verify"
)

// ErrInvalidTransition is returned for a transition the state machine does not allow.
var ErrInvalidTransition = errors.New("invalid state transition")

//nolint:gochecknoglobals // Static transition table.
var transitions = map[State][]State{
	StateResolved:  {StatePlacing},
	StatePlacing:   {StatePlaced, StateFailed},
	StatePlaced:    {StateVerifying},
	StateVerifying: {StateVerified, StateFailed},
}

// Lifecycle tracks one install invocation. Every run starts at StateResolved.
type Lifecycle struct {
	current State
	history []State
}

// NewLifecycle returns a lifecycle in the Resolved state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		current: StateResolved,
		history: []State{StateResolved},
	}
}

// Current returns the current state.
func (l *Lifecycle) Current() State {
	return l.current
}

// History returns every state visited so far.
func (l *Lifecycle) History() []State {
	return slices.Clone(l.history)
}

// Advance moves to next if the transition is allowed.
func (l *Lifecycle) Advance(next State) error {
	if !slices.Contains(transitions[l.current], next) {
		return fmt.Errorf("%s -> %s: %w", l.current, next, ErrInvalidTransition)
	}

	l.current = next
	l.history = append(l.history, next)

	return nil
}

// Fail moves to StateFailed and returns err tagged with the stage matching the current state.
func (l *Lifecycle) Fail(err error) error {
	stage := StagePlace
	if l.current == StateVerifying || l.current == StatePlaced {
		stage = StageVerify
	}

	if l.current == StatePlaced {
		// Placed can only fail once verification starts.
		_ = l.Advance(StateVerifying)
	}

	if advanceErr := l.Advance(StateFailed); advanceErr != nil {
		return errors.Join(&StageError{Stage: stage, Err: err}, advanceErr)
	}

	return &StageError{Stage: stage, Err: err}
}
