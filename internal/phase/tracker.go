// Package phase tracks runtime lifecycle milestones with validated
// monotonic transitions.
//
// The callback dispatcher deliberately performs no ordering check of its
// own; collaborators that want the stricter guarantee drive their phase
// announcements through a Tracker, which rejects skipped, repeated, or
// post-death transitions.
package phase

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kestrelvm/kestrel/internal/callbacks"
)

// Sentinel errors for the phase package.
var (
	// ErrOutOfOrder is returned when a transition skips or repeats a
	// phase.
	ErrOutOfOrder = errors.New("phase transition out of order")

	// ErrTerminal is returned when a transition is attempted after the
	// death phase.
	ErrTerminal = errors.New("runtime phase is terminal")
)

// Tracker validates that phases advance one milestone at a time, starting
// at PhaseInitialAgents and ending at PhaseDeath. It is safe for
// concurrent use.
type Tracker struct {
	mu      sync.Mutex
	current callbacks.RuntimePhase
	started bool
}

// NewTracker creates a tracker with no phase reached yet.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Current returns the last phase reached. ok is false before the first
// Advance.
func (t *Tracker) Current() (p callbacks.RuntimePhase, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.started
}

// Advance moves to next, which must be the milestone immediately after the
// current one. The first call must advance to PhaseInitialAgents.
func (t *Tracker) Advance(next callbacks.RuntimePhase) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		if next != callbacks.PhaseInitialAgents {
			return fmt.Errorf("%w: first phase must be %s, got %s",
				ErrOutOfOrder, callbacks.PhaseInitialAgents, next)
		}
		t.current = next
		t.started = true
		return nil
	}

	if t.current == callbacks.PhaseDeath {
		return fmt.Errorf("%w: cannot advance past %s", ErrTerminal, callbacks.PhaseDeath)
	}
	if next != t.current+1 {
		return fmt.Errorf("%w: %s does not follow %s", ErrOutOfOrder, next, t.current)
	}

	t.current = next
	return nil
}

// Announce advances to next and, on success, dispatches the transition.
// The dispatch happens outside the tracker's lock.
func (t *Tracker) Announce(d *callbacks.Dispatcher, next callbacks.RuntimePhase) error {
	if err := t.Advance(next); err != nil {
		return err
	}
	d.NextRuntimePhase(next)
	return nil
}
