// Package check implements the consistency-checking listeners that ride on a
// journal's event stream. Every checker follows the same pattern: build a
// reference buffer, compare it against a recomputed one, and on mismatch log
// a structural diff and disable itself. Checkers are diagnostic-only and
// self-quarantining: a violation (or a panic inside a check) never interrupts
// the simulation, it only costs that checker's future output.
package check

import (
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"pkg.world.dev/lockstep/journal"
)

// State is the per-checker lifecycle state machine.
type State uint8

const (
	// Active checkers process every event.
	Active State = iota
	// Paused checkers are temporarily inert, e.g. across a gap in
	// observation. Unpausing re-arms the checker.
	Paused
	// Disabled is terminal: entered after the checker reports a violation or
	// a check panics. Unpause does not leave this state.
	Disabled
)

func (s State) String() string {
	switch s {
	case Active:
		return "Active"
	case Paused:
		return "Paused"
	case Disabled:
		return "Disabled"
	default:
		return "InvalidState"
	}
}

// Base carries the common listener plumbing: the journal back-reference, the
// state machine, and the guarded execution wrapper. Concrete checkers embed
// it and route their HandleEvent through run.
type Base struct {
	name    string
	journal *journal.Journal
	state   State
	logger  zerolog.Logger

	// onReset invalidates any cached reference state. Called on attach and
	// on unpause, so checkers never compare across an observation gap.
	onReset func()
}

func newBase(name string) Base {
	return Base{
		name:   name,
		logger: zerologlog.Logger,
	}
}

func (b *Base) Name() string { return b.name }

func (b *Base) Attach(j *journal.Journal) {
	b.journal = j
	b.logger = j.Logger().With().Str("checker", b.name).Logger()
	b.reset()
}

func (b *Base) Journal() *journal.Journal { return b.journal }

func (b *Base) State() State { return b.state }

// Pause makes the checker inert without detaching it. Pausing a disabled
// checker has no effect.
func (b *Base) Pause() {
	if b.state == Active {
		b.state = Paused
	}
}

// Unpause re-arms a paused checker and drops its cached reference state. It
// does not revive a disabled checker.
func (b *Base) Unpause() {
	if b.state != Paused {
		return
	}
	b.state = Active
	b.reset()
}

// DisableAfterError permanently silences the checker. Subsequent events are
// skipped for the remainder of the checker's lifetime.
func (b *Base) DisableAfterError() {
	b.state = Disabled
}

func (b *Base) reset() {
	if b.onReset != nil {
		b.onReset()
	}
}

// run executes one check against an event, skipping all work unless the
// checker is active, and converting both returned errors and panics into the
// log-and-disable path.
func (b *Base) run(ev journal.Event, fn func(ev journal.Event) error) {
	if b.state != Active || b.journal == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.fail(ev, eris.Errorf("check panicked: %v", r))
		}
	}()
	if err := fn(ev); err != nil {
		b.fail(ev, err)
	}
}

func (b *Base) fail(ev journal.Event, err error) {
	b.logger.Error().
		Stringer("phase", ev.Phase).
		Stringer("position", ev.Position).
		Str("detail", eris.ToString(err, true)).
		Msg("consistency check failed; disabling checker")
	b.DisableAfterError()
}
