package check

import (
	"bytes"

	"pkg.world.dev/lockstep/codec"
	"pkg.world.dev/lockstep/journal"
)

// ActionImmutabilityChecker verifies that an action's own serialized field
// values are identical before and after its execution. Actions are immutable
// inputs; an Execute implementation using them as scratch space breaks replay.
type ActionImmutabilityChecker struct {
	Base
	before    []byte
	hasBefore bool
}

func NewActionImmutabilityChecker() *ActionImmutabilityChecker {
	c := &ActionImmutabilityChecker{}
	c.Base = newBase("action-immutability")
	c.onReset = func() { c.hasBefore = false }
	return c
}

func (c *ActionImmutabilityChecker) HandleEvent(ev journal.Event) {
	switch ev.Phase {
	case journal.PhaseBeforeAction:
		c.run(ev, c.snapshot)
	case journal.PhaseAfterAction:
		c.run(ev, c.check)
	case journal.PhaseBeforeModifyHistory:
		if ev.Action != nil {
			c.run(ev, c.snapshot)
		}
	case journal.PhaseAfterModifyHistory:
		if ev.Action != nil {
			c.run(ev, c.check)
		}
	default:
	}
}

func (c *ActionImmutabilityChecker) snapshot(ev journal.Event) error {
	bz, err := codec.Encode(ev.Action)
	if err != nil {
		return err
	}
	c.before = append(c.before[:0], bz...)
	c.hasBefore = true
	return nil
}

func (c *ActionImmutabilityChecker) check(ev journal.Event) error {
	if !c.hasBefore {
		return nil
	}
	c.hasBefore = false
	after, err := codec.Encode(ev.Action)
	if err != nil {
		return err
	}
	if !bytes.Equal(c.before, after) {
		return violation("action was mutated by its own execution", c.before, after)
	}
	return nil
}
