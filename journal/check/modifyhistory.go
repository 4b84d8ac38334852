package check

import (
	"pkg.world.dev/lockstep/checksum"
	"pkg.world.dev/lockstep/journal"
)

// ModifyHistoryChecker brackets the direct-mutation escape hatches
// (ModifyHistory, unsynchronized action blocks) and verifies that checksummed
// state is unchanged across the bracket. Only fields excluded from checksums
// may be touched inside those blocks.
type ModifyHistoryChecker struct {
	Base
	before    *checksum.Buffer
	after     *checksum.Buffer
	hasBefore bool
}

func NewModifyHistoryChecker() *ModifyHistoryChecker {
	c := &ModifyHistoryChecker{
		before: checksum.NewBuffer(),
		after:  checksum.NewBuffer(),
	}
	c.Base = newBase("modify-history")
	c.onReset = func() { c.hasBefore = false }
	return c
}

func (c *ModifyHistoryChecker) HandleEvent(ev journal.Event) {
	switch ev.Phase {
	case journal.PhaseBeforeModifyHistory:
		c.run(ev, c.snapshot)
	case journal.PhaseAfterModifyHistory:
		c.run(ev, c.check)
	default:
	}
}

func (c *ModifyHistoryChecker) snapshot(journal.Event) error {
	if err := checksum.Serialize(c.before, c.journal.StagedModel()); err != nil {
		return err
	}
	c.hasBefore = true
	return nil
}

func (c *ModifyHistoryChecker) check(journal.Event) error {
	if !c.hasBefore {
		return nil
	}
	c.hasBefore = false
	if err := checksum.Serialize(c.after, c.journal.StagedModel()); err != nil {
		return err
	}
	if !checksum.ContentsEqual(c.before, c.after) {
		return violation("modify-history block altered checksummed state",
			c.before.Bytes(), c.after.Bytes())
	}
	return nil
}
