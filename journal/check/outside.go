package check

import (
	"pkg.world.dev/lockstep/checksum"
	"pkg.world.dev/lockstep/journal"
)

// OutsideModificationChecker verifies that the staged model's checksummed
// bytes are unchanged between the end of one operation and the start of the
// next. Anything mutating the model outside the tick/action pipeline trips it
// at the next operation boundary.
type OutsideModificationChecker struct {
	Base
	snapshot    *checksum.Buffer
	current     *checksum.Buffer
	hasSnapshot bool
}

func NewOutsideModificationChecker() *OutsideModificationChecker {
	c := &OutsideModificationChecker{
		snapshot: checksum.NewBuffer(),
		current:  checksum.NewBuffer(),
	}
	c.Base = newBase("outside-modification")
	c.onReset = func() { c.hasSnapshot = false }
	return c
}

func (c *OutsideModificationChecker) HandleEvent(ev journal.Event) {
	switch ev.Phase {
	case journal.PhaseBeforeTick, journal.PhaseBeforeAction:
		c.run(ev, c.check)
	case journal.PhaseAfterSetup, journal.PhaseAfterTick, journal.PhaseAfterAction,
		journal.PhaseAfterRollback, journal.PhaseAfterModifyHistory:
		c.run(ev, c.snapshotStaged)
	default:
	}
}

func (c *OutsideModificationChecker) check(ev journal.Event) error {
	if !c.hasSnapshot {
		return nil
	}
	if err := checksum.Serialize(c.current, c.journal.StagedModel()); err != nil {
		return err
	}
	if !checksum.ContentsEqual(c.snapshot, c.current) {
		return violation("staged model was modified outside the tick/action pipeline",
			c.snapshot.Bytes(), c.current.Bytes())
	}
	return nil
}

func (c *OutsideModificationChecker) snapshotStaged(journal.Event) error {
	if err := checksum.Serialize(c.snapshot, c.journal.StagedModel()); err != nil {
		return err
	}
	c.hasSnapshot = true
	return nil
}
