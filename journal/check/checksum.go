package check

import (
	"pkg.world.dev/lockstep/checksum"
	"pkg.world.dev/lockstep/journal"
)

// ChecksumChecker verifies that the journal's own recorded checksums match an
// independently recomputed one. The staged checksum is only checked on a
// leader: a follower's staged checksums are externally asserted and their
// verification is deliberately deferred to commit.
type ChecksumChecker struct {
	Base
	buf *checksum.Buffer
}

func NewChecksumChecker() *ChecksumChecker {
	return &ChecksumChecker{
		Base: newBase("checksum"),
		buf:  checksum.NewBuffer(),
	}
}

func (c *ChecksumChecker) HandleEvent(ev journal.Event) {
	switch ev.Phase {
	case journal.PhaseAfterTick, journal.PhaseAfterAction, journal.PhaseAfterRollback:
		c.run(ev, c.checkStaged)
	case journal.PhaseAfterSetup, journal.PhaseAfterCommit:
		c.run(ev, c.checkCheckpoint)
	default:
	}
}

func (c *ChecksumChecker) checkStaged(journal.Event) error {
	if c.journal.Role() != journal.Leader {
		return nil
	}
	recorded, ok := c.journal.StagedChecksum()
	if !ok {
		return nil
	}
	recomputed, err := checksum.Compute(c.buf, c.journal.StagedModel())
	if err != nil {
		return err
	}
	if recomputed != recorded {
		return violationChecksum("recorded staged checksum does not match recomputation",
			recorded, recomputed)
	}
	return nil
}

func (c *ChecksumChecker) checkCheckpoint(journal.Event) error {
	recorded := c.journal.CheckpointChecksum()
	recomputed, err := checksum.Compute(c.buf, c.journal.CheckpointModel())
	if err != nil {
		return err
	}
	if recomputed != recorded {
		return violationChecksum("recorded checkpoint checksum does not match recomputation",
			recorded, recomputed)
	}
	return nil
}
