package check

import (
	"pkg.world.dev/lockstep/checksum"
	"pkg.world.dev/lockstep/codec"
	"pkg.world.dev/lockstep/journal"
)

// CloningChecker verifies that the staged model round-trips through
// serialize/deserialize/reserialize to an identical checksum after every
// operation. A mismatch means non-serializable transient state is leaking
// into checksummed fields.
type CloningChecker struct {
	Base
	original *checksum.Buffer
	cloned   *checksum.Buffer
}

func NewCloningChecker() *CloningChecker {
	c := &CloningChecker{
		Base:     newBase("cloning"),
		original: checksum.NewBuffer(),
		cloned:   checksum.NewBuffer(),
	}
	return c
}

func (c *CloningChecker) HandleEvent(ev journal.Event) {
	switch ev.Phase {
	case journal.PhaseAfterTick, journal.PhaseAfterAction:
		c.run(ev, c.check)
	default:
	}
}

func (c *CloningChecker) check(ev journal.Event) error {
	staged := c.journal.StagedModel()
	bz, err := codec.Encode(staged)
	if err != nil {
		return err
	}
	clone, err := c.journal.MaterializeModel(bz)
	if err != nil {
		return err
	}
	if err := checksum.Serialize(c.original, staged); err != nil {
		return err
	}
	if err := checksum.Serialize(c.cloned, clone); err != nil {
		return err
	}
	if !checksum.ContentsEqual(c.original, c.cloned) {
		return violation("model does not survive a serialization round trip",
			c.original.Bytes(), c.cloned.Bytes())
	}
	return nil
}
