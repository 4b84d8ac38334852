package check

import (
	"github.com/rotisserie/eris"

	"pkg.world.dev/lockstep/checksum"
	"pkg.world.dev/lockstep/codec"
	"pkg.world.dev/lockstep/journal"
)

// RerunChecker verifies determinism: deserializing the pre-operation state
// and reapplying the same tick or action must reproduce the state recorded by
// the first execution. A mismatch means the model has a hidden dependency on
// wall-clock time, an unseeded random source, or a code path that behaves
// differently the second time around.
type RerunChecker struct {
	Base
	preState    []byte
	hasPreState bool
	first       *checksum.Buffer
	second      *checksum.Buffer
}

func NewRerunChecker() *RerunChecker {
	c := &RerunChecker{
		first:  checksum.NewBuffer(),
		second: checksum.NewBuffer(),
	}
	c.Base = newBase("rerun")
	c.onReset = func() { c.hasPreState = false }
	return c
}

func (c *RerunChecker) HandleEvent(ev journal.Event) {
	switch ev.Phase {
	case journal.PhaseBeforeTick, journal.PhaseBeforeAction:
		c.run(ev, c.snapshot)
	case journal.PhaseAfterTick, journal.PhaseAfterAction:
		c.run(ev, c.check)
	default:
	}
}

func (c *RerunChecker) snapshot(journal.Event) error {
	bz, err := codec.Encode(c.journal.StagedModel())
	if err != nil {
		return err
	}
	c.preState = append(c.preState[:0], bz...)
	c.hasPreState = true
	return nil
}

func (c *RerunChecker) check(ev journal.Event) error {
	if !c.hasPreState {
		return nil
	}
	c.hasPreState = false

	rerun, err := c.journal.MaterializeModel(c.preState)
	if err != nil {
		return err
	}
	if ev.Phase == journal.PhaseAfterTick {
		rerun.Tick()
	} else {
		result := rerun.Execute(ev.Action, false)
		if result.IsSuccess() {
			result = rerun.Execute(ev.Action, true)
		}
		if result != ev.Result {
			return eris.Errorf("rerun produced a different action result: first=%s rerun=%s",
				ev.Result, result)
		}
	}
	if err := checksum.Serialize(c.first, c.journal.StagedModel()); err != nil {
		return err
	}
	if err := checksum.Serialize(c.second, rerun); err != nil {
		return err
	}
	if !checksum.ContentsEqual(c.first, c.second) {
		return violation("rerun of the operation diverged from the first execution",
			c.first.Bytes(), c.second.Bytes())
	}
	return nil
}
