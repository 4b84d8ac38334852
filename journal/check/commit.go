package check

import (
	"pkg.world.dev/lockstep/checksum"
	"pkg.world.dev/lockstep/codec"
	"pkg.world.dev/lockstep/journal"
	"pkg.world.dev/lockstep/types"
)

// CommitChecker reacts to checkpoint drift detected during commit: it replays
// a fresh copy of the checkpoint model through the pending operations and
// diffs it against the staged model, pinning down state leaks across model
// instances (e.g. a shared mutable singleton) that a bare checksum mismatch
// cannot localize.
type CommitChecker struct {
	Base
	replayed *checksum.Buffer
	staged   *checksum.Buffer
}

func NewCommitChecker() *CommitChecker {
	return &CommitChecker{
		Base:     newBase("commit"),
		replayed: checksum.NewBuffer(),
		staged:   checksum.NewBuffer(),
	}
}

func (c *CommitChecker) HandleEvent(ev journal.Event) {
	if ev.Phase != journal.PhaseCheckpointDrift {
		return
	}
	c.run(ev, c.check)
}

func (c *CommitChecker) check(ev journal.Event) error {
	bz, err := codec.Encode(c.journal.CheckpointModel())
	if err != nil {
		return err
	}
	rerun, err := c.journal.MaterializeModel(bz)
	if err != nil {
		return err
	}
	// Replay the full pending log so the rerun copy lands on the staged tip,
	// regardless of where the commit boundary fell.
	for _, entry := range c.journal.PendingOperations() {
		replay(rerun, entry)
	}
	if err := checksum.Serialize(c.replayed, rerun); err != nil {
		return err
	}
	if err := checksum.Serialize(c.staged, c.journal.StagedModel()); err != nil {
		return err
	}
	if !checksum.ContentsEqual(c.replayed, c.staged) {
		return violation("replay from checkpoint diverges from the staged model",
			c.replayed.Bytes(), c.staged.Bytes())
	}
	return nil
}

func replay(model types.Model, entry journal.Entry) {
	if entry.Kind == types.OpTick {
		model.Tick()
		return
	}
	result := model.Execute(entry.Action, false)
	if result.IsSuccess() {
		model.Execute(entry.Action, true)
	}
}
