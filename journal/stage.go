package journal

import (
	"github.com/rotisserie/eris"

	"pkg.world.dev/lockstep/checksum"
	"pkg.world.dev/lockstep/types"
)

// StageTick applies one unit of simulation time to the staged model and
// records the resulting checksum. Leader only.
func (j *Journal) StageTick() (types.Checksum, error) {
	if err := j.stageGuard(Leader); err != nil {
		return 0, err
	}
	j.notify(Event{Phase: PhaseBeforeTick, Position: j.stagedPos})

	j.staged.Tick()
	j.stagedPos = j.stagedPos.NextTick()
	cs, err := checksum.Compute(j.buf, j.staged)
	if err != nil {
		return 0, eris.Wrap(err, "failed to checksum staged model after tick")
	}
	j.record(Entry{
		Kind:        types.OpTick,
		Result:      types.Success,
		Position:    j.stagedPos,
		Checksum:    cs,
		HasChecksum: true,
	})
	j.notify(Event{Phase: PhaseAfterTick, Position: j.stagedPos, Result: types.Success, Checksum: &cs})
	return cs, nil
}

// StageTickExpecting applies one unit of simulation time on a follower. The
// expected checksum, when the wire carried one for this operation, is
// recorded for verification at commit time; it is not checked here.
func (j *Journal) StageTickExpecting(expected *types.Checksum) error {
	if err := j.stageGuard(Follower); err != nil {
		return err
	}
	j.notify(Event{Phase: PhaseBeforeTick, Position: j.stagedPos})

	j.staged.Tick()
	j.stagedPos = j.stagedPos.NextTick()
	entry := Entry{
		Kind:     types.OpTick,
		Result:   types.Success,
		Position: j.stagedPos,
	}
	if expected != nil {
		entry.Checksum = *expected
		entry.HasChecksum = true
	}
	j.record(entry)
	j.notify(Event{Phase: PhaseAfterTick, Position: j.stagedPos, Result: types.Success, Checksum: expected})
	return nil
}

// StageAction validates a against the staged model and, if validation
// succeeds, commits its mutation and records the resulting checksum. An
// action that fails validation is still logged as an operation for replay
// fidelity; its non-success result is surfaced to listeners, not returned as
// an error. Leader only.
func (j *Journal) StageAction(a types.Action) (types.ActionResult, types.Checksum, error) {
	if err := j.stageGuard(Leader); err != nil {
		return types.UnknownError, 0, err
	}
	if err := j.gateFlags(a, types.LeaderSynchronized); err != nil {
		return types.UnknownError, 0, err
	}
	j.notify(Event{Phase: PhaseBeforeAction, Position: j.stagedPos, Action: a})

	result := applyAction(j.staged, a)
	j.stagedPos = j.stagedPos.NextAction()
	cs, err := checksum.Compute(j.buf, j.staged)
	if err != nil {
		return types.UnknownError, 0, eris.Wrap(err, "failed to checksum staged model after action")
	}
	j.record(Entry{
		Kind:        types.OpAction,
		Action:      a,
		Result:      result,
		Position:    j.stagedPos,
		Checksum:    cs,
		HasChecksum: true,
	})
	j.notify(Event{Phase: PhaseAfterAction, Position: j.stagedPos, Action: a, Result: result, Checksum: &cs})
	return result, cs, nil
}

// StageActionExpecting is the follower form of StageAction. The result is
// computed locally (execution is deterministic); the expected checksum, when
// present, is verified at commit time.
func (j *Journal) StageActionExpecting(a types.Action, expected *types.Checksum) (types.ActionResult, error) {
	if err := j.stageGuard(Follower); err != nil {
		return types.UnknownError, err
	}
	if err := j.gateFlags(a, types.FollowerSynchronized); err != nil {
		return types.UnknownError, err
	}
	j.notify(Event{Phase: PhaseBeforeAction, Position: j.stagedPos, Action: a})

	result := applyAction(j.staged, a)
	j.stagedPos = j.stagedPos.NextAction()
	entry := Entry{
		Kind:     types.OpAction,
		Action:   a,
		Result:   result,
		Position: j.stagedPos,
	}
	if expected != nil {
		entry.Checksum = *expected
		entry.HasChecksum = true
	}
	j.record(entry)
	j.notify(Event{Phase: PhaseAfterAction, Position: j.stagedPos, Action: a, Result: result, Checksum: expected})
	return result, nil
}

func (j *Journal) stageGuard(want Role) error {
	if !j.isSetup {
		return ErrNotSetup
	}
	if j.inModifyHistory {
		return ErrInModifyHistory
	}
	if j.role != want {
		return eris.Wrapf(ErrWrongRole, "journal role is %s, operation requires %s", j.role, want)
	}
	return nil
}

func (j *Journal) gateFlags(a types.Action, required types.ExecuteFlags) error {
	spec := j.registry.SpecOf(a)
	if !spec.Flags.Has(required) {
		return eris.Wrapf(ErrExecuteFlagsForbid, "action %q has flags %s, needs %s",
			spec.Name, spec.Flags, required)
	}
	return nil
}

func (j *Journal) record(entry Entry) {
	j.entries = append(j.entries, entry)
	j.stagedChecksum = entry.Checksum
	j.hasStagedChecksum = entry.HasChecksum
	if !entry.Result.IsSuccess() {
		j.logger.Warn().
			Stringer("position", entry.Position).
			Stringer("result", entry.Result).
			Msg("staged operation did not succeed")
	}
}

// applyAction runs the validate-then-commit protocol: a dry-run validation
// first, the mutating pass only when validation succeeded.
func applyAction(model types.Model, a types.Action) types.ActionResult {
	result := model.Execute(a, false)
	if !result.IsSuccess() {
		return result
	}
	return model.Execute(a, true)
}
