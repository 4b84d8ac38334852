package journal

import (
	"github.com/rotisserie/eris"

	"pkg.world.dev/lockstep/types"
)

// ModifyHistory runs fn against the staged model outside the normal
// tick/action pipeline. This is an escape hatch for server-only side-channel
// mutations: only fields excluded from checksums may be touched, and the
// bracketing notifications let listeners verify exactly that. No operation is
// logged and no position advances.
func (j *Journal) ModifyHistory(fn func(model types.Model) error) error {
	if !j.isSetup {
		return ErrNotSetup
	}
	if j.inModifyHistory {
		return ErrInModifyHistory
	}
	j.notify(Event{Phase: PhaseBeforeModifyHistory, Position: j.stagedPos})
	j.inModifyHistory = true
	err := fn(j.staged)
	j.inModifyHistory = false
	j.notify(Event{Phase: PhaseAfterModifyHistory, Position: j.stagedPos})
	return eris.Wrap(err, "modify-history block failed")
}

// ExecuteUnsynchronized applies an action flagged FollowerUnsynchronized to
// the staged model outside the replicated timeline. Like ModifyHistory, the
// action must not alter checksummed state; the same bracketing notifications
// apply.
func (j *Journal) ExecuteUnsynchronized(a types.Action) (types.ActionResult, error) {
	if !j.isSetup {
		return types.UnknownError, ErrNotSetup
	}
	if j.inModifyHistory {
		return types.UnknownError, ErrInModifyHistory
	}
	if err := j.gateFlags(a, types.FollowerUnsynchronized); err != nil {
		return types.UnknownError, err
	}
	j.notify(Event{Phase: PhaseBeforeModifyHistory, Position: j.stagedPos, Action: a})
	j.inModifyHistory = true
	result := applyAction(j.staged, a)
	j.inModifyHistory = false
	j.notify(Event{Phase: PhaseAfterModifyHistory, Position: j.stagedPos, Action: a, Result: result})
	return result, nil
}
