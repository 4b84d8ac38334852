package check

import (
	"pkg.world.dev/lockstep/journal"
)

// FailingActionWarningListener logs every non-success operation result. It
// never disables itself: rejections are normal game-logic outcomes, this
// listener only makes them visible.
type FailingActionWarningListener struct {
	Base
}

func NewFailingActionWarningListener() *FailingActionWarningListener {
	return &FailingActionWarningListener{Base: newBase("failing-action-warning")}
}

func (c *FailingActionWarningListener) HandleEvent(ev journal.Event) {
	if ev.Phase != journal.PhaseAfterTick && ev.Phase != journal.PhaseAfterAction {
		return
	}
	if c.State() != Active || ev.Result.IsSuccess() {
		return
	}
	logEvent := c.logger.Warn().
		Stringer("position", ev.Position).
		Stringer("result", ev.Result)
	if ev.Action != nil {
		if spec, ok := c.journal.Registry().LookupType(ev.Action); ok {
			logEvent = logEvent.Str("action", spec.Name)
		}
		logEvent = logEvent.Uint64("invoker", uint64(ev.Action.InvokingPlayer()))
	}
	logEvent.Msg("operation did not succeed")
}

// StandardSet returns one instance of every consistency checker plus the
// failing-action warning listener, the full diagnostic complement a debug
// build attaches to a journal.
func StandardSet() []journal.Listener {
	return []journal.Listener{
		NewCloningChecker(),
		NewOutsideModificationChecker(),
		NewChecksumChecker(),
		NewRerunChecker(),
		NewCommitChecker(),
		NewActionImmutabilityChecker(),
		NewModifyHistoryChecker(),
		NewFailingActionWarningListener(),
	}
}
