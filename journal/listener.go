package journal

import "pkg.world.dev/lockstep/types"

// Phase identifies which lifecycle hook an event belongs to.
type Phase uint8

const (
	PhaseAfterSetup Phase = iota + 1
	PhaseBeforeTick
	PhaseAfterTick
	PhaseBeforeAction
	PhaseAfterAction
	PhaseBeforeCommit
	PhaseAfterCommit
	PhaseBeforeRollback
	PhaseAfterRollback
	PhaseBeforeModifyHistory
	PhaseAfterModifyHistory
	PhaseCheckpointDrift
)

func (p Phase) String() string {
	switch p {
	case PhaseAfterSetup:
		return "AfterSetup"
	case PhaseBeforeTick:
		return "BeforeTick"
	case PhaseAfterTick:
		return "AfterTick"
	case PhaseBeforeAction:
		return "BeforeAction"
	case PhaseAfterAction:
		return "AfterAction"
	case PhaseBeforeCommit:
		return "BeforeCommit"
	case PhaseAfterCommit:
		return "AfterCommit"
	case PhaseBeforeRollback:
		return "BeforeRollback"
	case PhaseAfterRollback:
		return "AfterRollback"
	case PhaseBeforeModifyHistory:
		return "BeforeModifyHistory"
	case PhaseAfterModifyHistory:
		return "AfterModifyHistory"
	case PhaseCheckpointDrift:
		return "CheckpointDrift"
	default:
		return "InvalidPhase"
	}
}

// Event is the single unified payload delivered to every listener hook.
// Fields that do not apply to a phase or role are nil: a follower's After*
// events carry the externally supplied checksum when present, a leader's
// carry the locally computed one.
type Event struct {
	Phase    Phase
	Position types.Position
	// Action is set on BeforeAction/AfterAction events.
	Action types.Action
	// Result is set on AfterTick/AfterAction events.
	Result types.ActionResult
	// Checksum is the checksum recorded for the operation, when one exists.
	Checksum *types.Checksum
	// Recomputed is set on CheckpointDrift events: the checksum obtained by
	// independently replaying from the checkpoint, differing from Checksum.
	Recomputed *types.Checksum
}

// Listener observes a journal's lifecycle. A listener is attached to exactly
// one journal at a time; the journal owns the listener list, the listener
// keeps a non-owning back-reference from Attach.
//
// Listeners must not mutate the journal or its models. Implementations are
// expected to embed check.Base (or provide equivalent guarding): the journal
// itself does not recover panics out of listener callbacks.
type Listener interface {
	// Name identifies the listener in logs and reports.
	Name() string
	// Attach hands the listener its journal back-reference. Called during
	// Setup, or immediately if the listener is added to a set-up journal.
	Attach(j *Journal)
	// HandleEvent observes one lifecycle event.
	HandleEvent(ev Event)
}

func (j *Journal) notify(ev Event) {
	for _, l := range j.listeners {
		l.HandleEvent(ev)
	}
}
