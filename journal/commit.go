package journal

import (
	"github.com/rotisserie/eris"

	"pkg.world.dev/lockstep/checksum"
	"pkg.world.dev/lockstep/types"
)

// CommitResult reports the outcome of a Commit call. When HasConflict is set
// the checkpoint was left entirely unchanged and the caller must decide the
// recovery policy; the suspect range brackets the operations that could not
// be cleared against the expected checksums.
type CommitResult struct {
	HasConflict           bool
	ExpectedChecksum      types.Checksum
	ActualChecksum        types.Checksum
	FirstSuspectOperation types.Position
	LastSuspectOperation  types.Position
	// CommittedUpto is the checkpoint position after the call.
	CommittedUpto types.Position
}

// Commit advances the checkpoint to upto by replaying the staged operations
// from the current checkpoint and verifying them.
//
// On a follower this is where verification against authority happens: each
// replayed operation that carries an externally supplied checksum is
// recomputed and compared, and the operation at the commit boundary must
// carry one. The first mismatch produces a conflict result and leaves both
// checkpoint model and position untouched.
//
// On a leader the call is bookkeeping: the replayed state's final checksum is
// compared against the journal's own record, and a mismatch - state leaking
// into the model between replays - is surfaced to listeners as checkpoint
// drift rather than a conflict.
//
// Committing at or before the current checkpoint is a no-op; the checkpoint
// position never decreases.
func (j *Journal) Commit(upto types.Position) (CommitResult, error) {
	if !j.isSetup {
		return CommitResult{}, ErrNotSetup
	}
	if j.inModifyHistory {
		return CommitResult{}, ErrInModifyHistory
	}
	if !upto.After(j.checkpointPos) {
		return CommitResult{CommittedUpto: j.checkpointPos}, nil
	}
	if upto.After(j.stagedPos) {
		return CommitResult{}, eris.Wrapf(ErrAheadOfStaged, "commit %s, staged %s", upto, j.stagedPos)
	}
	n, err := j.boundaryIndex(upto)
	if err != nil {
		return CommitResult{}, err
	}
	if j.role == Follower && !j.entries[n-1].HasChecksum {
		return CommitResult{}, eris.Wrapf(ErrMissingChecksum, "commit boundary %s", upto)
	}

	j.notify(Event{Phase: PhaseBeforeCommit, Position: upto})

	// Verification replays onto a scratch clone so a conflict leaves the
	// checkpoint untouched.
	scratch, err := cloneModel(j.checkpoint)
	if err != nil {
		return CommitResult{}, err
	}
	buf := checksum.NewBuffer()
	finalChecksum := j.checkpointChecksum
	firstUnverified := 0
	for i := 0; i < n; i++ {
		entry := j.entries[i]
		replayEntry(scratch, entry)
		if j.role != Follower || !entry.HasChecksum {
			continue
		}
		actual, err := checksum.Compute(buf, scratch)
		if err != nil {
			return CommitResult{}, err
		}
		if actual != entry.Checksum {
			res := CommitResult{
				HasConflict:           true,
				ExpectedChecksum:      entry.Checksum,
				ActualChecksum:        actual,
				FirstSuspectOperation: j.entries[firstUnverified].Position,
				LastSuspectOperation:  entry.Position,
				CommittedUpto:         j.checkpointPos,
			}
			j.logger.Error().
				Stringer("expected", res.ExpectedChecksum).
				Stringer("actual", res.ActualChecksum).
				Stringer("firstSuspect", res.FirstSuspectOperation).
				Stringer("lastSuspect", res.LastSuspectOperation).
				Msg("commit checksum verification failed")
			return res, nil
		}
		finalChecksum = actual
		firstUnverified = i + 1
	}

	if j.role == Leader {
		recomputed, err := checksum.Compute(buf, scratch)
		if err != nil {
			return CommitResult{}, err
		}
		recorded := j.entries[n-1].Checksum
		if recomputed != recorded {
			j.logger.Error().
				Stringer("recorded", recorded).
				Stringer("recomputed", recomputed).
				Stringer("position", upto).
				Msg("checkpoint drift detected during commit")
			j.notify(Event{
				Phase:      PhaseCheckpointDrift,
				Position:   upto,
				Checksum:   &recorded,
				Recomputed: &recomputed,
			})
		}
		finalChecksum = recomputed
	}

	j.checkpoint = scratch
	j.checkpointPos = upto
	j.checkpointChecksum = finalChecksum
	j.entries = append([]Entry(nil), j.entries[n:]...)

	j.notify(Event{Phase: PhaseAfterCommit, Position: upto, Checksum: &finalChecksum})
	j.logger.Debug().
		Stringer("position", upto).
		Stringer("checksum", finalChecksum).
		Msg("checkpoint advanced")
	return CommitResult{CommittedUpto: upto}, nil
}

// Rollback discards staged operations after to and resets the staged model to
// checkpoint state replayed forward up to to. Used when speculatively staged
// operations turn out invalid.
func (j *Journal) Rollback(to types.Position) error {
	if !j.isSetup {
		return ErrNotSetup
	}
	if j.inModifyHistory {
		return ErrInModifyHistory
	}
	if to.Before(j.checkpointPos) {
		return eris.Wrapf(ErrNotOperationBoundary, "rollback %s is before checkpoint %s", to, j.checkpointPos)
	}
	if to.After(j.stagedPos) {
		return eris.Wrapf(ErrAheadOfStaged, "rollback %s, staged %s", to, j.stagedPos)
	}
	n := 0
	if to.After(j.checkpointPos) {
		var err error
		n, err = j.boundaryIndex(to)
		if err != nil {
			return err
		}
	}

	j.notify(Event{Phase: PhaseBeforeRollback, Position: to})

	scratch, err := cloneModel(j.checkpoint)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		replayEntry(scratch, j.entries[i])
	}
	j.staged = scratch
	j.stagedPos = to
	j.entries = append([]Entry(nil), j.entries[:n]...)
	if n > 0 {
		j.stagedChecksum = j.entries[n-1].Checksum
		j.hasStagedChecksum = j.entries[n-1].HasChecksum
	} else {
		j.stagedChecksum = j.checkpointChecksum
		j.hasStagedChecksum = true
	}

	j.notify(Event{Phase: PhaseAfterRollback, Position: to})
	j.logger.Debug().Stringer("position", to).Msg("journal rolled back")
	return nil
}

// boundaryIndex returns how many staged entries lead up to and include pos.
// pos must be the exact position reached by one of the staged entries.
func (j *Journal) boundaryIndex(pos types.Position) (int, error) {
	for i, entry := range j.entries {
		if entry.Position == pos {
			return i + 1, nil
		}
		if entry.Position.After(pos) {
			break
		}
	}
	return 0, eris.Wrapf(ErrNotOperationBoundary, "position %s", pos)
}

// replayEntry re-applies one logged operation during commit or rollback
// replay. Failed actions replay their validation pass only, reproducing the
// original no-mutation outcome.
func replayEntry(model types.Model, entry Entry) {
	if entry.Kind == types.OpTick {
		model.Tick()
		return
	}
	applyAction(model, entry.Action)
}
