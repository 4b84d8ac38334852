package check_test

import (
	"strconv"
	"testing"

	"pkg.world.dev/lockstep/action"
	"pkg.world.dev/lockstep/assert"
	"pkg.world.dev/lockstep/journal"
	"pkg.world.dev/lockstep/journal/check"
	"pkg.world.dev/lockstep/types"
)

type checkModel struct {
	TickCount int32  `json:"tickCount"`
	Total     int64  `json:"total"`
	Scratch   string `json:"scratch" lockstep:"nochecksum"`
}

func (m *checkModel) Tick() { m.TickCount++ }

func (m *checkModel) Execute(a types.Action, commit bool) types.ActionResult {
	switch act := a.(type) {
	case *addAction:
		if act.Amount < 0 {
			return types.OperationNotPermitted
		}
		if commit {
			m.Total += act.Amount
		}
		return types.Success
	case *selfMutatingAction:
		if commit {
			m.Total += act.Amount
			act.Amount++ // illegal: actions are immutable inputs
		}
		return types.Success
	case *scratchAction:
		if commit {
			m.Scratch = act.Note
		}
		return types.Success
	case *corruptScratchAction:
		if commit {
			m.Total = act.Amount
		}
		return types.Success
	default:
		return types.UnknownError
	}
}

type addAction struct {
	types.ActionBase
	Amount int64 `json:"amount"`
}

type selfMutatingAction struct {
	types.ActionBase
	Amount int64 `json:"amount"`
}

type scratchAction struct {
	types.ActionBase
	Note string `json:"note"`
}

// corruptScratchAction is declared unsynchronized but mutates checksummed
// state, exactly what the modify-history checker exists to catch.
type corruptScratchAction struct {
	types.ActionBase
	Amount int64 `json:"amount"`
}

func newRegistry() *action.Registry {
	r := action.NewRegistry()
	action.Register[addAction](r, 1, "check.add",
		types.LeaderSynchronized|types.FollowerSynchronized)
	action.Register[selfMutatingAction](r, 2, "check.self-mutating", types.LeaderSynchronized)
	action.Register[scratchAction](r, 3, "check.scratch", types.FollowerUnsynchronized)
	action.Register[corruptScratchAction](r, 4, "check.corrupt-scratch", types.FollowerUnsynchronized)
	r.Initialize()
	return r
}

type stater interface {
	State() check.State
}

func newLeaderWith(t *testing.T, listeners ...journal.Listener) *journal.Journal {
	t.Helper()
	j := journal.New(journal.Leader, newRegistry(), journal.WithListeners(listeners...))
	assert.NilError(t, j.Setup(&checkModel{}, types.Epoch))
	return j
}

func TestStandardSetStaysActiveOnCleanRun(t *testing.T) {
	set := check.StandardSet()
	assert.Equal(t, len(set), 8)
	j := newLeaderWith(t, set...)

	_, err := j.StageTick()
	assert.NilError(t, err)
	_, _, err = j.StageAction(&addAction{Amount: 5})
	assert.NilError(t, err)
	_, _, err = j.StageAction(&addAction{Amount: -1}) // rejected, still clean
	assert.NilError(t, err)
	_, err = j.Commit(j.StagedPosition())
	assert.NilError(t, err)
	assert.NilError(t, j.ModifyHistory(func(model types.Model) error {
		model.(*checkModel).Scratch = "replica-local"
		return nil
	}))

	for _, l := range set {
		assert.Equal(t, l.(stater).State(), check.Active, "checker %s", l.Name())
	}
}

func TestOutsideModificationDetected(t *testing.T) {
	c := check.NewOutsideModificationChecker()
	j := newLeaderWith(t, c)

	_, err := j.StageTick()
	assert.NilError(t, err)
	assert.Equal(t, c.State(), check.Active)

	j.StagedModel().(*checkModel).Total = 42

	// The violation surfaces at the next operation boundary; the operation
	// itself is unaffected.
	_, err = j.StageTick()
	assert.NilError(t, err)
	assert.Equal(t, c.State(), check.Disabled)
}

func TestOutsideModificationIgnoresUnchecksummedFields(t *testing.T) {
	c := check.NewOutsideModificationChecker()
	j := newLeaderWith(t, c)

	j.StagedModel().(*checkModel).Scratch = "ui state"
	_, err := j.StageTick()
	assert.NilError(t, err)
	assert.Equal(t, c.State(), check.Active)
}

// A violation quarantines only the checker that saw it: it reports once,
// disables itself, and the rest of the listener set keeps running.
func TestViolationQuarantinesOnlyTheOffendingChecker(t *testing.T) {
	outside := check.NewOutsideModificationChecker()
	cloning := check.NewCloningChecker()
	cs := check.NewChecksumChecker()
	j := newLeaderWith(t, outside, cloning, cs)

	j.StagedModel().(*checkModel).Total = 42
	_, err := j.StageTick()
	assert.NilError(t, err)
	assert.Equal(t, outside.State(), check.Disabled)
	assert.Equal(t, cloning.State(), check.Active)
	assert.Equal(t, cs.State(), check.Active)

	// Further violations are silent: the checker is already disabled and the
	// journal keeps operating.
	j.StagedModel().(*checkModel).Total = 43
	_, err = j.StageTick()
	assert.NilError(t, err)
	assert.Equal(t, outside.State(), check.Disabled)
	assert.Equal(t, cloning.State(), check.Active)
}

func TestPauseSkipsObservationGap(t *testing.T) {
	c := check.NewOutsideModificationChecker()
	j := newLeaderWith(t, c)

	c.Pause()
	assert.Equal(t, c.State(), check.Paused)

	// Mutations during the gap are invisible; unpausing drops the stale
	// reference snapshot instead of comparing across the gap.
	j.StagedModel().(*checkModel).Total = 7
	_, err := j.StageTick()
	assert.NilError(t, err)

	c.Unpause()
	assert.Equal(t, c.State(), check.Active)
	_, err = j.StageTick()
	assert.NilError(t, err)
	assert.Equal(t, c.State(), check.Active)
}

func TestUnpauseDoesNotReviveDisabledChecker(t *testing.T) {
	c := check.NewOutsideModificationChecker()
	j := newLeaderWith(t, c)

	j.StagedModel().(*checkModel).Total = 9
	_, err := j.StageTick()
	assert.NilError(t, err)
	assert.Equal(t, c.State(), check.Disabled)

	c.Pause()
	c.Unpause()
	assert.Equal(t, c.State(), check.Disabled)
}

func TestChecksumCheckerDefersFollowerVerification(t *testing.T) {
	c := check.NewChecksumChecker()
	j := journal.New(journal.Follower, newRegistry(), journal.WithListeners(c))
	assert.NilError(t, j.Setup(&checkModel{}, types.Epoch))

	// An externally asserted checksum may be wrong; that is commit's business,
	// not this checker's.
	wrong := types.Checksum(0xbad)
	assert.NilError(t, j.StageTickExpecting(&wrong))
	assert.Equal(t, c.State(), check.Active)
}

func TestModifyHistoryCheckerDetectsChecksummedMutation(t *testing.T) {
	c := check.NewModifyHistoryChecker()
	j := newLeaderWith(t, c)

	assert.NilError(t, j.ModifyHistory(func(model types.Model) error {
		model.(*checkModel).Total = 1
		return nil
	}))
	assert.Equal(t, c.State(), check.Disabled)
}

func TestModifyHistoryCheckerCoversUnsynchronizedActions(t *testing.T) {
	good := check.NewModifyHistoryChecker()
	j := journal.New(journal.Follower, newRegistry(), journal.WithListeners(good))
	assert.NilError(t, j.Setup(&checkModel{}, types.Epoch))

	_, err := j.ExecuteUnsynchronized(&scratchAction{Note: "fine"})
	assert.NilError(t, err)
	assert.Equal(t, good.State(), check.Active)

	_, err = j.ExecuteUnsynchronized(&corruptScratchAction{Amount: 3})
	assert.NilError(t, err)
	assert.Equal(t, good.State(), check.Disabled)
}

func TestActionImmutabilityChecker(t *testing.T) {
	c := check.NewActionImmutabilityChecker()
	j := newLeaderWith(t, c)

	_, _, err := j.StageAction(&addAction{Amount: 2})
	assert.NilError(t, err)
	assert.Equal(t, c.State(), check.Active)

	_, _, err = j.StageAction(&selfMutatingAction{Amount: 2})
	assert.NilError(t, err)
	assert.Equal(t, c.State(), check.Disabled)
}

// nondetModel hides execution history in an unserialized field, so replaying
// from a serialized snapshot diverges from the first execution.
type nondetModel struct {
	Value   int64 `json:"value"`
	applied int64
}

func (m *nondetModel) Tick() {
	m.applied++
	m.Value += m.applied
}

func (m *nondetModel) Execute(types.Action, bool) types.ActionResult {
	return types.UnknownError
}

func TestRerunCheckerFlagsHiddenState(t *testing.T) {
	c := check.NewRerunChecker()
	j := journal.New(journal.Leader, newRegistry(), journal.WithListeners(c))
	assert.NilError(t, j.Setup(&nondetModel{}, types.Epoch))

	// The first tick reruns identically from the zero snapshot.
	_, err := j.StageTick()
	assert.NilError(t, err)
	assert.Equal(t, c.State(), check.Active)

	// The second tick depends on the hidden counter and diverges on rerun.
	_, err = j.StageTick()
	assert.NilError(t, err)
	assert.Equal(t, c.State(), check.Disabled)
}

// leakyInt serializes its value but ignores it when deserializing, simulating
// a field that does not survive a round trip.
type leakyInt int64

func (l leakyInt) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(l), 10)), nil
}

func (l *leakyInt) UnmarshalJSON([]byte) error { return nil }

type leakyModel struct {
	Counter leakyInt `json:"counter"`
}

func (m *leakyModel) Tick() { m.Counter++ }

func (m *leakyModel) Execute(types.Action, bool) types.ActionResult {
	return types.UnknownError
}

func TestCloningCheckerDetectsLossyRoundTrip(t *testing.T) {
	c := check.NewCloningChecker()
	j := journal.New(journal.Leader, newRegistry(), journal.WithListeners(c))
	assert.NilError(t, j.Setup(&leakyModel{}, types.Epoch))

	_, err := j.StageTick()
	assert.NilError(t, err)
	assert.Equal(t, c.State(), check.Disabled)
}

func TestCommitCheckerLocalizesCheckpointDrift(t *testing.T) {
	c := check.NewCommitChecker()
	j := newLeaderWith(t, c)

	_, err := j.StageTick()
	assert.NilError(t, err)
	assert.Equal(t, c.State(), check.Active)

	// Leak state into the checkpoint so commit's replay disagrees with the
	// recorded checksum. The commit checker replays the pending log from the
	// corrupted checkpoint and flags the divergence from the staged model.
	j.CheckpointModel().(*checkModel).Total = 999
	res, err := j.Commit(j.StagedPosition())
	assert.NilError(t, err)
	assert.False(t, res.HasConflict)
	assert.Equal(t, c.State(), check.Disabled)
}

func TestFailingActionWarningListenerNeverDisables(t *testing.T) {
	c := check.NewFailingActionWarningListener()
	j := newLeaderWith(t, c)

	result, _, err := j.StageAction(&addAction{Amount: -1})
	assert.NilError(t, err)
	assert.Equal(t, result, types.OperationNotPermitted)
	assert.Equal(t, c.State(), check.Active)
}
