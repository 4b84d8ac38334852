package snapshot_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"pkg.world.dev/lockstep/action"
	"pkg.world.dev/lockstep/assert"
	"pkg.world.dev/lockstep/checksum"
	"pkg.world.dev/lockstep/journal"
	"pkg.world.dev/lockstep/snapshot"
	"pkg.world.dev/lockstep/types"
)

type worldModel struct {
	TickCount int32 `json:"tickCount"`
	Score     int64 `json:"score"`
}

func (m *worldModel) Tick() { m.TickCount++ }

func (m *worldModel) Execute(a types.Action, commit bool) types.ActionResult {
	sc, ok := a.(*scoreAction)
	if !ok {
		return types.UnknownError
	}
	if commit {
		m.Score += sc.Points
	}
	return types.Success
}

type scoreAction struct {
	types.ActionBase
	Points int64 `json:"points"`
}

func newJournal(t *testing.T) *journal.Journal {
	t.Helper()
	r := action.NewRegistry()
	action.Register[scoreAction](r, 1, "world.score",
		types.LeaderSynchronized|types.FollowerSynchronized)
	r.Initialize()
	j := journal.New(journal.Leader, r)
	assert.NilError(t, j.Setup(&worldModel{}, types.Epoch))
	return j
}

func TestTakeCapturesCheckpointNotStagedTip(t *testing.T) {
	j := newJournal(t)
	_, err := j.StageTick()
	assert.NilError(t, err)
	_, _, err = j.StageAction(&scoreAction{Points: 10})
	assert.NilError(t, err)
	committed := j.StagedPosition()
	_, err = j.Commit(committed)
	assert.NilError(t, err)

	// Speculative operations past the checkpoint must not leak into the
	// snapshot.
	_, _, err = j.StageAction(&scoreAction{Points: 99})
	assert.NilError(t, err)

	snap, err := snapshot.Take(j)
	assert.NilError(t, err)
	assert.Equal(t, snap.Position, committed)
	assert.Equal(t, snap.Checksum, j.CheckpointChecksum())

	restored, err := snap.Restore(&worldModel{})
	assert.NilError(t, err)
	assert.Equal(t, restored.(*worldModel).Score, int64(10))

	buf := checksum.NewBuffer()
	cs, err := checksum.Compute(buf, restored)
	assert.NilError(t, err)
	assert.Equal(t, cs, snap.Checksum)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	j := newJournal(t)
	_, err := j.StageTick()
	assert.NilError(t, err)
	_, err = j.Commit(j.StagedPosition())
	assert.NilError(t, err)

	snap, err := snapshot.Take(j)
	assert.NilError(t, err)
	assert.NilError(t, store.Save(ctx, "session-1", snap))

	loaded, err := store.Load(ctx, "session-1")
	assert.NilError(t, err)
	assert.Equal(t, loaded.Position, snap.Position)
	assert.Equal(t, loaded.Checksum, snap.Checksum)

	_, err = store.Load(ctx, "session-2")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
}

func TestMemoryStoreDoesNotAliasCallerState(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	j := newJournal(t)

	snap, err := snapshot.Take(j)
	assert.NilError(t, err)
	assert.NilError(t, store.Save(ctx, "session-1", snap))

	// Mutating the caller's copy after Save must not affect the stored one.
	snap.Checksum = 0xffffffff
	loaded, err := store.Load(ctx, "session-1")
	assert.NilError(t, err)
	assert.Equal(t, loaded.Checksum, j.CheckpointChecksum())
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := snapshot.NewRedisStore(client)

	j := newJournal(t)
	_, _, err := j.StageAction(&scoreAction{Points: 4})
	assert.NilError(t, err)
	_, err = j.Commit(j.StagedPosition())
	assert.NilError(t, err)

	snap, err := snapshot.Take(j)
	assert.NilError(t, err)
	assert.NilError(t, store.Save(ctx, "session-1", snap))

	loaded, err := store.Load(ctx, "session-1")
	assert.NilError(t, err)
	assert.Equal(t, loaded.Position, snap.Position)
	assert.Equal(t, loaded.Checksum, snap.Checksum)
	restored, err := loaded.Restore(&worldModel{})
	assert.NilError(t, err)
	assert.Equal(t, restored.(*worldModel).Score, int64(4))

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
}
