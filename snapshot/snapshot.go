// Package snapshot persists checkpoint state so a diverged or reconnecting
// follower can be brought back in sync from an authoritative copy instead of
// replaying the whole timeline.
package snapshot

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"pkg.world.dev/lockstep/codec"
	"pkg.world.dev/lockstep/journal"
	"pkg.world.dev/lockstep/types"
)

var ErrNotFound = eris.New("no snapshot stored under this key")

// Snapshot is a serialized checkpoint: the model state at a position plus the
// checksum confirmed for it.
type Snapshot struct {
	Position types.Position  `json:"position"`
	Checksum types.Checksum  `json:"checksum"`
	State    json.RawMessage `json:"state"`
	TakenAt  time.Time       `json:"takenAt"`
}

// Store persists snapshots keyed by session.
type Store interface {
	Save(ctx context.Context, key string, snap *Snapshot) error
	Load(ctx context.Context, key string) (*Snapshot, error)
}

// Take captures the journal's checkpoint (never the speculative staged tip).
func Take(j *journal.Journal) (*Snapshot, error) {
	state, err := codec.Encode(j.CheckpointModel())
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Position: j.CheckpointPosition(),
		Checksum: j.CheckpointChecksum(),
		State:    state,
		TakenAt:  time.Now().UTC(),
	}, nil
}

// Restore decodes the snapshot state into a fresh instance of prototype's
// type and returns it; prototype itself is not touched.
func (s *Snapshot) Restore(prototype types.Model) (types.Model, error) {
	fresh, err := codec.NewInstance(prototype)
	if err != nil {
		return nil, err
	}
	if err := codec.DecodeInto(s.State, fresh); err != nil {
		return nil, err
	}
	return fresh.(types.Model), nil
}

// redisSnapshotKey maps a session key to the redis key holding its snapshot.
func redisSnapshotKey(key string) string {
	return "LOCKSTEP:SNAPSHOT:" + key
}
