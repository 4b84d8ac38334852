package snapshot

import (
	"context"

	"github.com/rotisserie/eris"

	"pkg.world.dev/lockstep/codec"
)

var _ Store = &MemoryStore{}

// MemoryStore is a volatile Store for tests and single-process setups.
// Snapshots round-trip through serialization so stored state is never aliased
// to the caller's.
type MemoryStore struct {
	snapshots map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: map[string][]byte{}}
}

func (m *MemoryStore) Save(_ context.Context, key string, snap *Snapshot) error {
	bz, err := codec.Encode(snap)
	if err != nil {
		return err
	}
	m.snapshots[key] = bz
	return nil
}

func (m *MemoryStore) Load(_ context.Context, key string) (*Snapshot, error) {
	bz, ok := m.snapshots[key]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "key %q", key)
	}
	snap, err := codec.Decode[Snapshot](bz)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
