// Package checksum turns model state into the 32-bit consistency values the
// journal and its checkers compare. Serialization is canonical and restricted
// to checksummed fields, so equal state always reduces to an equal checksum.
package checksum

import (
	"bytes"

	"github.com/cespare/xxhash/v2"

	"pkg.world.dev/lockstep/codec"
	"pkg.world.dev/lockstep/types"
)

// Buffer holds the serialized form of the last Serialize call. Buffers are
// reused across calls to avoid per-tick allocation; each owner (journal or
// listener) keeps its own.
type Buffer struct {
	bz []byte
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Bytes returns the contents written by the last Serialize. The slice is
// owned by the buffer and valid until the next Serialize.
func (b *Buffer) Bytes() []byte { return b.bz }

func (b *Buffer) Len() int { return len(b.bz) }

// Serialize writes the canonical, checksum-filtered form of model into b.
func Serialize(b *Buffer, model any) error {
	bz, err := codec.Canonical(model)
	if err != nil {
		return err
	}
	b.bz = append(b.bz[:0], bz...)
	return nil
}

// Compute serializes model into b and reduces the bytes to a 32-bit checksum.
func Compute(b *Buffer, model any) (types.Checksum, error) {
	if err := Serialize(b, model); err != nil {
		return 0, err
	}
	return Reduce(b.bz), nil
}

// Reduce hashes raw serialized bytes down to a checksum.
func Reduce(bz []byte) types.Checksum {
	return types.Checksum(uint32(xxhash.Sum64(bz))) //nolint:gosec // intentional truncation
}

// ContentsEqual reports byte-exact equality of two serialized buffers. This
// is the ground truth for "no divergence", stronger than checksum equality,
// and is what the checkers use when building diagnostic diffs.
func ContentsEqual(a, b *Buffer) bool {
	return bytes.Equal(a.bz, b.bz)
}
