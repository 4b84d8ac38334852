// Package replication packages journal operations into batch update messages
// on the leader side and replays them against a follower journal on the
// other, surfacing checksum mismatch diagnostics to a pluggable recovery
// policy. It implements the logical tick/action/checksum protocol only; the
// transport carrying the messages is out of scope.
package replication

import (
	"github.com/goccy/go-json"

	"pkg.world.dev/lockstep/types"
)

// OperationEnvelope is one tick or action on the wire. Payload is the
// schema-versioned serialized action, absent for ticks. Checksum is only
// populated when the session runs in per-operation checksum mode; the common
// path carries a single final checksum per batch.
type OperationEnvelope struct {
	Kind     types.OperationKind `json:"kind"`
	TypeCode int32               `json:"typeCode,omitempty"`
	Invoker  types.PlayerID      `json:"invoker,omitempty"`
	Payload  json.RawMessage     `json:"payload,omitempty"`
	Checksum *types.Checksum     `json:"checksum,omitempty"`
}

// BatchUpdate is the message a leader produces for its followers: a
// contiguous run of operations starting exactly at the follower's staged
// position, plus the authoritative checksum of the state after the last one.
type BatchUpdate struct {
	SessionID      string              `json:"sessionId"`
	StartTick      int32               `json:"startTick"`
	StartOperation int32               `json:"startOperation"`
	Operations     []OperationEnvelope `json:"operations"`
	FinalChecksum  types.Checksum      `json:"finalChecksum"`
}

// StartPosition returns the staged position a follower must be at to apply
// this batch.
func (b *BatchUpdate) StartPosition() types.Position {
	return types.NewPosition(b.StartTick, b.StartOperation, 0)
}
