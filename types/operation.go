package types

import "fmt"

// Checksum is a 32-bit reduction of the deterministic serialization of a
// model's checksummed fields. Equal state produces equal checksums on every
// process and platform running the same data-schema version.
type Checksum uint32

func (c Checksum) String() string { return fmt.Sprintf("%08x", uint32(c)) }

// OperationKind tags the two kinds of journal operations.
type OperationKind uint8

const (
	// OpTick advances simulation time by one unit. No payload.
	OpTick OperationKind = iota
	// OpAction applies a registered action to the model.
	OpAction
)

func (k OperationKind) String() string {
	switch k {
	case OpTick:
		return "tick"
	case OpAction:
		return "action"
	default:
		return "invalid"
	}
}

// Model is the simulation state a journal drives. The journal does not know
// the model's internals, only that it ticks and executes deterministically
// and serializes through the codec package.
//
// Tick and Execute must be deterministic: given byte-identical starting
// state, they produce byte-identical resulting state on every replica. When
// commit is false, Execute validates only and must not mutate the model.
type Model interface {
	Tick()
	Execute(action Action, commit bool) ActionResult
}
