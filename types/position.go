package types

import "fmt"

// Position identifies a point on the deterministic timeline. Positions are
// totally ordered by (Tick, Operation, Step); Step distinguishes sub-phases
// within a single operation.
type Position struct {
	Tick      int32 `json:"tick"`
	Operation int32 `json:"operation"`
	Step      int32 `json:"step"`
}

// Epoch is the position of a freshly set up timeline.
var Epoch = Position{}

func NewPosition(tick, operation, step int32) Position {
	return Position{Tick: tick, Operation: operation, Step: step}
}

// NextTick returns the position of the first operation of the next tick.
func (p Position) NextTick() Position {
	return Position{Tick: p.Tick + 1}
}

// NextAction returns the position of the next operation within the same tick.
func (p Position) NextAction() Position {
	return Position{Tick: p.Tick, Operation: p.Operation + 1}
}

// Cmp returns -1, 0 or 1 depending on whether p orders before, equal to or
// after other.
func (p Position) Cmp(other Position) int {
	switch {
	case p.Tick != other.Tick:
		return cmpInt32(p.Tick, other.Tick)
	case p.Operation != other.Operation:
		return cmpInt32(p.Operation, other.Operation)
	default:
		return cmpInt32(p.Step, other.Step)
	}
}

func (p Position) Before(other Position) bool { return p.Cmp(other) < 0 }

func (p Position) After(other Position) bool { return p.Cmp(other) > 0 }

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.Tick, p.Operation, p.Step)
}

func cmpInt32(a, b int32) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
