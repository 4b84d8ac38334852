package types

// PlayerID identifies the player that originated an action. Zero means the
// action was originated by the server itself.
type PlayerID uint64

// NoPlayer is the originator of server-issued actions.
const NoPlayer PlayerID = 0

// ExecuteFlags is a bitset declaring where an action type may be enqueued and
// applied. Every registered action type must declare at least one flag.
type ExecuteFlags uint8

const (
	// LeaderSynchronized actions originate on the authoritative timeline and
	// are replicated to followers.
	LeaderSynchronized ExecuteFlags = 1 << iota
	// FollowerSynchronized actions may be applied by followers as part of the
	// replicated timeline.
	FollowerSynchronized
	// FollowerUnsynchronized actions run outside the replicated timeline and
	// must not touch checksummed state.
	FollowerUnsynchronized
)

func (f ExecuteFlags) Has(flag ExecuteFlags) bool { return f&flag != 0 }

func (f ExecuteFlags) String() string {
	if f == 0 {
		return "none"
	}
	s := ""
	appendFlag := func(flag ExecuteFlags, name string) {
		if !f.Has(flag) {
			return
		}
		if s != "" {
			s += "|"
		}
		s += name
	}
	appendFlag(LeaderSynchronized, "LeaderSynchronized")
	appendFlag(FollowerSynchronized, "FollowerSynchronized")
	appendFlag(FollowerUnsynchronized, "FollowerUnsynchronized")
	return s
}

// Action is a serializable command mutating a Model. Concrete actions are
// plain structs that embed ActionBase and are registered with an action
// registry before use.
//
// Actions must be immutable inputs: Execute implementations may read action
// fields but never write them.
type Action interface {
	// InvokingPlayer returns the originator of this action. It is set by the
	// framework before execution, not by game code.
	InvokingPlayer() PlayerID
	SetInvokingPlayer(id PlayerID)
}

// ActionBase carries the originator identity common to all actions. Embed it
// as the first field of every concrete action struct.
type ActionBase struct {
	InvokingPlayerID PlayerID `json:"invokingPlayerId"`
}

func (b *ActionBase) InvokingPlayer() PlayerID      { return b.InvokingPlayerID }
func (b *ActionBase) SetInvokingPlayer(id PlayerID) { b.InvokingPlayerID = id }
