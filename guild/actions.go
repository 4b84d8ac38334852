package guild

import (
	"pkg.world.dev/lockstep/action"
	"pkg.world.dev/lockstep/types"
)

// Wire type-codes for the guild actions. Codes are part of the protocol and
// must never be reused or renumbered.
const (
	CodeAddMember     int32 = 1
	CodeRemoveMember  int32 = 2
	CodeEditRole      int32 = 3
	CodeRename        int32 = 4
	CodeSetChatNotice int32 = 5
)

type AddMember struct {
	types.ActionBase
	TargetID    types.PlayerID `json:"targetId"`
	DisplayName string         `json:"displayName"`
	Role        Role           `json:"role"`
}

type RemoveMember struct {
	types.ActionBase
	TargetID types.PlayerID `json:"targetId"`
}

type EditRole struct {
	types.ActionBase
	TargetID types.PlayerID `json:"targetId"`
	NewRole  Role           `json:"newRole"`
}

// Rename carries the epoch the invoker believes the guild is at; a mismatch
// means the rename raced another one and is rejected as stale.
type Rename struct {
	types.ActionBase
	NewName    string `json:"newName"`
	KnownEpoch int64  `json:"knownEpoch"`
}

// SetChatNotice only touches non-checksummed state and runs outside the
// synchronized timeline.
type SetChatNotice struct {
	types.ActionBase
	Notice string `json:"notice"`
}

// RegisterActions adds every guild action to the registry. Call once during
// process startup, before Initialize.
func RegisterActions(r *action.Registry) {
	synchronized := types.LeaderSynchronized | types.FollowerSynchronized
	action.Register[AddMember](r, CodeAddMember, "guild.member-add", synchronized,
		action.WithAttribute("category", "membership"))
	action.Register[RemoveMember](r, CodeRemoveMember, "guild.member-remove", synchronized,
		action.WithAttribute("category", "membership"))
	action.Register[EditRole](r, CodeEditRole, "guild.member-edit-role", synchronized,
		action.WithAttribute("category", "membership"))
	action.Register[Rename](r, CodeRename, "guild.rename", synchronized)
	action.Register[SetChatNotice](r, CodeSetChatNotice, "guild.set-chat-notice",
		types.FollowerUnsynchronized)
}
