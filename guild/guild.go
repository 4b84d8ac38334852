// Package guild is the reference model shipped with the SDK: a guild roster
// with role-tiered members, driven entirely through the journal pipeline. It
// exists to exercise the framework end to end; real guild business logic
// lives in game code, not here.
package guild

import (
	"strconv"

	"pkg.world.dev/lockstep/types"
)

// Role is a member's permission tier within the guild.
type Role int32

const (
	RoleLeader Role = iota + 1
	RoleMiddleTier
	RoleLowTier
)

func (r Role) String() string {
	switch r {
	case RoleLeader:
		return "Leader"
	case RoleMiddleTier:
		return "MiddleTier"
	case RoleLowTier:
		return "LowTier"
	default:
		return "InvalidRole"
	}
}

type Member struct {
	PlayerID     types.PlayerID `json:"playerId"`
	DisplayName  string         `json:"displayName"`
	Role         Role           `json:"role"`
	JoinedAtTick int64          `json:"joinedAtTick"`
	// Online presence is replica-local and excluded from checksums.
	Online bool `json:"online" lockstep:"nochecksum"`
}

// Guild is the checksummed simulation state. Map keys are decimal player IDs
// so the serialized form is stable.
type Guild struct {
	Name        string             `json:"name"`
	Epoch       int64              `json:"epoch"`
	CurrentTick int64              `json:"currentTick"`
	Members     map[string]*Member `json:"members"`
	// ChatNotice is transient UI state, maintained outside the synchronized
	// timeline.
	ChatNotice string `json:"chatNotice" lockstep:"nochecksum"`
}

var _ types.Model = &Guild{}

func New(name string) *Guild {
	return &Guild{
		Name:    name,
		Members: map[string]*Member{},
	}
}

func (g *Guild) Tick() {
	g.CurrentTick++
}

// Execute runs the validate-then-commit protocol for every guild action.
// Validation never mutates; mutation happens only when commit is true and
// validation succeeded.
func (g *Guild) Execute(a types.Action, commit bool) types.ActionResult {
	switch act := a.(type) {
	case *AddMember:
		return g.addMember(act, commit)
	case *RemoveMember:
		return g.removeMember(act, commit)
	case *EditRole:
		return g.editRole(act, commit)
	case *Rename:
		return g.rename(act, commit)
	case *SetChatNotice:
		return g.setChatNotice(act, commit)
	default:
		return types.UnknownError
	}
}

func (g *Guild) Member(id types.PlayerID) (*Member, bool) {
	m, ok := g.Members[memberKey(id)]
	return m, ok
}

func (g *Guild) addMember(a *AddMember, commit bool) types.ActionResult {
	if !g.invokerIsLeaderOrServer(a.InvokingPlayer()) {
		return types.OperationNotPermitted
	}
	if _, exists := g.Members[memberKey(a.TargetID)]; exists {
		return types.OperationNotPermitted
	}
	if !commit {
		return types.Success
	}
	g.Members[memberKey(a.TargetID)] = &Member{
		PlayerID:     a.TargetID,
		DisplayName:  a.DisplayName,
		Role:         a.Role,
		JoinedAtTick: g.CurrentTick,
	}
	return types.Success
}

func (g *Guild) removeMember(a *RemoveMember, commit bool) types.ActionResult {
	if _, exists := g.Members[memberKey(a.TargetID)]; !exists {
		return types.NoSuchMember
	}
	// Members may remove themselves (leave); anything else takes the leader
	// role or the server.
	if a.InvokingPlayer() != a.TargetID && !g.invokerIsLeaderOrServer(a.InvokingPlayer()) {
		return types.OperationNotPermitted
	}
	if !commit {
		return types.Success
	}
	delete(g.Members, memberKey(a.TargetID))
	return types.Success
}

func (g *Guild) editRole(a *EditRole, commit bool) types.ActionResult {
	target, exists := g.Members[memberKey(a.TargetID)]
	if !exists {
		return types.NoSuchMember
	}
	if !g.invokerIsLeaderOrServer(a.InvokingPlayer()) {
		return types.OperationNotPermitted
	}
	if !commit {
		return types.Success
	}
	target.Role = a.NewRole
	return types.Success
}

func (g *Guild) rename(a *Rename, commit bool) types.ActionResult {
	if a.KnownEpoch != g.Epoch {
		return types.OperationStale
	}
	if !g.invokerIsLeaderOrServer(a.InvokingPlayer()) {
		return types.OperationNotPermitted
	}
	if !commit {
		return types.Success
	}
	g.Name = a.NewName
	g.Epoch++
	return types.Success
}

func (g *Guild) setChatNotice(a *SetChatNotice, commit bool) types.ActionResult {
	if _, exists := g.Members[memberKey(a.InvokingPlayer())]; !exists && a.InvokingPlayer() != types.NoPlayer {
		return types.NoSuchMember
	}
	if !commit {
		return types.Success
	}
	g.ChatNotice = a.Notice
	return types.Success
}

// invokerIsLeaderOrServer reports whether the invoker holds the guild leader
// role; server-issued actions (no player) always pass.
func (g *Guild) invokerIsLeaderOrServer(invoker types.PlayerID) bool {
	if invoker == types.NoPlayer {
		return true
	}
	m, ok := g.Members[memberKey(invoker)]
	return ok && m.Role == RoleLeader
}

func memberKey(id types.PlayerID) string {
	return strconv.FormatUint(uint64(id), 10)
}
