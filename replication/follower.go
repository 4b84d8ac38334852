package replication

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"pkg.world.dev/lockstep/journal"
	"pkg.world.dev/lockstep/log"
	"pkg.world.dev/lockstep/statsd"
	"pkg.world.dev/lockstep/types"
)

var (
	ErrOutOfSequence   = eris.New("batch does not start at the follower's staged position")
	ErrUnknownTypeCode = eris.New("batch carries an unregistered action type-code")
	ErrDiverged        = eris.New("follower diverged from leader; session must disconnect")
	ErrResyncRequired  = eris.New("follower diverged from leader; session must resynchronize")
)

// Decision is what a recovery policy wants done about a commit conflict.
type Decision uint8

const (
	// Disconnect tears the session down; the caller surfaces ErrDiverged.
	Disconnect Decision = iota
	// Resync keeps the session object but demands a fresh authoritative
	// snapshot; the caller surfaces ErrResyncRequired.
	Resync
	// Ignore records the conflict and keeps applying batches. Only for
	// diagnostics tooling; the follower state is no longer trustworthy.
	Ignore
)

func (d Decision) String() string {
	switch d {
	case Disconnect:
		return "Disconnect"
	case Resync:
		return "Resync"
	case Ignore:
		return "Ignore"
	default:
		return "InvalidDecision"
	}
}

// RecoveryPolicy decides how a follower session reacts to a commit conflict.
// The journal itself never picks a policy; divergence handling belongs to the
// layer that owns the connection.
type RecoveryPolicy interface {
	OnConflict(res journal.CommitResult) Decision
}

// DisconnectPolicy is the default: any divergence closes the session.
type DisconnectPolicy struct{}

func (DisconnectPolicy) OnConflict(journal.CommitResult) Decision { return Disconnect }

// FollowerSession replays leader batches against a replica journal and
// verifies them at commit.
type FollowerSession struct {
	id      string
	journal *journal.Journal
	policy  RecoveryPolicy
	logger  zerolog.Logger
}

type FollowerOption func(*FollowerSession)

func WithRecoveryPolicy(p RecoveryPolicy) FollowerOption {
	return func(s *FollowerSession) { s.policy = p }
}

func WithFollowerLogger(logger zerolog.Logger) FollowerOption {
	return func(s *FollowerSession) { s.logger = logger }
}

func NewFollowerSession(j *journal.Journal, opts ...FollowerOption) (*FollowerSession, error) {
	if j.Role() != journal.Follower {
		return nil, eris.Wrapf(ErrRoleMismatch, "journal role is %s", j.Role())
	}
	s := &FollowerSession{
		id:      uuid.NewString(),
		journal: j,
		policy:  DisconnectPolicy{},
		logger:  zerologlog.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("session", s.id).Logger()
	return s, nil
}

func (s *FollowerSession) ID() string { return s.id }

func (s *FollowerSession) Journal() *journal.Journal { return s.journal }

// Apply stages every operation in the batch and commits up to its end,
// verifying the leader's checksums. Batches must arrive in strictly
// increasing, gap-free position order: a batch that does not start exactly at
// the journal's staged position is rejected with ErrOutOfSequence and the
// session should be closed.
//
// On a verified conflict the commit result (with the suspect operation range)
// is returned alongside the error selected by the recovery policy.
func (s *FollowerSession) Apply(batch *BatchUpdate) (journal.CommitResult, error) {
	if batch.StartPosition() != s.journal.StagedPosition() {
		return journal.CommitResult{}, eris.Wrapf(ErrOutOfSequence,
			"batch starts at %s, follower staged at %s", batch.StartPosition(), s.journal.StagedPosition())
	}
	start := time.Now()
	for i, env := range batch.Operations {
		expected := env.Checksum
		if i == len(batch.Operations)-1 && expected == nil {
			expected = &batch.FinalChecksum
		}
		switch env.Kind {
		case types.OpTick:
			if err := s.journal.StageTickExpecting(expected); err != nil {
				return journal.CommitResult{}, err
			}
		case types.OpAction:
			spec, ok := s.journal.Registry().LookupCode(env.TypeCode)
			if !ok {
				return journal.CommitResult{}, eris.Wrapf(ErrUnknownTypeCode, "type-code %d", env.TypeCode)
			}
			a, err := spec.Decode(env.Payload)
			if err != nil {
				return journal.CommitResult{}, err
			}
			a.SetInvokingPlayer(env.Invoker)
			if _, err := s.journal.StageActionExpecting(a, expected); err != nil {
				return journal.CommitResult{}, err
			}
		default:
			return journal.CommitResult{}, eris.Errorf("invalid operation kind %d", env.Kind)
		}
	}
	statsd.EmitStageStat(start, "batch")

	commitStart := time.Now()
	res, err := s.journal.Commit(s.journal.StagedPosition())
	if err != nil {
		return res, err
	}
	statsd.EmitCommitStat(commitStart)
	if !res.HasConflict {
		return res, nil
	}

	statsd.EmitConflict()
	log.Conflict(&s.logger, res)
	decision := s.policy.OnConflict(res)
	s.logger.Warn().Stringer("decision", decision).Msg("applying conflict recovery policy")
	switch decision {
	case Resync:
		return res, ErrResyncRequired
	case Ignore:
		return res, nil
	default:
		return res, ErrDiverged
	}
}
