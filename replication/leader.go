package replication

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"pkg.world.dev/lockstep/codec"
	"pkg.world.dev/lockstep/journal"
	"pkg.world.dev/lockstep/log"
	"pkg.world.dev/lockstep/statsd"
	"pkg.world.dev/lockstep/types"
)

var (
	ErrRoleMismatch   = eris.New("session role does not match journal role")
	ErrNothingToFlush = eris.New("no operations staged since the last flush")
)

// LeaderSession drives an authoritative journal and packages everything it
// stages into batch updates for followers.
type LeaderSession struct {
	id      string
	journal *journal.Journal
	logger  zerolog.Logger

	perOpChecksums bool
	pending        []OperationEnvelope
	flushedPos     types.Position
}

type LeaderOption func(*LeaderSession)

// WithPerOperationChecksums puts every operation's checksum on the wire
// instead of only the batch's final one. Costs wire bytes, buys followers
// per-operation fault localization at commit.
func WithPerOperationChecksums() LeaderOption {
	return func(s *LeaderSession) { s.perOpChecksums = true }
}

func WithLeaderLogger(logger zerolog.Logger) LeaderOption {
	return func(s *LeaderSession) { s.logger = logger }
}

// NewLeaderSession wraps a set-up leader journal. The session owns batch
// assembly; the journal keeps owning the models.
func NewLeaderSession(j *journal.Journal, opts ...LeaderOption) (*LeaderSession, error) {
	if j.Role() != journal.Leader {
		return nil, eris.Wrapf(ErrRoleMismatch, "journal role is %s", j.Role())
	}
	s := &LeaderSession{
		id:         uuid.NewString(),
		journal:    j,
		logger:     zerologlog.Logger,
		flushedPos: j.StagedPosition(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("session", s.id).Logger()
	return s, nil
}

func (s *LeaderSession) ID() string { return s.id }

func (s *LeaderSession) Journal() *journal.Journal { return s.journal }

// Tick stages one tick and queues it for the next batch.
func (s *LeaderSession) Tick() (types.Checksum, error) {
	start := time.Now()
	cs, err := s.journal.StageTick()
	if err != nil {
		return 0, err
	}
	statsd.EmitStageStat(start, "tick")
	env := OperationEnvelope{Kind: types.OpTick}
	if s.perOpChecksums {
		env.Checksum = &cs
	}
	s.pending = append(s.pending, env)
	return cs, nil
}

// Submit stages an action on behalf of invoker and queues it for the next
// batch. A non-success result is a normal game-logic rejection: the operation
// is still part of the replicated timeline.
func (s *LeaderSession) Submit(invoker types.PlayerID, a types.Action) (types.ActionResult, error) {
	start := time.Now()
	spec := s.journal.Registry().SpecOf(a)
	a.SetInvokingPlayer(invoker)
	payload, err := codec.Encode(a)
	if err != nil {
		return types.UnknownError, err
	}
	result, cs, err := s.journal.StageAction(a)
	if err != nil {
		return types.UnknownError, err
	}
	statsd.EmitStageStat(start, "action")
	env := OperationEnvelope{
		Kind:     types.OpAction,
		TypeCode: spec.Code,
		Invoker:  invoker,
		Payload:  payload,
	}
	if s.perOpChecksums {
		env.Checksum = &cs
	}
	s.pending = append(s.pending, env)
	return result, nil
}

// Flush commits the leader journal up to its staged tip and returns the batch
// covering everything staged since the previous flush.
func (s *LeaderSession) Flush() (*BatchUpdate, error) {
	if len(s.pending) == 0 {
		return nil, ErrNothingToFlush
	}
	final, ok := s.journal.StagedChecksum()
	if !ok {
		return nil, eris.New("leader journal has no staged checksum")
	}
	for _, entry := range s.journal.PendingOperations() {
		log.Operation(&s.logger, zerolog.TraceLevel, s.journal.Registry(), entry)
	}
	start := time.Now()
	if _, err := s.journal.Commit(s.journal.StagedPosition()); err != nil {
		return nil, err
	}
	statsd.EmitCommitStat(start)

	batch := &BatchUpdate{
		SessionID:      s.id,
		StartTick:      s.flushedPos.Tick,
		StartOperation: s.flushedPos.Operation,
		Operations:     s.pending,
		FinalChecksum:  final,
	}
	s.pending = nil
	s.flushedPos = s.journal.StagedPosition()
	s.logger.Debug().
		Int("operations", len(batch.Operations)).
		Stringer("finalChecksum", batch.FinalChecksum).
		Msg("flushed batch update")
	return batch, nil
}
