// Package lockstep wires the journal, checker set, replication sessions and
// snapshot store into ready-to-use leader and follower endpoints. The
// subpackages stay independently usable; this facade only assembles them.
package lockstep

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"pkg.world.dev/lockstep/action"
	"pkg.world.dev/lockstep/journal"
	"pkg.world.dev/lockstep/journal/check"
	"pkg.world.dev/lockstep/log"
	"pkg.world.dev/lockstep/replication"
	"pkg.world.dev/lockstep/snapshot"
	"pkg.world.dev/lockstep/types"
)

var ErrSnapshotChecksumMismatch = eris.New("restored snapshot does not reproduce its recorded checksum")

type options struct {
	logger         zerolog.Logger
	startPos       types.Position
	debugChecks    bool
	perOpChecksums bool
	listeners      []journal.Listener
}

type Option func(*options)

// WithLogger sets the logger every assembled component derives from.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithStartPosition starts the timeline somewhere other than the epoch.
func WithStartPosition(pos types.Position) Option {
	return func(o *options) { o.startPos = pos }
}

// WithDebugChecks attaches the full consistency checker set to the journal.
func WithDebugChecks() Option {
	return func(o *options) { o.debugChecks = true }
}

// WithPerOperationChecksums makes leader batches carry a checksum per
// operation instead of only the final one.
func WithPerOperationChecksums() Option {
	return func(o *options) { o.perOpChecksums = true }
}

// WithListeners attaches extra listeners alongside any debug checker set.
func WithListeners(listeners ...journal.Listener) Option {
	return func(o *options) { o.listeners = append(o.listeners, listeners...) }
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   zerologlog.Logger,
		startPos: types.Epoch,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func buildJournal(role journal.Role, registry *action.Registry, model types.Model, o options) (*journal.Journal, error) {
	listeners := o.listeners
	if o.debugChecks {
		listeners = append(check.StandardSet(), listeners...)
	}
	j := journal.New(role, registry,
		journal.WithLogger(o.logger),
		journal.WithListeners(listeners...),
	)
	if err := j.Setup(model, o.startPos); err != nil {
		return nil, err
	}
	log.Actions(j.Logger(), registry, zerolog.DebugLevel)
	return j, nil
}

// NewLeader sets up an authoritative journal over model and wraps it in a
// leader session. The registry must be initialized; the session takes
// ownership of model.
func NewLeader(registry *action.Registry, model types.Model, opts ...Option) (*replication.LeaderSession, error) {
	o := buildOptions(opts)
	j, err := buildJournal(journal.Leader, registry, model, o)
	if err != nil {
		return nil, err
	}
	leaderOpts := []replication.LeaderOption{replication.WithLeaderLogger(o.logger)}
	if o.perOpChecksums {
		leaderOpts = append(leaderOpts, replication.WithPerOperationChecksums())
	}
	return replication.NewLeaderSession(j, leaderOpts...)
}

// NewFollower sets up a replica journal over model and wraps it in a follower
// session.
func NewFollower(registry *action.Registry, model types.Model, policy replication.RecoveryPolicy,
	opts ...Option,
) (*replication.FollowerSession, error) {
	o := buildOptions(opts)
	j, err := buildJournal(journal.Follower, registry, model, o)
	if err != nil {
		return nil, err
	}
	followerOpts := []replication.FollowerOption{replication.WithFollowerLogger(o.logger)}
	if policy != nil {
		followerOpts = append(followerOpts, replication.WithRecoveryPolicy(policy))
	}
	return replication.NewFollowerSession(j, followerOpts...)
}

// SaveCheckpoint persists the journal's current checkpoint under key.
func SaveCheckpoint(ctx context.Context, store snapshot.Store, key string, j *journal.Journal) error {
	snap, err := snapshot.Take(j)
	if err != nil {
		return err
	}
	return store.Save(ctx, key, snap)
}

// ResyncFollower builds a fresh follower session from the snapshot stored
// under key. prototype supplies the model's concrete type; the restored state
// is verified against the snapshot's recorded checksum before use.
func ResyncFollower(ctx context.Context, store snapshot.Store, key string, registry *action.Registry,
	prototype types.Model, policy replication.RecoveryPolicy, opts ...Option,
) (*replication.FollowerSession, error) {
	snap, err := store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	model, err := snap.Restore(prototype)
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithStartPosition(snap.Position))
	sess, err := NewFollower(registry, model, policy, opts...)
	if err != nil {
		return nil, err
	}
	if got := sess.Journal().CheckpointChecksum(); got != snap.Checksum {
		return nil, eris.Wrapf(ErrSnapshotChecksumMismatch, "recorded %s, restored %s", snap.Checksum, got)
	}
	return sess, nil
}
