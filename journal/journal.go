// Package journal maintains the ordered history of operations (ticks and
// actions) applied to a deterministic simulation model. A journal owns a
// staged model (the speculative tip of history) and a checkpoint model (the
// last state confirmed consistent between leader and follower), and drives
// commit and rollback semantics between the two.
//
// A journal is not internally thread-safe: exactly one logical thread owns
// and mutates a given instance. Multiple journals may run in parallel, each
// fully isolated.
package journal

import (
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"pkg.world.dev/lockstep/action"
	"pkg.world.dev/lockstep/checksum"
	"pkg.world.dev/lockstep/codec"
	"pkg.world.dev/lockstep/types"
)

var (
	ErrNotSetup             = eris.New("journal has not been set up")
	ErrAlreadySetup         = eris.New("journal is already set up")
	ErrWrongRole            = eris.New("operation not available for this journal role")
	ErrExecuteFlagsForbid   = eris.New("action execute flags forbid this operation")
	ErrAheadOfStaged        = eris.New("position is ahead of the staged position")
	ErrNotOperationBoundary = eris.New("position does not land on an operation boundary")
	ErrMissingChecksum      = eris.New("no expected checksum supplied for the commit boundary")
	ErrInModifyHistory      = eris.New("operation not allowed inside a modify-history block")
)

// Role distinguishes the authoritative journal from its replicas.
type Role uint8

const (
	// Leader is authoritative: it computes checksums locally as the source
	// of truth.
	Leader Role = iota + 1
	// Follower receives operations with externally supplied checksums and
	// verifies them at commit time.
	Follower
)

func (r Role) String() string {
	switch r {
	case Leader:
		return "leader"
	case Follower:
		return "follower"
	default:
		return "invalid"
	}
}

// Entry is one logged operation since the last checkpoint. Position is the
// position reached after applying the operation.
type Entry struct {
	Kind     types.OperationKind
	Action   types.Action // nil for ticks
	Result   types.ActionResult
	Position types.Position
	// Checksum is the state checksum after the operation: computed locally
	// on the leader, externally asserted on the follower. HasChecksum is
	// false for follower entries whose batch carried only a final checksum.
	Checksum    types.Checksum
	HasChecksum bool
}

type Journal struct {
	role     Role
	registry *action.Registry
	logger   zerolog.Logger

	staged     types.Model
	checkpoint types.Model

	stagedPos     types.Position
	checkpointPos types.Position

	// stagedChecksum tracks the checksum recorded for the latest staged
	// operation; checkpointChecksum the one confirmed at the checkpoint.
	stagedChecksum     types.Checksum
	hasStagedChecksum  bool
	checkpointChecksum types.Checksum

	entries   []Entry
	listeners []Listener
	buf       *checksum.Buffer

	isSetup         bool
	inModifyHistory bool
}

type Option func(*Journal)

func WithLogger(logger zerolog.Logger) Option {
	return func(j *Journal) { j.logger = logger }
}

// WithListeners attaches listeners at construction time. Listeners receive
// their Attach callback when Setup runs.
func WithListeners(listeners ...Listener) Option {
	return func(j *Journal) { j.listeners = append(j.listeners, listeners...) }
}

func New(role Role, registry *action.Registry, opts ...Option) *Journal {
	j := &Journal{
		role:     role,
		registry: registry,
		logger:   zerologlog.Logger,
		buf:      checksum.NewBuffer(),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.logger = j.logger.With().Str("role", role.String()).Logger()
	return j
}

// Setup takes ownership of model and installs it as both the staged and the
// checkpoint state at the given position. The checkpoint copy is independent:
// nothing outside the journal may keep a reference to model after Setup.
func (j *Journal) Setup(model types.Model, position types.Position) error {
	if j.isSetup {
		return ErrAlreadySetup
	}
	cp, err := cloneModel(model)
	if err != nil {
		return err
	}
	cs, err := checksum.Compute(j.buf, model)
	if err != nil {
		return err
	}
	j.staged = model
	j.checkpoint = cp
	j.stagedPos = position
	j.checkpointPos = position
	j.checkpointChecksum = cs
	j.stagedChecksum = cs
	j.hasStagedChecksum = true
	j.isSetup = true

	for _, l := range j.listeners {
		l.Attach(j)
	}
	j.notify(Event{Phase: PhaseAfterSetup, Position: position, Checksum: &cs})
	j.logger.Debug().
		Stringer("position", position).
		Stringer("checksum", cs).
		Msg("journal set up")
	return nil
}

// AddListener attaches a listener. If the journal is already set up the
// listener's Attach callback runs immediately.
func (j *Journal) AddListener(l Listener) {
	j.listeners = append(j.listeners, l)
	if j.isSetup {
		l.Attach(j)
	}
}

func (j *Journal) Role() Role                 { return j.role }
func (j *Journal) Registry() *action.Registry { return j.registry }
func (j *Journal) Logger() *zerolog.Logger    { return &j.logger }

// StagedModel returns the speculative tip state. The model is owned by the
// journal: callers must not mutate it outside the tick/action pipeline.
func (j *Journal) StagedModel() types.Model { return j.staged }

// CheckpointModel returns the last confirmed-consistent state. Owned by the
// journal; read-only for callers.
func (j *Journal) CheckpointModel() types.Model { return j.checkpoint }

func (j *Journal) StagedPosition() types.Position     { return j.stagedPos }
func (j *Journal) CheckpointPosition() types.Position { return j.checkpointPos }

func (j *Journal) CheckpointChecksum() types.Checksum { return j.checkpointChecksum }

// StagedChecksum returns the checksum recorded for the most recent staged
// operation, if one was recorded.
func (j *Journal) StagedChecksum() (types.Checksum, bool) {
	return j.stagedChecksum, j.hasStagedChecksum
}

// PendingOperations returns a copy of the operations staged since the last
// checkpoint.
func (j *Journal) PendingOperations() []Entry {
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// MaterializeModel decodes bz (a full codec.Encode serialization) into a
// fresh instance of the journal's model type.
func (j *Journal) MaterializeModel(bz []byte) (types.Model, error) {
	if !j.isSetup {
		return nil, ErrNotSetup
	}
	fresh, err := codec.NewInstance(j.staged)
	if err != nil {
		return nil, err
	}
	if err := codec.DecodeInto(bz, fresh); err != nil {
		return nil, err
	}
	return fresh.(types.Model), nil
}

func cloneModel(m types.Model) (types.Model, error) {
	cp, err := codec.CloneValue(m)
	if err != nil {
		return nil, err
	}
	return cp.(types.Model), nil
}
