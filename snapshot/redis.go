package snapshot

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"pkg.world.dev/lockstep/codec"
)

var _ Store = &RedisStore{}

type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Save(ctx context.Context, key string, snap *Snapshot) error {
	var span tracer.Span
	span, ctx = tracer.StartSpanFromContext(ctx, "snapshot.span.save")
	defer span.Finish()

	bz, err := codec.Encode(snap)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, redisSnapshotKey(key), bz, 0).Err(); err != nil {
		return eris.Wrap(err, "")
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, key string) (*Snapshot, error) {
	var span tracer.Span
	span, ctx = tracer.StartSpanFromContext(ctx, "snapshot.span.load")
	defer span.Finish()

	bz, err := r.client.Get(ctx, redisSnapshotKey(key)).Bytes()
	if eris.Is(eris.Cause(err), redis.Nil) {
		return nil, eris.Wrapf(ErrNotFound, "key %q", key)
	} else if err != nil {
		return nil, eris.Wrap(err, "")
	}
	snap, err := codec.Decode[Snapshot](bz)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
