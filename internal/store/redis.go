package store

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// RedisStore keeps each snapshot under cart:<session> with no expiry; the stored
// value is the durable record of the cart.
type RedisStore struct {
	client *redis.Client
}

func (r *RedisStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := r.client.Get(ctx, snapshotKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "redis get failed")
	}
	return data, nil
}

func (r *RedisStore) Save(ctx context.Context, sessionID string, snapshot []byte) error {
	if err := r.client.Set(ctx, snapshotKey(sessionID), snapshot, 0).Err(); err != nil {
		return pkgerrors.Wrap(err, "redis set failed")
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, snapshotKey(sessionID)).Err(); err != nil {
		return pkgerrors.Wrap(err, "redis delete failed")
	}
	return nil
}
