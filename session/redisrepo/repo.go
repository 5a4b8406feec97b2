// Package redisrepo persists session keys in a Redis hash, for deployments
// where the console session must be shared across processes (e.g. a
// backend-for-frontend serving several replicas).
package redisrepo

import (
	"context"
	"time"

	"github.com/nivexa/go-console-client/session"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const opTimeout = 5 * time.Second

var _ session.Repo = (*Repo)(nil)

// Repo stores all session fields in a single Redis hash so group writes are
// atomic (HSET with multiple field/value pairs).
type Repo struct {
	client *redis.Client
	key    string
}

// New creates a Redis-backed repo. key names the hash holding the session,
// typically one per console user, e.g. "console:session:<user>".
func New(client *redis.Client, key string) (*Repo, error) {
	if client == nil {
		return nil, errors.New("[redisrepo.New] client is required")
	}
	if key == "" {
		return nil, errors.New("[redisrepo.New] key is required")
	}
	return &Repo{client: client, key: key}, nil
}

func (r *Repo) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	value, err := r.client.HGet(ctx, r.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "[redisrepo.Get] hget")
	}
	return value, true, nil
}

func (r *Repo) SetAll(values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	pairs := make([]any, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, key, value)
	}
	if err := r.client.HSet(ctx, r.key, pairs...).Err(); err != nil {
		return errors.Wrap(err, "[redisrepo.SetAll] hset")
	}
	return nil
}

func (r *Repo) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := r.client.HDel(ctx, r.key, keys...).Err(); err != nil {
		return errors.Wrap(err, "[redisrepo.Delete] hdel")
	}
	return nil
}
