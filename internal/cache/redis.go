package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache shared by every instance pointing at the same server, so
// an invalidation issued by one instance is seen by all.
type Redis struct {
	client *redis.Client
	prefix string
}

type redisEnvelope struct {
	Gen   uint64 `json:"gen"`
	Value []byte `json:"value"`
}

// NewRedis connects to redisURL and checks the connection.
func NewRedis(ctx context.Context, redisURL, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: connect to redis: %w", err)
	}
	return NewRedisWithClient(client, prefix), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "habithub:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) genKey() string { return r.prefix + "gen" }

func (r *Redis) dataKey(key string) string { return r.prefix + "data:" + key }

// Generation implements Cache.
func (r *Redis) Generation(ctx context.Context) (uint64, error) {
	return r.readGen(ctx, r.client)
}

func (r *Redis) readGen(ctx context.Context, c redis.Cmdable) (uint64, error) {
	gen, err := c.Get(ctx, r.genKey()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache: read generation: %w", err)
	}
	return gen, nil
}

// Load implements Cache.
func (r *Redis) Load(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := r.client.Get(ctx, r.dataKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: load %s: %w", key, err)
	}
	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, nil
	}
	gen, err := r.Generation(ctx)
	if err != nil {
		return nil, false, err
	}
	if env.Gen != gen {
		return nil, false, nil
	}
	return env.Value, true, nil
}

// Store implements Cache. The generation check and the write run in one
// optimistic transaction on the generation key.
func (r *Redis) Store(ctx context.Context, key string, gen uint64, value []byte, ttl time.Duration) error {
	payload, err := json.Marshal(redisEnvelope{Gen: gen, Value: value})
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := r.readGen(ctx, tx)
		if err != nil {
			return err
		}
		if cur != gen {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, r.dataKey(key), payload, ttl)
			return nil
		})
		return err
	}, r.genKey())
	if errors.Is(err, redis.TxFailedErr) {
		return ErrStale
	}
	return err
}

// Invalidate implements Cache. Data keys are left to expire; bumping the
// generation already makes them unreadable.
func (r *Redis) Invalidate(ctx context.Context) error {
	if err := r.client.Incr(ctx, r.genKey()).Err(); err != nil {
		return fmt.Errorf("cache: invalidate: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
