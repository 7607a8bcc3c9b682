package lock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var _ Manager = (*RedisManager)(nil)

// releaseScript deletes the key only when it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisManager shares lock targets between service replicas
type RedisManager struct {
	client  redis.UniversalClient
	options *redisOptions
}

type redisOptions struct {
	ttl           time.Duration
	retryInterval time.Duration
	policy        Policy
	keyPrefix     string
}

type RedisOption func(*redisOptions)

// WithTTL bounds how long a crashed holder can keep a target
func WithTTL(ttl time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.ttl = ttl
	}
}

func WithRetryInterval(interval time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.retryInterval = interval
	}
}

func WithPolicy(policy Policy) RedisOption {
	return func(o *redisOptions) {
		o.policy = policy
	}
}

func WithKeyPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		o.keyPrefix = prefix
	}
}

// NewRedisManager creates a Manager backed by redis SET NX
func NewRedisManager(client redis.UniversalClient, opts ...RedisOption) *RedisManager {
	options := &redisOptions{
		ttl:           30 * time.Second,
		retryInterval: 50 * time.Millisecond,
		policy:        PolicyBlock,
		keyPrefix:     "lock:",
	}

	for _, opt := range opts {
		opt(options)
	}

	return &RedisManager{
		client:  client,
		options: options,
	}
}

// Acquire sets the target key with a fresh token, polling while it is held
// under the block policy.
func (m *RedisManager) Acquire(ctx context.Context, target Target) (Handle, error) {
	key := m.options.keyPrefix + target.Key()
	token := uuid.NewString()

	for {
		ok, err := m.client.SetNX(ctx, key, token, m.options.ttl).Result()
		if err != nil {
			return nil, errors.Wrap(err, "failed to set lock key")
		}

		if ok {
			return &redisHandle{manager: m, target: target, key: key, token: token}, nil
		}

		if m.options.policy == PolicyFailFast {
			return nil, ErrLockHeld
		}

		timer := time.NewTimer(m.options.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

type redisHandle struct {
	manager  *RedisManager
	target   Target
	key      string
	token    string
	released atomic.Bool
}

func (h *redisHandle) Target() Target {
	return h.target
}

func (h *redisHandle) Release(ctx context.Context) error {
	if !h.released.CompareAndSwap(false, true) {
		return ErrNotHeld
	}

	deleted, err := releaseScript.Run(ctx, h.manager.client, []string{h.key}, h.token).Int64()
	if err != nil {
		return errors.Wrap(err, "failed to release lock key")
	}

	// the TTL expired and someone else may own the key now
	if deleted == 0 {
		return ErrNotHeld
	}

	return nil
}
