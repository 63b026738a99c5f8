// Package lock keeps two sync runs for the same tenant from overlapping.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLocked = errors.New("sync already running for tenant")

type Locker interface {
	// Acquire takes the tenant lock for at most ttl and returns its release
	// function.
	Acquire(ctx context.Context, tenant string, ttl time.Duration) (func(), error)
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, prefix: "stocksync:lock:"}
}

// NewRedisLockerFromURL parses a redis:// URL.
func NewRedisLockerFromURL(rawURL string) (*RedisLocker, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return NewRedisLocker(redis.NewClient(opts)), nil
}

func (l *RedisLocker) Acquire(ctx context.Context, tenant string, ttl time.Duration) (func(), error) {
	key := l.prefix + tenant
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, tenant)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		releaseScript.Run(ctx, l.client, []string{key}, token)
	}, nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// LocalLocker is an in-process Locker for single instance deployments and
// tests.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), clock: time.Now}
}

func (l *LocalLocker) Acquire(ctx context.Context, tenant string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if until, ok := l.held[tenant]; ok && now.Before(until) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, tenant)
	}
	until := now.Add(ttl)
	l.held[tenant] = until

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[tenant].Equal(until) {
			delete(l.held, tenant)
		}
	}, nil
}
