package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyInProgress is returned when an analysis of the same community is already running
var ErrAlreadyInProgress = errors.New("analysis already in progress")

// Guard admits at most one holder per key. Acquire fails with ErrAlreadyInProgress
// instead of waiting; the returned release func must be called exactly once.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MemoryGuard tracks in-flight keys within a single process
type MemoryGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

var _ Guard = (*MemoryGuard)(nil)

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{inFlight: make(map[string]struct{})}
}

func (g *MemoryGuard) Acquire(ctx context.Context, key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[key]; busy {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInProgress, key)
	}
	g.inFlight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, key)
			g.mu.Unlock()
		})
	}, nil
}

const unlockScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"

// RedisGuard shares the in-flight set across replicas. Locks expire after ttl
// so a crashed holder cannot block a community forever.
type RedisGuard struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Guard = (*RedisGuard)(nil)

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{
		rdb:    rdb,
		prefix: "subscout:inflight:",
		ttl:    ttl,
	}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := g.prefix + key
	token := uuid.NewString()

	ok, err := g.rdb.SetNX(ctx, lockKey, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire analysis lock for %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInProgress, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's context may already be cancelled
			if err := g.rdb.Eval(context.Background(), unlockScript, []string{lockKey}, token).Err(); err != nil {
				logrus.Warnf("Failed to release analysis lock for %s: %v", key, err)
			}
		})
	}, nil
}
