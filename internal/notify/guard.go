package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Guard serialises the check-then-dispatch step for one dedup key across
// concurrent scans. Acquire returns ok=false when another holder has the key;
// release must be called once when ok is true.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

func dueSoonKey(todoID, userID uint) string {
	return fmt.Sprintf("due_soon:%d:%d", todoID, userID)
}

// RedisGuard holds keys in Redis so scans in different processes exclude
// each other. Keys expire after ttl if a holder dies.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, prefix: "todo:notify:lock:", ttl: ttl}
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), bool, error) {
	full := g.prefix + key
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, full, token, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", full, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// the caller's context may already be done
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, g.client, []string{full}, token).Err()
	}
	return release, true, nil
}

// LocalGuard is the in-process Guard used when Redis is not configured.
type LocalGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{held: make(map[string]struct{})}
}

func (g *LocalGuard) Acquire(_ context.Context, key string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.held[key]; busy {
		return nil, false, nil
	}
	g.held[key] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}
	return release, true, nil
}
