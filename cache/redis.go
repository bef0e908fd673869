package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps the redis primitives the booking backend coordinates
// replicas with: short leases for scheduler passes and throttles for
// work that should run at most once per period.
type Cache struct {
	client *redis.Client
	prefix string
}

func NewCache(client *redis.Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) key(k string) string { return c.prefix + k }

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// TryLock takes a lease on name for ttl. It returns a release func when
// the lease was acquired, and ok=false when another holder has it.
func (c *Cache) TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error) {
	token, err := randomToken()
	if err != nil {
		return nil, false, err
	}
	k := c.key("lock:" + name)
	ok, err = c.client.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}
	release = func() {
		// the caller's ctx may be done by now
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, c.client, []string{k}, token).Err()
	}
	return release, true, nil
}

// Allow reports whether the throttled action name may run now. The first
// caller in each period wins.
func (c *Cache) Allow(ctx context.Context, name string, period time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key("throttle:"+name), "1", period).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("throttle %s: %w", name, err)
	}
	return ok, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
