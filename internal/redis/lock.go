package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token, so a tick
// that outlived its TTL cannot release a lock taken by the next one.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TickLock keeps a scheduled job from running on two replicas at once.
type TickLock struct {
	client *goredis.Client
	prefix string
}

func NewTickLock(client *goredis.Client, prefix string) *TickLock {
	return &TickLock{client: client, prefix: prefix}
}

// Acquire takes the lock for name. ok is false when another holder has it.
// The returned release func is safe to call once the work is done.
func (l *TickLock) Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error) {
	key := l.key(name)
	token := uuid.NewString()

	ok, err = l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		// The tick's own context may already be done.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

func (l *TickLock) key(name string) string {
	return fmt.Sprintf("%s:lock:%s", l.prefix, name)
}
