package redislock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker serializes short critical sections across instances, for
// example two checkout clicks from the same user.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

func New(client *redis.Client) *Locker {
	return &Locker{
		client: client,
		script: redis.NewScript(releaseScript),
	}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}
