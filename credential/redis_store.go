package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	redisDialTimeout = 3 * time.Second
	redisOpTimeout   = 2 * time.Second
)

// RedisStore keeps one browsing context's values in a Redis hash, for consoles
// whose client state must outlive the machine they run on.
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ Store = (*RedisStore)(nil)

// NewRedisClient parses redisURL and checks the server is reachable.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "[credential.NewRedisClient] invalid URL")
	}
	options.DialTimeout = redisDialTimeout
	options.ReadTimeout = redisOpTimeout
	options.WriteTimeout = redisOpTimeout

	client := redis.NewClient(options)
	pingCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "[credential.NewRedisClient] ping")
	}
	return client, nil
}

// NewRedisStore stores values under the hash for namespace.
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, key: fmt.Sprintf("console:state:%s", namespace)}
}

func (rs *RedisStore) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	value, err := rs.client.HGet(ctx, rs.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "[RedisStore.Get] %s", key)
	}
	return value, true, nil
}

func (rs *RedisStore) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := rs.client.HSet(ctx, rs.key, key, value).Err(); err != nil {
		return errors.Wrapf(err, "[RedisStore.Set] %s", key)
	}
	return nil
}

func (rs *RedisStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := rs.client.HDel(ctx, rs.key, key).Err(); err != nil {
		return errors.Wrapf(err, "[RedisStore.Delete] %s", key)
	}
	return nil
}
