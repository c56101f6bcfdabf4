package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nftstudio/nft-minter/internal/core/domain"
)

// DefaultKeyPrefix namespaces guard keys in a shared redis.
const DefaultKeyPrefix = "nftminter:mint:"

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// redisClient is the subset of redis the guard needs.
type redisClient interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
	Close() error
}

type goRedisClient struct {
	client *redis.Client
}

var _ redisClient = (*goRedisClient)(nil)

func (c *goRedisClient) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

func (c *goRedisClient) ReleaseIfOwner(ctx context.Context, key, value string) error {
	return releaseScript.Run(ctx, c.client, []string{key}, value).Err()
}

func (c *goRedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *goRedisClient) Close() error {
	return c.client.Close()
}

// RedisGuard is a MintGuard shared by every process using the same redis.
type RedisGuard struct {
	client    redisClient
	keyPrefix string
	logger    *zap.Logger
}

var _ domain.MintGuard = (*RedisGuard)(nil)

// NewRedisGuard connects to the redis at url (redis://...) and checks the
// connection.
func NewRedisGuard(ctx context.Context, url string, logger *zap.Logger) (*RedisGuard, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := &goRedisClient{client: redis.NewClient(opts)}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return newRedisGuard(client, DefaultKeyPrefix, logger), nil
}

func newRedisGuard(client redisClient, prefix string, logger *zap.Logger) *RedisGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisGuard{client: client, keyPrefix: prefix, logger: logger.Named("mint-guard")}
}

// Acquire sets the guard key if absent. The key expires after ttl even if
// the holder never releases it.
func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	redisKey := g.keyPrefix + normalizeKey(key)
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ok, err := g.client.SetNX(ctx, redisKey, token, ttl)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork, "acquire", "mint guard unavailable", err)
	}
	if !ok {
		return nil, domain.NewError(domain.KindBusy, "acquire", busyMsg, nil)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.client.ReleaseIfOwner(releaseCtx, redisKey, token); err != nil {
			g.logger.Warn("failed to release mint guard", zap.String("key", redisKey), zap.Error(err))
		}
	}, nil
}

// Close closes the redis connection.
func (g *RedisGuard) Close() error {
	return g.client.Close()
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate guard token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
