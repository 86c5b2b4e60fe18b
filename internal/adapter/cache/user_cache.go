package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "user-image-service/internal/domain/user"
)

// UserCache defines the interface for user caching operations.
type UserCache interface {
	// Get retrieves a user from cache by ID.
	// Returns nil if user is not found in cache.
	Get(ctx context.Context, id int64) (*domain.User, error)

	// Generation returns the write generation of a user ID, 0 if it was never
	// invalidated. Read it before loading the user from the database.
	Generation(ctx context.Context, id int64) (int64, error)

	// Set stores a user with the configured TTL unless the user's generation
	// moved past gen. It reports whether the user was stored.
	Set(ctx context.Context, user *domain.User, gen int64) (bool, error)

	// Invalidate bumps the user's generation and removes the cached entry.
	Invalidate(ctx context.Context, id int64) error
}

// cachedUser is the JSON shape stored in Redis.
type cachedUser struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	ImagePath *string `json:"image_path,omitempty"`
}

// RedisUserCache implements UserCache using Redis as the backing store.
type RedisUserCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisUserCache creates a new Redis-backed user cache.
func NewRedisUserCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisUserCache {
	return &RedisUserCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

// minGenerationTTL bounds how long a lookup may take and still be
// compared against the generation it started with.
const minGenerationTTL = time.Hour

func cacheKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

func generationKey(id int64) string {
	return fmt.Sprintf("user:%d:gen", id)
}

// Get retrieves a user from Redis cache.
func (c *RedisUserCache) Get(ctx context.Context, id int64) (*domain.User, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.log.Debug("cache miss", zap.Int64("user_id", id))
		return nil, nil
	}
	if err != nil {
		c.log.Error("failed to get from cache", zap.Int64("user_id", id), zap.Error(err))
		return nil, err
	}

	var cu cachedUser
	if err := json.Unmarshal(data, &cu); err != nil {
		c.log.Error("failed to unmarshal cached user", zap.Int64("user_id", id), zap.Error(err))
		return nil, err
	}

	return &domain.User{
		ID:        cu.ID,
		Name:      cu.Name,
		Email:     cu.Email,
		ImagePath: cu.ImagePath,
	}, nil
}

// Generation returns the current write generation of a user.
func (c *RedisUserCache) Generation(ctx context.Context, id int64) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		c.log.Error("failed to get cache generation", zap.Int64("user_id", id), zap.Error(err))
		return 0, err
	}
	return gen, nil
}

// Set stores a user in Redis cache if its generation is still gen. The
// generation key is watched so a concurrent Invalidate aborts the write.
func (c *RedisUserCache) Set(ctx context.Context, user *domain.User, gen int64) (bool, error) {
	if user == nil {
		return false, errors.New("cannot cache nil user")
	}

	data, err := json.Marshal(cachedUser{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		ImagePath: user.ImagePath,
	})
	if err != nil {
		return false, err
	}

	stored := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, generationKey(user.ID)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(user.ID), data, c.ttl)
			return nil
		})
		stored = err == nil
		return err
	}, generationKey(user.ID))
	if errors.Is(err, redis.TxFailedErr) {
		stored, err = false, nil
	}
	if err != nil {
		c.log.Error("failed to set cache", zap.Int64("user_id", user.ID), zap.Error(err))
		return false, err
	}

	if !stored {
		c.log.Debug("skipped caching stale user", zap.Int64("user_id", user.ID), zap.Int64("generation", gen))
		return false, nil
	}

	c.log.Debug("cached user", zap.Int64("user_id", user.ID), zap.Duration("ttl", c.ttl))
	return true, nil
}

// Invalidate bumps the user's generation and removes it from Redis cache in
// one transaction.
func (c *RedisUserCache) Invalidate(ctx context.Context, id int64) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(id))
		pipe.Expire(ctx, generationKey(id), max(c.ttl, minGenerationTTL))
		pipe.Del(ctx, cacheKey(id))
		return nil
	})
	if err != nil {
		c.log.Error("failed to invalidate cache", zap.Int64("user_id", id), zap.Error(err))
		return err
	}

	c.log.Debug("invalidated cache", zap.Int64("user_id", id))
	return nil
}
