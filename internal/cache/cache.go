// cache - сессионный кэш поверх Redis.
//
// В одном хранилище живут два непересекающихся пространства ключей:
//   - <prefix>user:<id>          - JSON-снимок профиля;
//   - <prefix>refresh_token:<id> - дескриптор отзыва (актуальный refresh-токен).
//
// Истечение записей целиком на стороне Redis (TTL).
package cache

//go:generate mockgen -source=cache.go -destination=../../mocks/cache_mock.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable - кэш недоступен или вернул ошибку.
var ErrUnavailable = errors.New("cache unavailable")

const (
	profileNS    = "user:"
	revocationNS = "refresh_token:"
)

// SessionCache - минимальный контракт key-value кэша с TTL.
type SessionCache interface {
	// Put сохраняет значение с TTL, перезаписывая предыдущее.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get возвращает значение и признак его наличия.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Delete удаляет ключи; отсутствие ключа не ошибка.
	Delete(ctx context.Context, keys ...string) error
	// Ping проверяет доступность.
	Ping(ctx context.Context) error
	// Close закрывает клиент.
	Close() error
}

// Keys строит ключи двух пространств с общим префиксом.
type Keys struct {
	Prefix string
}

// Profile - ключ снимка профиля.
func (k Keys) Profile(userID int64) string {
	return k.Prefix + profileNS + strconv.FormatInt(userID, 10)
}

// Revocation - ключ дескриптора отзыва.
func (k Keys) Revocation(userID int64) string {
	return k.Prefix + revocationNS + strconv.FormatInt(userID, 10)
}

// Redis - реализация SessionCache на go-redis.
type Redis struct {
	rdb redis.UniversalClient
}

// NewRedis создаёт клиент Redis из URL (например, redis://:pass@host:6379/0)
// и проверяет соединение.
func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	const op = "cache.NewRedis"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c := NewRedisFromClient(redis.NewClient(opt))

	// Fail-fast на старте.
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return c, nil
}

// NewRedisFromClient оборачивает готовый клиент.
func NewRedisFromClient(rdb redis.UniversalClient) *Redis {
	return &Redis{rdb: rdb}
}

func (c *Redis) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// Get трактует redis.Nil как промах.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return b, true, nil
}

func (c *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

func (c *Redis) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

func (c *Redis) Close() error { return c.rdb.Close() }

var _ SessionCache = (*Redis)(nil)
