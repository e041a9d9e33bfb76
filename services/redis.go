package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/redis/go-redis/v9"

	"github.com/bobs-corn/corn_api/shared"
)

// RedisService owns the redis client and implements the rate-limit
// store on top of a sorted set per client key: score and member are
// both the unix-millisecond timestamp of an admitted request. Two
// requests recorded in the same millisecond collapse to one member,
// which slightly under-counts; accepted.
type RedisService struct {
	appContext.DefaultService
	redis *redis.Client
}

const REDIS_SVC = "redis_svc"

func (svc RedisService) Id() string {
	return REDIS_SVC
}

func (svc *RedisService) Configure(ctx *appContext.Context) error {
	svc.initRedisClient()
	return svc.DefaultService.Configure(ctx)
}

func (svc *RedisService) Start() error {
	if svc.redis != nil {
		ctx := context.Background()
		_, err := svc.redis.Ping(ctx).Result()
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}
	return nil
}

func (svc *RedisService) Shutdown() {
	if svc.redis != nil {
		_ = svc.redis.Close()
	}
}

func (svc *RedisService) initRedisClient() {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisPassword := os.Getenv("REDIS_PASSWORD")

	redisDB := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			redisDB = db
		}
	}

	svc.redis = redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})
}

func (svc *RedisService) GetClient() *redis.Client {
	return svc.redis
}

func rateLimitKey(key string) string {
	return shared.RateLimitKeyPrefix + key
}

// PurgeExpired drops entries recorded before the window start.
func (svc *RedisService) PurgeExpired(ctx context.Context, key string, before time.Time) error {
	if svc.redis == nil {
		return fmt.Errorf("redis client not initialized")
	}

	max := strconv.FormatInt(before.UnixMilli(), 10)
	return svc.redis.ZRemRangeByScore(ctx, rateLimitKey(key), "0", max).Err()
}

func (svc *RedisService) CountCurrent(ctx context.Context, key string) (int64, error) {
	if svc.redis == nil {
		return 0, fmt.Errorf("redis client not initialized")
	}

	return svc.redis.ZCard(ctx, rateLimitKey(key)).Result()
}

func (svc *RedisService) AddEntry(ctx context.Context, key string, at time.Time) error {
	if svc.redis == nil {
		return fmt.Errorf("redis client not initialized")
	}

	millis := at.UnixMilli()
	return svc.redis.ZAdd(ctx, rateLimitKey(key), redis.Z{
		Score:  float64(millis),
		Member: strconv.FormatInt(millis, 10),
	}).Err()
}

func (svc *RedisService) SetExpiry(ctx context.Context, key string, ttl time.Duration) error {
	if svc.redis == nil {
		return fmt.Errorf("redis client not initialized")
	}

	return svc.redis.Expire(ctx, rateLimitKey(key), ttl).Err()
}

// HealthCheck reports whether the cache answers PING.
func (svc *RedisService) HealthCheck(ctx context.Context) bool {
	if svc.redis == nil {
		return false
	}

	res, err := svc.redis.Ping(ctx).Result()
	return err == nil && res == "PONG"
}
