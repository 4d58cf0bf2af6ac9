package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cratefm/model"
)

const (
	poolCacheTTL      = 30 * time.Minute
	genreSeedCacheTTL = 24 * time.Hour
	genreSeedKey      = "spotify:genre-seeds"
)

// PoolCacheKey derives the Redis key for a derived intent. Two intents
// with identical constraints share an entry.
func PoolCacheKey(intent *model.DerivedIntent) string {
	data, err := json.Marshal(intent)
	if err != nil {
		return "pool:invalid"
	}
	sum := sha256.Sum256(data)
	return "pool:" + hex.EncodeToString(sum[:16])
}

// PutCandidatePool caches a candidate pool for an intent.
func PutCandidatePool(ctx context.Context, intent *model.DerivedIntent, pool *model.CandidatePool) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("failed to marshal candidate pool: %w", err)
	}

	if err := RedisClient.Set(ctx, PoolCacheKey(intent), data, poolCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache candidate pool: %w", err)
	}
	return nil
}

// GetCandidatePool returns the cached pool for an intent, (nil, nil) on miss.
func GetCandidatePool(ctx context.Context, intent *model.DerivedIntent) (*model.CandidatePool, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	data, err := RedisClient.Get(ctx, PoolCacheKey(intent)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read candidate pool cache: %w", err)
	}

	var pool model.CandidatePool
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached candidate pool: %w", err)
	}
	return &pool, nil
}

// PutGenreSeeds caches the provider's genre seed list.
func PutGenreSeeds(ctx context.Context, genres []string) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(genres)
	if err != nil {
		return fmt.Errorf("failed to marshal genre seeds: %w", err)
	}

	if err := RedisClient.Set(ctx, genreSeedKey, data, genreSeedCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache genre seeds: %w", err)
	}
	return nil
}

// GetGenreSeeds returns the cached genre seed list, (nil, nil) on miss.
func GetGenreSeeds(ctx context.Context) ([]string, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	data, err := RedisClient.Get(ctx, genreSeedKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read genre seed cache: %w", err)
	}

	var genres []string
	if err := json.Unmarshal(data, &genres); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached genre seeds: %w", err)
	}
	return genres, nil
}
