package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/platform/obs"
	"trip-assignment-service/internal/ports"
)

const redisKeyPrefix = "dist:"

// RedisDistanceCache stores distances as "km|provenance" strings under
// "dist:<from>|<to>" keys. A zero TTL keeps entries forever.
type RedisDistanceCache struct {
	Client *redis.Client
	TTL    time.Duration
}

var _ ports.DistanceCache = (*RedisDistanceCache)(nil)

func NewRedisDistanceCache(client *redis.Client, ttl time.Duration) *RedisDistanceCache {
	return &RedisDistanceCache{Client: client, TTL: ttl}
}

func redisKey(k domain.PairKey) string { return redisKeyPrefix + k.String() }

func encodeEntry(e ports.DistanceCacheEntry) string {
	return strconv.FormatFloat(e.Km, 'f', -1, 64) + "|" + string(e.Provenance)
}

func decodeEntry(s string) (ports.DistanceCacheEntry, error) {
	kmStr, prov, ok := strings.Cut(s, "|")
	if !ok {
		return ports.DistanceCacheEntry{}, fmt.Errorf("malformed entry %q", s)
	}
	km, err := strconv.ParseFloat(kmStr, 64)
	if err != nil {
		return ports.DistanceCacheEntry{}, fmt.Errorf("malformed km in %q: %w", s, err)
	}
	e := ports.DistanceCacheEntry{Km: km, Provenance: domain.Provenance(prov)}
	if !validProvenance(e.Provenance) {
		return ports.DistanceCacheEntry{}, fmt.Errorf("unknown provenance in %q", s)
	}
	return e, nil
}

// Fetch cached distances with a single MGET.
func (r *RedisDistanceCache) GetMany(
	ctx context.Context,
	keys []domain.PairKey,
) (_ map[domain.PairKey]ports.DistanceCacheEntry, err error) {
	defer obs.Time(ctx, "distance.redis.GetMany")(&err)

	if r.Client == nil {
		return nil, errors.New("distance cache: redis client is nil")
	}

	uniq := uniqPairs(keys)
	out := make(map[domain.PairKey]ports.DistanceCacheEntry, len(uniq))
	if len(uniq) == 0 {
		return out, nil
	}

	rkeys := make([]string, len(uniq))
	for i, k := range uniq {
		rkeys[i] = redisKey(k)
	}

	vals, err := r.Client.MGet(ctx, rkeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get distance cache: redis mget: %w", err)
	}

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		e, err := decodeEntry(s)
		if err != nil {
			// Skip corrupt entries; they are rewritten on the next measurement.
			continue
		}
		out[uniq[i]] = e
	}
	return out, nil
}

// Store many distance entries in one pipeline.
func (r *RedisDistanceCache) PutMany(
	ctx context.Context,
	entries map[domain.PairKey]ports.DistanceCacheEntry,
) (err error) {
	defer obs.Time(ctx, "distance.redis.PutMany")(&err)

	if r.Client == nil {
		return errors.New("distance cache: redis client is nil")
	}
	if len(entries) == 0 {
		return nil
	}

	pipe := r.Client.TxPipeline()
	for k, e := range entries {
		if k.From == "" || k.To == "" {
			return fmt.Errorf("insert distance cache: empty pair key")
		}
		if !validProvenance(e.Provenance) {
			return fmt.Errorf("insert distance cache key=%q: invalid provenance %q", k, e.Provenance)
		}
		pipe.Set(ctx, redisKey(k), encodeEntry(e), r.TTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert distance cache: redis pipeline: %w", err)
	}
	return nil
}
