package cache_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip-assignment-service/internal/adapters/cache"
	"trip-assignment-service/internal/adapters/repositories"
	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/platform/db"
	"trip-assignment-service/internal/ports"
)

var (
	pA = domain.Coordinates{Lon: 100.50184, Lat: 13.75631}
	pB = domain.Coordinates{Lon: 100.98470, Lat: 13.36110}
	pC = domain.Coordinates{Lon: 99.95850, Lat: 12.57070}
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, repositories.InitSchema(conn))
	return conn
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// roundTrip writes one entry keyed a->b and reads it back in both orderings.
func roundTrip(t *testing.T, c ports.DistanceCache) {
	t.Helper()
	ctx := context.Background()

	written := map[domain.PairKey]ports.DistanceCacheEntry{
		domain.NewPairKey(pA, pB): {Km: 81.25, Provenance: domain.ProvenanceMeasured},
	}
	require.NoError(t, c.PutMany(ctx, written))

	for _, k := range []domain.PairKey{domain.NewPairKey(pA, pB), domain.NewPairKey(pB, pA)} {
		got, err := c.GetMany(ctx, []domain.PairKey{k, domain.NewPairKey(pA, pC)})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, ports.DistanceCacheEntry{Km: 81.25, Provenance: domain.ProvenanceMeasured}, got[k])
	}

	// Overwrite keeps one row per pair.
	require.NoError(t, c.PutMany(ctx, map[domain.PairKey]ports.DistanceCacheEntry{
		domain.NewPairKey(pB, pA): {Km: 80, Provenance: domain.ProvenanceMeasured},
	}))
	got, err := c.GetMany(ctx, []domain.PairKey{domain.NewPairKey(pA, pB)})
	require.NoError(t, err)
	assert.Equal(t, 80.0, got[domain.NewPairKey(pA, pB)].Km)

	empty, err := c.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.Error(t, c.PutMany(ctx, map[domain.PairKey]ports.DistanceCacheEntry{
		domain.NewPairKey(pA, pC): {Km: 1, Provenance: "guessed"},
	}))
}

func TestSqliteDistanceCache_RoundTrip(t *testing.T) {
	roundTrip(t, cache.NewSqliteDistanceCache(openSQLite(t)))
}

func TestRedisDistanceCache_RoundTrip(t *testing.T) {
	_, client := newRedis(t)
	roundTrip(t, cache.NewRedisDistanceCache(client, 0))
}

func TestRedisDistanceCache_TTLAndCorruptEntries(t *testing.T) {
	mr, client := newRedis(t)
	c := cache.NewRedisDistanceCache(client, time.Hour)
	ctx := context.Background()

	k := domain.NewPairKey(pA, pB)
	require.NoError(t, c.PutMany(ctx, map[domain.PairKey]ports.DistanceCacheEntry{
		k: {Km: 12.5, Provenance: domain.ProvenanceMeasured},
	}))
	assert.Equal(t, time.Hour, mr.TTL("dist:"+k.String()))

	require.NoError(t, mr.Set("dist:"+domain.NewPairKey(pA, pC).String(), "not-a-number"))
	got, err := c.GetMany(ctx, []domain.PairKey{k, domain.NewPairKey(pA, pC)})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	mr.FastForward(2 * time.Hour)
	got, err = c.GetMany(ctx, []domain.PairKey{k})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSqliteDistanceCache_ManyKeys(t *testing.T) {
	c := cache.NewSqliteDistanceCache(openSQLite(t))
	ctx := context.Background()

	entries := make(map[domain.PairKey]ports.DistanceCacheEntry)
	keys := make([]domain.PairKey, 0, 1000)
	for i := 0; i < 1000; i++ {
		b := domain.Coordinates{Lon: 100 + float64(i)*0.001, Lat: 14}
		k := domain.NewPairKey(pA, b)
		entries[k] = ports.DistanceCacheEntry{Km: float64(i), Provenance: domain.ProvenanceMeasured}
		keys = append(keys, k)
	}
	require.NoError(t, c.PutMany(ctx, entries))

	got, err := c.GetMany(ctx, keys)
	require.NoError(t, err)
	assert.Len(t, got, 1000)
}

func TestSqliteLocationCache_RoundTrip(t *testing.T) {
	c := cache.NewSqliteLocationCache(openSQLite(t))
	ctx := context.Background()

	require.NoError(t, c.PutMany(ctx, map[string]domain.Location{
		"100101": {Code: "100101", Province: "Bangkok", District: "Phra Nakhon", Coords: &domain.Coordinates{Lat: 13.75, Lon: 100.49}},
		"140601": {Code: "140601", Province: "Phra Nakhon Si Ayutthaya", District: "Bang Pa-in"},
	}))

	got, err := c.GetMany(ctx, []string{"100101", " 140601 ", "000000", ""})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got["100101"].Coords)
	assert.InDelta(t, 100.49, got["100101"].Coords.Lon, 1e-9)
	assert.Nil(t, got["140601"].Coords)
	assert.Equal(t, "Bang Pa-in", got["140601"].District)

	require.Error(t, c.PutMany(ctx, map[string]domain.Location{" ": {}}))
}

func TestNilDB(t *testing.T) {
	ctx := context.Background()
	_, err := cache.NewSQLDistanceCache(nil).GetMany(ctx, []domain.PairKey{domain.NewPairKey(pA, pB)})
	require.Error(t, err)
	_, err = cache.NewSQLLocationCache(nil).GetMany(ctx, []string{"x"})
	require.Error(t, err)
	_, err = cache.NewRedisDistanceCache(nil, 0).GetMany(ctx, nil)
	require.Error(t, err)
}
