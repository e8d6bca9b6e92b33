package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clierrors "github.com/lowtide-labs/boatclient/errors"
	"github.com/lowtide-labs/boatclient/game"
	"github.com/lowtide-labs/boatclient/logger"
)

type countingAggregator struct {
	calls int
	rows  []game.PlayerStat
	fail  bool
}

func (c *countingAggregator) FetchTop(_ context.Context, _ string, _ int) ([]game.PlayerStat, error) {
	c.calls++
	if c.fail {
		return nil, clierrors.New(clierrors.KindAggregationUnavailable, "down", nil)
	}
	return append([]game.PlayerStat(nil), c.rows...), nil
}

func newTestCache(agg Aggregator) *Cache {
	return NewCache(agg, nil, CacheConfig{
		TTL:         2 * time.Minute,
		MinInterval: 10 * time.Second,
		Limit:       10,
	}, logger.Nop())
}

func TestLoadServesFromCacheWithinTTL(t *testing.T) {
	agg := &countingAggregator{rows: []game.PlayerStat{
		{Account: "0xaa", Wins: 5, Runs: 9},
		{Account: "0xbb", Wins: 3, Runs: 4},
	}}
	cache := newTestCache(agg)

	base := time.Now()
	cache.now = func() time.Time { return base }

	first := cache.Load(context.Background(), "BOAT", false)
	require.Len(t, first.Rows, 2)
	require.Equal(t, 1, agg.calls)
	assert.Equal(t, SourceLive, first.Source)

	cache.now = func() time.Time { return base.Add(time.Minute) }
	second := cache.Load(context.Background(), "BOAT", false)
	assert.Equal(t, 1, agg.calls, "within TTL the aggregator must not be consulted")
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, first.FetchedAt, second.FetchedAt)
	assert.Equal(t, SourceCached, second.Source)

	cache.now = func() time.Time { return base.Add(3 * time.Minute) }
	third := cache.Load(context.Background(), "BOAT", false)
	assert.Equal(t, 2, agg.calls, "after TTL expiry the aggregator refreshes")
	assert.Equal(t, SourceLive, third.Source)
}

func TestLoadForceBypassesTTL(t *testing.T) {
	agg := &countingAggregator{rows: []game.PlayerStat{{Account: "0xaa", Wins: 1, Runs: 1}}}
	cache := newTestCache(agg)

	base := time.Now()
	cache.now = func() time.Time { return base }
	cache.Load(context.Background(), "BOAT", false)
	require.Equal(t, 1, agg.calls)

	// Still well within the TTL, but past the rate-limit floor.
	cache.now = func() time.Time { return base.Add(30 * time.Second) }
	forced := cache.Load(context.Background(), "BOAT", true)
	assert.Equal(t, 2, agg.calls, "force refetches a snapshot the TTL would have served")
	assert.Equal(t, SourceLive, forced.Source)
}

func TestLoadForceStillHonorsRateLimit(t *testing.T) {
	agg := &countingAggregator{rows: []game.PlayerStat{{Account: "0xaa", Wins: 1, Runs: 1}}}
	cache := newTestCache(agg)

	base := time.Now()
	cache.now = func() time.Time { return base }
	cache.Load(context.Background(), "BOAT", false)
	require.Equal(t, 1, agg.calls)

	cache.now = func() time.Time { return base.Add(5 * time.Second) }
	forced := cache.Load(context.Background(), "BOAT", true)
	assert.Equal(t, 1, agg.calls, "force never breaks the aggregator rate limit")
	assert.Equal(t, SourceCached, forced.Source)
	assert.Len(t, forced.Rows, 1)
}

func TestLoadRateLimitReusesStaleSnapshot(t *testing.T) {
	agg := &countingAggregator{rows: []game.PlayerStat{{Account: "0xaa", Wins: 1, Runs: 1}}}
	cache := newTestCache(agg)

	base := time.Now()
	cache.now = func() time.Time { return base }
	cache.Load(context.Background(), "BOAT", false)
	require.Equal(t, 1, agg.calls)

	// Past TTL but inside the min-interval window: stale data is reused.
	cache.cfg.TTL = time.Millisecond
	cache.now = func() time.Time { return base.Add(5 * time.Second) }
	snap := cache.Load(context.Background(), "BOAT", false)
	assert.Equal(t, 1, agg.calls)
	assert.Len(t, snap.Rows, 1)
	assert.Equal(t, SourceCached, snap.Source)
}

func TestLoadSyntheticFallbackIsDeterministic(t *testing.T) {
	cache := newTestCache(&countingAggregator{fail: true})

	first := cache.Load(context.Background(), "BOAT", false)
	require.NotEmpty(t, first.Rows)
	assert.Equal(t, SourceSynthetic, first.Source)

	other := newTestCache(&countingAggregator{fail: true})
	second := other.Load(context.Background(), "BOAT", false)
	assert.Equal(t, first.Rows, second.Rows, "fallback must be stable across instances")

	joint := other.Load(context.Background(), "JOINT", false)
	assert.NotEqual(t, first.Rows, joint.Rows, "partitions get distinct fallback boards")
}

func TestLoadSyntheticSourceSurvivesReServe(t *testing.T) {
	cache := newTestCache(&countingAggregator{fail: true})

	base := time.Now()
	cache.now = func() time.Time { return base }
	require.Equal(t, SourceSynthetic, cache.Load(context.Background(), "BOAT", false).Source)

	// Served again from cache, the board still declares itself synthetic.
	cache.now = func() time.Time { return base.Add(time.Minute) }
	again := cache.Load(context.Background(), "BOAT", false)
	assert.Equal(t, SourceSynthetic, again.Source)
}

func TestLoadFailureAfterSuccessKeepsLastSnapshot(t *testing.T) {
	agg := &countingAggregator{rows: []game.PlayerStat{{Account: "0xaa", Wins: 7, Runs: 8}}}
	cache := newTestCache(agg)

	base := time.Now()
	cache.now = func() time.Time { return base }
	live := cache.Load(context.Background(), "BOAT", false)

	agg.fail = true
	cache.now = func() time.Time { return base.Add(5 * time.Minute) }
	snap := cache.Load(context.Background(), "BOAT", false)
	assert.Equal(t, live.Rows, snap.Rows)
	assert.Equal(t, SourceCached, snap.Source, "a real snapshot is never replaced by a synthetic one")
}

func TestSyntheticBoardSorted(t *testing.T) {
	rows := syntheticBoard("LIZARD", 20)
	for i := 1; i < len(rows); i++ {
		assert.GreaterOrEqual(t, rows[i-1].Wins, rows[i].Wins)
	}
}
