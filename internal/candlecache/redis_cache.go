// Package candlecache provides a Redis-backed read-through cache in front of
// a simcore.CandleStore, so repeated fetches of the same (pair, timeframe,
// window) across concurrent sessions don't all hit Postgres. Adapted from
// the prior internal/market.RedisPriceCache, generalized from a single
// price value to a candle slice.
package candlecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/wavefront-labs/wavebt/internal/simcore"
)

// Cache wraps a simcore.CandleStore with a Redis read-through layer. A nil
// client disables caching entirely — every call passes through.
type Cache struct {
	client *redis.Client
	next   simcore.CandleStore
	ttl    time.Duration
}

// New builds a Cache. If client is nil, fetches always miss and pass through
// to next, so callers can wire this unconditionally.
func New(client *redis.Client, next simcore.CandleStore, ttl time.Duration) *Cache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, next: next, ttl: ttl}
}

// Candles implements simcore.CandleStore: check the cache, fall through to
// next on a miss, and best-effort populate the cache with the result. A
// cache error never fails the call — it degrades to an uncached fetch.
func (c *Cache) Candles(ctx context.Context, pairID string, timeframe time.Duration, from, to time.Time) ([]simcore.Candle, error) {
	if c.client == nil {
		return c.next.Candles(ctx, pairID, timeframe, from, to)
	}

	key := c.buildKey(pairID, timeframe, from, to)

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	cached, err := c.client.Get(cacheCtx, key).Result()
	cancel()
	if err == nil {
		var candles []simcore.Candle
		if jsonErr := json.Unmarshal([]byte(cached), &candles); jsonErr == nil {
			log.Debug().Str("key", key).Int("candles", len(candles)).Msg("candle cache hit")
			return candles, nil
		}
		log.Warn().Str("key", key).Msg("failed to unmarshal cached candles, treating as miss")
	} else if err != redis.Nil {
		log.Debug().Err(err).Str("key", key).Msg("redis get error, treating as cache miss")
	}

	candles, err := c.next.Candles(ctx, pairID, timeframe, from, to)
	if err != nil {
		return nil, err
	}

	if data, jsonErr := json.Marshal(candles); jsonErr == nil {
		setCtx, setCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer setCancel()
		if setErr := c.client.Set(setCtx, key, data, c.ttl).Err(); setErr != nil {
			log.Warn().Err(setErr).Str("key", key).Msg("failed to cache candles")
		}
	}

	return candles, nil
}

func (c *Cache) buildKey(pairID string, timeframe time.Duration, from, to time.Time) string {
	return fmt.Sprintf("candles:%s:%d:%d:%d", pairID, int(timeframe.Seconds()), from.Unix(), to.Unix())
}
