package candlecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavefront-labs/wavebt/internal/simcore"
)

type stubStore struct {
	candles []simcore.Candle
	err     error
	calls   int
}

func (s *stubStore) Candles(_ context.Context, _ string, _ time.Duration, _, _ time.Time) ([]simcore.Candle, error) {
	s.calls++
	return s.candles, s.err
}

func TestCache_NilClientPassesThroughEveryCall(t *testing.T) {
	next := &stubStore{candles: []simcore.Candle{{Close: 100}}}
	c := New(nil, next, 0)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	got, err := c.Candles(context.Background(), "btc-usdt", 5*time.Minute, from, to)
	require.NoError(t, err)
	assert.Equal(t, next.candles, got)

	_, err = c.Candles(context.Background(), "btc-usdt", 5*time.Minute, from, to)
	require.NoError(t, err)

	// No cache to short-circuit on, so the underlying store is hit every time.
	assert.Equal(t, 2, next.calls)
}

func TestCache_NilClientPropagatesUnderlyingError(t *testing.T) {
	next := &stubStore{err: errors.New("store down")}
	c := New(nil, next, 0)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := c.Candles(context.Background(), "btc-usdt", 5*time.Minute, from, from.Add(time.Hour))
	assert.ErrorIs(t, err, next.err)
}

func TestNew_DefaultsTTLWhenZero(t *testing.T) {
	c := New(nil, &stubStore{}, 0)
	assert.Equal(t, 5*time.Minute, c.ttl)
}

func TestNew_KeepsExplicitTTL(t *testing.T) {
	c := New(nil, &stubStore{}, 30*time.Second)
	assert.Equal(t, 30*time.Second, c.ttl)
}
