package simcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func histCandles(base time.Time, step time.Duration, closes ...float64) []Candle {
	out := make([]Candle, len(closes))
	for i, c := range closes {
		ts := base.Add(time.Duration(i) * step)
		out[i] = Candle{Timestamp: ts, Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func TestPairHistory_CloseAt(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewPairHistory(histCandles(base, time.Hour, 10, 20, 30))

	t.Run("exact match", func(t *testing.T) {
		price, ok := h.CloseAt(base.Add(time.Hour))
		assert.True(t, ok)
		assert.Equal(t, 20.0, price)
	})

	t.Run("between candles returns the last one at or before", func(t *testing.T) {
		price, ok := h.CloseAt(base.Add(90 * time.Minute))
		assert.True(t, ok)
		assert.Equal(t, 20.0, price)
	})

	t.Run("before first candle", func(t *testing.T) {
		_, ok := h.CloseAt(base.Add(-time.Minute))
		assert.False(t, ok)
	})

	t.Run("after last candle", func(t *testing.T) {
		price, ok := h.CloseAt(base.Add(10 * time.Hour))
		assert.True(t, ok)
		assert.Equal(t, 30.0, price)
	})
}

func TestPairHistory_From(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewPairHistory(histCandles(base, time.Hour, 10, 20, 30))

	sub := h.From(base.Add(time.Hour))
	assert.Len(t, sub, 2)
	assert.Equal(t, 20.0, sub[0].Close)

	assert.Len(t, h.From(base.Add(10*time.Hour)), 0)
	assert.Len(t, h.From(base.Add(-time.Hour)), 3)
}
