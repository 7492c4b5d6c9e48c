package simcore

import (
	"sort"
	"time"
)

// PairHistory is the immutable, pre-fetched candle sequence for one pair,
// built once by the Session Runner before the wave loop starts.
type PairHistory struct {
	Candles []Candle // ascending Timestamp, no duplicates
}

// NewPairHistory wraps an already-ordered candle slice.
func NewPairHistory(candles []Candle) PairHistory {
	return PairHistory{Candles: candles}
}

// CloseAt returns the close of the last candle with Timestamp <= t.
func (h PairHistory) CloseAt(t time.Time) (float64, bool) {
	idx := sort.Search(len(h.Candles), func(i int) bool {
		return h.Candles[i].Timestamp.After(t)
	})
	if idx == 0 {
		return 0, false
	}
	return h.Candles[idx-1].Close, true
}

// From returns the subslice of candles with Timestamp >= t, for feeding the
// Position Simulator the history starting at a signal's timestamp.
func (h PairHistory) From(t time.Time) []Candle {
	idx := sort.Search(len(h.Candles), func(i int) bool {
		return !h.Candles[i].Timestamp.Before(t)
	})
	return h.Candles[idx:]
}
