package simcore

import (
	"context"
	"time"
)

// CandleStore returns the ordered candle sequence for a pair over a time
// range at a given timeframe. Implementations must be deterministic for a
// fixed (pairID, timeframe, from, to) and must return candles strictly
// increasing in Timestamp with no duplicates.
type CandleStore interface {
	Candles(ctx context.Context, pairID string, timeframe time.Duration, from, to time.Time) ([]Candle, error)
}

// SignalSource returns the signals already satisfying SignalFilter's
// predicate, ordered by SignalTimestamp.
type SignalSource interface {
	Signals(ctx context.Context, filter SignalFilter) ([]Signal, error)
}

// ParamsSource resolves the StrategyParams to use for an exchange, using a
// selection rule that maximizes total_pnl_usd, then among results within 85%
// of the max picks the highest win_rate.
type ParamsSource interface {
	BestParams(ctx context.Context, exchangeID string) (StrategyParams, error)
}

// ResultSink persists trade rows and the session summary. Both operations
// are idempotent on sessionID; AppendTrade is additionally idempotent on
// (sessionID, signalID).
type ResultSink interface {
	AppendTrade(ctx context.Context, sessionID string, trade TradeOutcome) error
	WriteSummary(ctx context.Context, sessionID string, summary SessionSummary, params StrategyParams) error
}

// PriceLookup resolves the current price of an open position's pair. The
// Wave Scheduler must build one covering every still-open pair before calling
// SnapshotEquity — per the Design Notes, there is no "empty price map" to
// accidentally pass: SnapshotEquity takes this interface, not a map, and an
// implementation that can't answer for a requested pair is a programming
// error in the caller, not a silently-tolerated gap.
type PriceLookup interface {
	PriceFor(pairSymbol string) (price float64, ok bool)
}

// PriceLookupFunc adapts a function to PriceLookup.
type PriceLookupFunc func(pairSymbol string) (float64, bool)

func (f PriceLookupFunc) PriceFor(pairSymbol string) (float64, bool) {
	return f(pairSymbol)
}

// mapPriceLookup is the concrete PriceLookup the Wave Scheduler builds each
// wave from the candle close observed for every open pair.
type mapPriceLookup map[string]float64

func (m mapPriceLookup) PriceFor(pairSymbol string) (float64, bool) {
	p, ok := m[pairSymbol]
	return p, ok
}

// NewPriceLookup builds a PriceLookup from a pair->price map.
func NewPriceLookup(prices map[string]float64) PriceLookup {
	return mapPriceLookup(prices)
}
