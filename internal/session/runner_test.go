package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavefront-labs/wavebt/internal/simcore"
	"github.com/wavefront-labs/wavebt/internal/store"
)

// stubCandles is a simcore.CandleStore test double keyed by pairID.
type stubCandles struct {
	byPair map[string][]simcore.Candle
	errFor map[string]error
}

func (s stubCandles) Candles(_ context.Context, pairID string, _ time.Duration, _, _ time.Time) ([]simcore.Candle, error) {
	if err, ok := s.errFor[pairID]; ok {
		return nil, err
	}
	return s.byPair[pairID], nil
}

// stubSignals is a simcore.SignalSource test double that ignores the filter
// and always returns a fixed slice, matching what a real SignalSource has
// already filtered down to.
type stubSignals struct {
	signals []simcore.Signal
}

func (s stubSignals) Signals(_ context.Context, _ simcore.SignalFilter) ([]simcore.Signal, error) {
	return s.signals, nil
}

// stubParams is a simcore.ParamsSource test double returning a fixed params
// value (or a fixed error).
type stubParams struct {
	params simcore.StrategyParams
	err    error
}

func (s stubParams) BestParams(_ context.Context, _ string) (simcore.StrategyParams, error) {
	return s.params, s.err
}

func validParams() simcore.StrategyParams {
	p := simcore.DefaultStrategyParams()
	p.PositionSize = 100
	p.Leverage = 10
	p.CommissionRate = 0.0006
	p.SlippagePct = 0.05
	p.LiquidationThreshold = 0.9
	p.InitialCapital = 1000
	p.MaxTradesPerWave = 5
	p.TakeProfitPct = 4
	p.StopLossPct = 10
	return p
}

func candle(ts time.Time, o, h, l, c float64) simcore.Candle {
	return simcore.Candle{Timestamp: ts, Open: o, High: h, Low: l, Close: c}
}

// TestRunner_RunSession_AdmitsAndPersists exercises the full plumbing: one
// signal's entire round trip from SignalSource through the scheduler to the
// ResultSink. With a single signal there is only one wave bin, so the
// position's projected close never gets a later wave to be closed-due in —
// it rides open until Finalize forces it closed at simulation_end_time.
func TestRunner_RunSession_AdmitsAndPersists(t *testing.T) {
	entryTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts1 := entryTime.Add(15 * time.Minute)
	ts2 := entryTime.Add(30 * time.Minute)

	history := []simcore.Candle{
		candle(entryTime, 100.00, 100.00, 100.00, 100.00),
		candle(ts1, 100.00, 104.00, 99.50, 103.50),
		candle(ts2, 103.50, 105.00, 103.00, 104.50),
	}

	sink := store.NewMemoryResultSink()
	runner := &Runner{
		Candles: stubCandles{byPair: map[string][]simcore.Candle{"btc-usdt": history}},
		Signals: stubSignals{signals: []simcore.Signal{
			{SignalID: "sig-1", PairSymbol: "BTCUSDT", TradingPairID: "btc-usdt", SignalTimestamp: entryTime, Direction: simcore.Long},
		}},
		Params:    stubParams{params: validParams()},
		Sink:      sink,
		Timeframe: 5 * time.Minute,
	}

	sessionID := uuid.New()
	summary, err := runner.RunSession(context.Background(), Input{
		SessionID:  sessionID,
		ExchangeID: "binance",
		Window:     Window{From: entryTime, To: ts2},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalTrades)
	assert.Equal(t, 1, summary.Wins)
	assert.InDelta(t, 1000+43.80, summary.FinalEquity, 1e-6)

	trades := sink.Trades(sessionID.String())
	require.Len(t, trades, 1)
	assert.Equal(t, simcore.ReasonForcedPeriodEnd, trades[0].CloseReason)
	assert.InDelta(t, 104.50, trades[0].ClosePrice, 1e-9)
	assert.InDelta(t, 43.80, trades[0].NetPnL, 1e-6)

	persisted, ok := sink.Summary(sessionID.String())
	require.True(t, ok)
	assert.Equal(t, summary, persisted)
}

func TestRunner_RunSession_FirstFetchFailureIsFatal(t *testing.T) {
	entryTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	runner := &Runner{
		Candles: stubCandles{errFor: map[string]error{"btc-usdt": errors.New("upstream down")}},
		Signals: stubSignals{signals: []simcore.Signal{
			{SignalID: "sig-1", PairSymbol: "BTCUSDT", TradingPairID: "btc-usdt", SignalTimestamp: entryTime, Direction: simcore.Long},
		}},
		Params:    stubParams{params: validParams()},
		Sink:      store.NewMemoryResultSink(),
		Timeframe: 5 * time.Minute,
	}

	_, err := runner.RunSession(context.Background(), Input{
		SessionID:  uuid.New(),
		ExchangeID: "binance",
		Window:     Window{From: entryTime, To: entryTime.Add(time.Hour)},
	})

	var dsErr *simcore.DataSourceError
	require.ErrorAs(t, err, &dsErr)
	assert.Equal(t, "fetch_candles", dsErr.Op)
}

func TestRunner_RunSession_SubsequentFetchFailureIsNonFatal(t *testing.T) {
	entryTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	history := []simcore.Candle{
		candle(entryTime, 100.00, 100.00, 100.00, 100.00),
		candle(entryTime.Add(15*time.Minute), 100.00, 104.00, 99.50, 103.50),
	}

	runner := &Runner{
		Candles: stubCandles{
			byPair: map[string][]simcore.Candle{"btc-usdt": history},
			errFor: map[string]error{"eth-usdt": errors.New("pair feed down")},
		},
		Signals: stubSignals{signals: []simcore.Signal{
			{SignalID: "sig-btc", PairSymbol: "BTCUSDT", TradingPairID: "btc-usdt", SignalTimestamp: entryTime, Direction: simcore.Long},
			{SignalID: "sig-eth", PairSymbol: "ETHUSDT", TradingPairID: "eth-usdt", SignalTimestamp: entryTime, Direction: simcore.Long},
		}},
		Params:    stubParams{params: validParams()},
		Sink:      store.NewMemoryResultSink(),
		Timeframe: 5 * time.Minute,
	}

	summary, err := runner.RunSession(context.Background(), Input{
		SessionID:  uuid.New(),
		ExchangeID: "binance",
		Window:     Window{From: entryTime, To: entryTime.Add(30 * time.Minute)},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalTrades)
	assert.Equal(t, 1, summary.SkippedByReason[simcore.SkipNoHistory])
}

func TestRunner_RunSession_InvalidParamsRejected(t *testing.T) {
	badParams := validParams()
	badParams.PositionSize = -1 // triggers simcore.StrategyParams.Validate

	runner := &Runner{
		Candles:   stubCandles{},
		Signals:   stubSignals{},
		Params:    stubParams{params: badParams},
		Sink:      store.NewMemoryResultSink(),
		Timeframe: 5 * time.Minute,
	}

	_, err := runner.RunSession(context.Background(), Input{
		SessionID:  uuid.New(),
		ExchangeID: "binance",
		Window:     Window{From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	})

	var cfgErr *simcore.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
