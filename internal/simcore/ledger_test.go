package simcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_TryReserve_InsufficientCapital(t *testing.T) {
	l := NewLedger(100)
	require.NoError(t, l.TryReserve(60))
	err := l.TryReserve(50)
	assert.ErrorIs(t, err, ErrInsufficientCapital)
	assert.InDelta(t, 40, l.AvailableCapital(), 1e-9)
}

func TestLedger_ReserveRelease_EquityIdentity(t *testing.T) {
	l := NewLedger(1000)
	require.NoError(t, l.TryReserve(100))
	l.Release(100, 38.80, 1.20)

	assert.InDelta(t, 1038.80, l.AvailableCapital(), 1e-9)
	assert.InDelta(t, 38.80, l.RealizedPnL(), 1e-9)
	assert.InDelta(t, 1.20, l.CommissionPaid(), 1e-9)
}

func TestLedger_SnapshotEquity_OpenPositionFloatingPnL(t *testing.T) {
	l := NewLedger(1000)
	require.NoError(t, l.TryReserve(100))

	open := map[string]*OpenPosition{
		"BTCUSDT": {PairSymbol: "BTCUSDT", Direction: Long, EntryPrice: 100},
	}
	prices := NewPriceLookup(map[string]float64{"BTCUSDT": 105})

	eq := l.SnapshotEquity(open, 100, 100, prices)
	// available(900) + margin(100) + floating(notional(100)*5%=5) = 1005
	assert.InDelta(t, 1005, eq.Total, 1e-9)
}

func TestLedger_SnapshotEquity_ScalesByEffectiveNotionalNotMargin(t *testing.T) {
	l := NewLedger(1000)
	require.NoError(t, l.TryReserve(100))

	open := map[string]*OpenPosition{
		"BTCUSDT": {PairSymbol: "BTCUSDT", Direction: Long, EntryPrice: 100},
	}
	prices := NewPriceLookup(map[string]float64{"BTCUSDT": 105})

	// margin=100, leverage=5 -> effective_notional=500; a 5% favorable move
	// floats 500*5%=25, not 100*5%=5.
	eq := l.SnapshotEquity(open, 100, 500, prices)
	assert.InDelta(t, 900+100+25, eq.Total, 1e-9)
}

func TestLedger_SnapshotEquity_FloorsFloatingLoss(t *testing.T) {
	l := NewLedger(1000)
	require.NoError(t, l.TryReserve(100))

	open := map[string]*OpenPosition{
		"BTCUSDT": {PairSymbol: "BTCUSDT", Direction: Long, EntryPrice: 100},
	}
	// A catastrophic drop: floating pnl floors at -0.95*margin = -95, not the
	// raw -99%*100=-99.
	prices := NewPriceLookup(map[string]float64{"BTCUSDT": 1})

	eq := l.SnapshotEquity(open, 100, 100, prices)
	assert.InDelta(t, 900+100-95, eq.Total, 1e-9)
}

func TestLedger_SnapshotEquity_TracksMinEquity(t *testing.T) {
	l := NewLedger(1000)
	require.NoError(t, l.TryReserve(100))
	prices := NewPriceLookup(map[string]float64{"BTCUSDT": 100})
	open := map[string]*OpenPosition{"BTCUSDT": {PairSymbol: "BTCUSDT", Direction: Long, EntryPrice: 100}}

	l.SnapshotEquity(open, 100, 100, prices) // equity = 1000
	prices = NewPriceLookup(map[string]float64{"BTCUSDT": 90})
	l.SnapshotEquity(open, 100, 100, prices) // equity drops
	prices = NewPriceLookup(map[string]float64{"BTCUSDT": 110})
	eq := l.SnapshotEquity(open, 100, 100, prices) // equity recovers, min must stay at the trough

	assert.Greater(t, eq.Total, l.MinEquity())
	assert.Less(t, l.MinEquity(), 1000.0)
}

func TestLedger_SnapshotEquity_PanicsOnMissingPrice(t *testing.T) {
	l := NewLedger(1000)
	open := map[string]*OpenPosition{"BTCUSDT": {PairSymbol: "BTCUSDT", Direction: Long, EntryPrice: 100}}
	prices := NewPriceLookup(map[string]float64{"ETHUSDT": 100})

	assert.Panics(t, func() {
		l.SnapshotEquity(open, 100, 100, prices)
	})
}

func TestLedger_ObserveOpenCount_TracksMax(t *testing.T) {
	l := NewLedger(1000)
	l.ObserveOpenCount(2)
	l.ObserveOpenCount(5)
	l.ObserveOpenCount(3)
	assert.Equal(t, 5, l.MaxConcurrentPositions())
}
