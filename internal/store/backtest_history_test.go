package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func run(totalPnL, winRate float64) backtestRun {
	return backtestRun{totalPnL: totalPnL, winRate: winRate}
}

func TestSelectBest_PicksHighestWinRateWithinBandOfMax(t *testing.T) {
	runs := []backtestRun{
		run(1000, 40), // best PnL, but worse win_rate
		run(900, 60),  // within 15% band of 1000 (900 >= 850), higher win_rate wins
		run(700, 90),  // outside the band, excluded despite the best win_rate
	}
	got := selectBest(runs)
	assert.InDelta(t, 900, got.totalPnL, 1e-9)
	assert.InDelta(t, 60, got.winRate, 1e-9)
}

// TestSelectBest_AllNegativePnL covers an exchange whose entire backtest
// history is a net loser. The band must be measured off |best|, not best
// itself, or the best run's own PnL fails its own threshold and the
// function silently falls back to runs[0] regardless of rank.
func TestSelectBest_AllNegativePnL(t *testing.T) {
	runs := []backtestRun{
		run(-500, 30),  // least-bad PnL (the "best" of a bad lot)
		run(-560, 70),  // within 15% of |-500| (gap 60 <= 75), higher win_rate wins
		run(-900, 95),  // outside the band (gap 400 > 75), excluded
	}
	got := selectBest(runs)
	assert.InDelta(t, -560, got.totalPnL, 1e-9)
	assert.InDelta(t, 70, got.winRate, 1e-9)
}

func TestSelectBest_SingleRun(t *testing.T) {
	runs := []backtestRun{run(-200, 50)}
	got := selectBest(runs)
	assert.InDelta(t, -200, got.totalPnL, 1e-9)
	assert.InDelta(t, 50, got.winRate, 1e-9)
}
