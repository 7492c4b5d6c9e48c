package liquidity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wavefront-labs/wavebt/internal/simcore"
)

func flatCandles(n int, volume, oi float64) []simcore.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]simcore.Candle, n)
	for i := 0; i < n; i++ {
		out[i] = simcore.Candle{
			Timestamp:    base.Add(time.Duration(i) * time.Hour),
			Volume:       volume,
			OpenInterest: oi,
		}
	}
	return out
}

func TestGate_InsufficientHistoryAlwaysPasses(t *testing.T) {
	candles := flatCandles(baselinePeriod, 100, 100) // exactly baselinePeriod, one short of baselinePeriod+1
	g := NewGate(candles)
	assert.True(t, g.Pass())
}

func TestGate_CollapsedVolumeFails(t *testing.T) {
	candles := flatCandles(baselinePeriod, 100, 100)
	candles = append(candles, simcore.Candle{
		Timestamp:    candles[len(candles)-1].Timestamp.Add(time.Hour),
		Volume:       10, // well under minBaselineFraction(0.25) of the 100 baseline
		OpenInterest: 100,
	})

	g := NewGate(candles)
	assert.False(t, g.Pass())
}

func TestGate_HealthyVolumeAndOIPasses(t *testing.T) {
	candles := flatCandles(baselinePeriod, 100, 100)
	candles = append(candles, simcore.Candle{
		Timestamp:    candles[len(candles)-1].Timestamp.Add(time.Hour),
		Volume:       100,
		OpenInterest: 100,
	})

	g := NewGate(candles)
	assert.True(t, g.Pass())
}

func TestGate_CollapsedOpenInterestFails(t *testing.T) {
	candles := flatCandles(baselinePeriod, 100, 100)
	candles = append(candles, simcore.Candle{
		Timestamp:    candles[len(candles)-1].Timestamp.Add(time.Hour),
		Volume:       100,
		OpenInterest: 5, // well under minBaselineFraction(0.25) of the 100 baseline
	})

	g := NewGate(candles)
	assert.False(t, g.Pass())
}
