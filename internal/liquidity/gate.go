// Package liquidity implements the optional liquidity gate referenced by
// simcore.SignalFilter.LiquidityEnabled: a signal is only eligible if its
// pair's recent volume and open interest haven't collapsed relative to their
// trailing baseline. Grounded on the prior internal/indicators.Service,
// which wraps the same cinar/indicator/v2 trend package used here.
package liquidity

import (
	"github.com/cinar/indicator/v2/trend"

	"github.com/wavefront-labs/wavebt/internal/simcore"
)

const (
	// baselinePeriod is the number of trailing candles the EMA baseline is
	// computed over.
	baselinePeriod = 20
	// minBaselineFraction is the minimum fraction of the volume/OI baseline
	// a signal's most recent candle must clear to pass the gate.
	minBaselineFraction = 0.25
)

// Gate evaluates the liquidity predicate for one pair's recent candle
// history. A Gate is built per pair since the baseline is pair-specific.
type Gate struct {
	volumePasses bool
	oiPasses     bool
}

// NewGate computes the gate's verdict from a pair's trailing candles, most
// recent last. Fewer than baselinePeriod+1 candles always passes: there isn't
// enough history yet to call a collapse.
func NewGate(candles []simcore.Candle) Gate {
	if len(candles) < baselinePeriod+1 {
		return Gate{volumePasses: true, oiPasses: true}
	}

	history := candles[:len(candles)-1]
	latest := candles[len(candles)-1]

	volumeBaseline := emaOf(history, func(c simcore.Candle) float64 { return c.Volume })
	oiBaseline := emaOf(history, func(c simcore.Candle) float64 { return c.OpenInterest })

	return Gate{
		volumePasses: volumeBaseline == 0 || latest.Volume >= volumeBaseline*minBaselineFraction,
		oiPasses:     oiBaseline == 0 || latest.OpenInterest >= oiBaseline*minBaselineFraction,
	}
}

// Pass reports whether a signal on this pair clears the gate.
func (g Gate) Pass() bool {
	return g.volumePasses && g.oiPasses
}

func emaOf(candles []simcore.Candle, field func(simcore.Candle) float64) float64 {
	values := make(chan float64, len(candles))
	for _, c := range candles {
		values <- field(c)
	}
	close(values)

	ema := trend.NewEmaWithPeriod[float64](baselinePeriod)
	results := ema.Compute(values)

	var last float64
	for v := range results {
		last = v
	}
	return last
}
