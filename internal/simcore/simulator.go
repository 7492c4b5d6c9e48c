package simcore

import (
	"math"
	"time"
)

// SimResult is what the Position Simulator produces for one signal: either
// NoEntry (the signal is skipped upstream) or a projected
// TradeOutcome describing how and when the position would close absent new
// information.
type SimResult struct {
	NoEntry bool
	Outcome TradeOutcome
}

// Simulate walks history (the candle sequence for sig's pair, starting at or
// after sig.SignalTimestamp) and produces the trade outcome for sig under
// params three-phase timeline.
//
// Intra-bar ordering, per the Design Notes / open question #1: for LONG,
// liquidation is checked before stop-loss before take-profit; for SHORT,
// liquidation is checked before take-profit before stop-loss. This is the
// faithful reading of §4.2's evaluation order and is not exposed as a
// parameter — nothing in this spec needs it configurable.
func Simulate(sig Signal, history []Candle, params StrategyParams) SimResult {
	entryIdx := -1
	for i, c := range history {
		if !c.Timestamp.Before(sig.SignalTimestamp) && !c.Timestamp.After(params.SimulationEndTime) {
			entryIdx = i
			break
		}
	}
	if entryIdx == -1 {
		return SimResult{NoEntry: true}
	}

	entryCandle := history[entryIdx]
	entry := entryCandle.Open
	dir := sig.Direction

	effectiveNotional := params.EffectiveNotional()
	entryCommission := effectiveNotional * params.CommissionRate

	slPrice := priceOffset(dir, entry, -params.StopLossPct)
	tpPrice := priceOffset(dir, entry, params.TakeProfitPct)
	activationPrice := priceOffset(dir, entry, params.TrailingActivationPct)

	tEntry := sig.SignalTimestamp
	tPhase1End := tEntry.Add(params.Phase1Hours)
	tBreakevenEnd := tPhase1End.Add(params.BreakevenWindowHours)

	peak := entry
	trailingActive := false
	trailingStop := 0.0
	var activationCandleTime time.Time

	lastClose := entryCandle.Close
	lastTimestamp := entryCandle.Timestamp

	closeTime := time.Time{}
	closePrice := 0.0
	reason := ReasonNone

	for i := entryIdx + 1; i < len(history); i++ {
		c := history[i]
		if c.Timestamp.After(params.SimulationEndTime) {
			break
		}
		lastClose = c.Close
		lastTimestamp = c.Timestamp

		// Peak tracking spans the whole walk, independent of phase or
		// whether trailing is enabled (it backs both the trailing machine's
		// arm/ratchet decisions and the peak-profit snapshot).
		if dir == Long {
			peak = math.Max(peak, c.High)
		} else {
			peak = math.Min(peak, c.Low)
		}

		switch {
		case !c.Timestamp.After(tPhase1End):
			if r, price, ok := evalPhase1(dir, c, entry, slPrice, tpPrice, params, &trailingActive, &trailingStop, &activationCandleTime, peak, activationPrice); ok {
				reason, closePrice, closeTime = r, price, c.Timestamp
			}
		case !c.Timestamp.After(tBreakevenEnd):
			if breakevenHit(dir, c, entry) {
				reason, closePrice, closeTime = ReasonBreakeven, entry, c.Timestamp
			}
		default:
			h := math.Ceil(c.Timestamp.Sub(tBreakevenEnd).Hours())
			if h < 1 {
				h = 1
			}
			pct := params.SmartLossPctPerHour * h
			closePrice = priceOffset(dir, entry, -pct)
			reason = ReasonSmartLoss
			closeTime = c.Timestamp
		}

		if reason != ReasonNone {
			break
		}
	}

	if reason == ReasonNone {
		// Period-end guard: the walk reached simulation_end_time without a
		// trigger. The Scheduler's finalization pass re-evaluates and may
		// relabel this to forced_liquidation.
		reason = ReasonForcedPeriodEnd
		closePrice = lastClose
		closeTime = params.SimulationEndTime
		if lastTimestamp.After(params.SimulationEndTime) {
			closeTime = lastTimestamp
		}
	}

	closePrice = applySlippage(dir, reason, closePrice, params.SlippagePct)
	gross, exitComm, netRaw := computePnL(dir, entry, closePrice, effectiveNotional, entryCommission, params.CommissionRate)
	net := capLoss(netRaw, params.PositionSize, entryCommission)

	peakPct := math.Abs(pctMove(dir, entry, peak))
	maxPotential := effectiveNotional*peakPct/100.0 - 2*entryCommission
	if maxPotential < 0 {
		maxPotential = 0
	}

	return SimResult{
		Outcome: TradeOutcome{
			SignalID:           sig.SignalID,
			PairSymbol:         sig.PairSymbol,
			Direction:          dir,
			EntryTime:          entryCandle.Timestamp,
			EntryPrice:         entry,
			EntryCommission:    entryCommission,
			CloseTime:          closeTime,
			ClosePrice:         closePrice,
			CloseReason:        reason,
			GrossPnL:           gross,
			ExitCommission:     exitComm,
			NetPnL:             net,
			PeakFavorablePrice: peak,
			MaxPotentialNetPnL: maxPotential,
		},
	}
}

// evalPhase1 runs the phase-1 evaluation order for one candle and returns
// (reason, price, triggered). trailingActive/trailingStop/activationCandleTime
// are mutated in place as the trailing-stop state machine advances — they
// persist across candles regardless of whether this candle triggers a close.
func evalPhase1(
	dir Direction,
	c Candle,
	entry, slPrice, tpPrice float64,
	params StrategyParams,
	trailingActive *bool,
	trailingStop *float64,
	activationCandleTime *time.Time,
	peak, activationPrice float64,
) (CloseReason, float64, bool) {
	// 1. Liquidation — worst intra-bar touch.
	var unrealizedPct float64
	if dir == Long {
		unrealizedPct = (c.Low - entry) / entry * 100.0
	} else {
		unrealizedPct = (entry - c.High) / entry * 100.0
	}
	liqThreshold := -(100.0 / float64(params.Leverage)) * params.LiquidationThreshold
	if unrealizedPct <= liqThreshold {
		liqPrice := c.Low
		if dir == Short {
			liqPrice = c.High
		}
		return ReasonLiquidation, liqPrice, true
	}

	fixedSLHit := func() bool {
		if dir == Long {
			return c.Low <= slPrice
		}
		return c.High >= slPrice
	}
	takeProfitHit := func() bool {
		if dir == Long {
			return c.High >= tpPrice
		}
		return c.Low <= tpPrice
	}

	checkSL := func() (CloseReason, float64, bool) {
		// A fixed stop-loss is superseded by the trailing stop once armed.
		if *trailingActive {
			return ReasonNone, 0, false
		}
		if fixedSLHit() {
			return ReasonStopLoss, slPrice, true
		}
		return ReasonNone, 0, false
	}
	checkTP := func() (CloseReason, float64, bool) {
		if params.UseTrailingStop {
			return ReasonNone, 0, false
		}
		if takeProfitHit() {
			return ReasonTakeProfit, tpPrice, true
		}
		return ReasonNone, 0, false
	}

	if dir == Long {
		if r, p, ok := checkSL(); ok {
			return r, p, true
		}
		if r, p, ok := checkTP(); ok {
			return r, p, true
		}
	} else {
		if r, p, ok := checkTP(); ok {
			return r, p, true
		}
		if r, p, ok := checkSL(); ok {
			return r, p, true
		}
	}

	// 4. Trailing-stop machine.
	if params.UseTrailingStop {
		if !*trailingActive {
			armed := (dir == Long && peak >= activationPrice) || (dir == Short && peak <= activationPrice)
			if armed {
				*trailingActive = true
				*activationCandleTime = c.Timestamp
				*trailingStop = priceOffset(dir, peak, -params.TrailingDistancePct)
			}
		} else {
			newLevel := priceOffset(dir, peak, -params.TrailingDistancePct)
			if dir == Long {
				*trailingStop = math.Max(*trailingStop, newLevel)
			} else {
				*trailingStop = math.Min(*trailingStop, newLevel)
			}
		}

		if *trailingActive && !c.Timestamp.Equal(*activationCandleTime) {
			triggered := (dir == Long && c.Low <= *trailingStop) || (dir == Short && c.High >= *trailingStop)
			if triggered {
				return ReasonTrailingStop, *trailingStop, true
			}
		}
	}

	return ReasonNone, 0, false
}

func breakevenHit(dir Direction, c Candle, entry float64) bool {
	if dir == Long {
		return c.High >= entry
	}
	return c.Low <= entry
}

// priceOffset applies a favorable-positive percent offset to price in the
// direction-correct sense: for LONG, price*(1+pct/100); for SHORT,
// price*(1-pct/100). A negative pct moves the result unfavorably.
func priceOffset(dir Direction, price, pct float64) float64 {
	if dir == Long {
		return price * (1 + pct/100.0)
	}
	return price * (1 - pct/100.0)
}

// applySlippage nudges the close price further adverse for the reasons the
// Design Notes call out (stop_loss, liquidation, trailing_stop,
// forced_liquidation); take_profit, breakeven, smart_loss and
// forced_period_end are untouched.
func applySlippage(dir Direction, reason CloseReason, price, slippagePct float64) float64 {
	if !reason.appliesSlippage() {
		return price
	}
	return priceOffset(dir, price, -slippagePct)
}

// computePnL computes gross PnL, exit commission, and uncapped net PnL for
// an exit at exitPrice.
func computePnL(dir Direction, entry, exitPrice, effectiveNotional, entryCommission, commissionRate float64) (gross, exitComm, netRaw float64) {
	pnlPct := pctMove(dir, entry, exitPrice)
	gross = effectiveNotional * pnlPct / 100.0
	exitComm = effectiveNotional * commissionRate
	netRaw = gross - entryCommission - exitComm
	return gross, exitComm, netRaw
}

// capLoss is the single loss-capping function, applied at every exit site
// (TP/SL, trailing, liquidation, breakeven, smart-loss, forced closure) per
// the Design Notes. It is total over CloseReason.
func capLoss(netPnLRaw, positionSize, entryCommission float64) float64 {
	maxLoss := -(positionSize - entryCommission)
	return math.Max(netPnLRaw, maxLoss)
}
