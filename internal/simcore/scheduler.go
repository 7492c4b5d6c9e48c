package simcore

import (
	"sort"
	"time"
)

// RunResult is what the Wave Scheduler produces for a full session: the
// append-only trade ledger and the per-reason skip tally.
type RunResult struct {
	Trades  []TradeOutcome
	Skipped map[SkipReason]int
}

// Scheduler bins signals into 15-minute waves, orders each cohort, and
// drives admission against the Capital Ledger and Position Simulator. It
// owns the open-positions map and is otherwise pure over its inputs — all
// candle I/O has already happened by the time histories is built.
type Scheduler struct {
	ledger    *Ledger
	params    StrategyParams
	histories map[string]PairHistory
	open      map[string]*OpenPosition
}

// NewScheduler constructs a Scheduler over a session's ledger, parameters,
// and pre-fetched per-pair candle histories.
func NewScheduler(ledger *Ledger, params StrategyParams, histories map[string]PairHistory) *Scheduler {
	return &Scheduler{
		ledger:    ledger,
		params:    params,
		histories: histories,
		open:      make(map[string]*OpenPosition),
	}
}

// waveKey buckets t into its 15-minute wave.
func waveKey(t time.Time) time.Time {
	t = t.UTC()
	bucket := (t.Minute() / 15) * 15
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), bucket, 0, 0, time.UTC)
}

// WaveBin is one 15-minute cohort: its wave time and its signals in
// admission order.
type WaveBin struct {
	Time    time.Time
	Signals []Signal
}

// BinWaves groups signals into 15-minute waves and orders each cohort by
// score_week desc, score_month desc, signal_id asc, returning bins sorted by
// wave time ascending. It is a pure function with no Scheduler state, so the
// Session Runner can compute the full wave sequence once up front and drive
// ProcessWave itself, checking for cancellation between waves.
func BinWaves(signals []Signal) []WaveBin {
	byWave := make(map[time.Time][]Signal)
	for _, sig := range signals {
		k := waveKey(sig.SignalTimestamp)
		byWave[k] = append(byWave[k], sig)
	}
	bins := make([]WaveBin, 0, len(byWave))
	for t, sigs := range byWave {
		bins = append(bins, WaveBin{Time: t, Signals: orderWave(sigs)})
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i].Time.Before(bins[j].Time) })
	return bins
}

// ProcessWave runs one wave's processing step: close-due, then
// update-equity, then admit. The Session Runner calls this once per WaveBin
// in ascending time order; the Scheduler itself takes no context.
// cancelled, if non-nil, is polled between signals within the admission
// step so the Runner can honor cooperative cancellation at that finer grain
// without the Scheduler importing context itself — admission simply stops
// early, leaving unreached signals in this wave unprocessed.
func (s *Scheduler) ProcessWave(bin WaveBin, result *RunResult, cancelled func() bool) {
	s.closeDue(bin.Time, result)
	s.updateEquity(bin.Time)
	s.admit(bin.Time, bin.Signals, result, cancelled)
}

// Finalize runs the Scheduler's final pass over any position still open
// after the last wave. The Session Runner calls this once, after the last
// WaveBin (or immediately, on cooperative cancellation — cancellation still
// finalizes via the forced-close path so the ledger invariant holds).
func (s *Scheduler) Finalize(result *RunResult) {
	s.finalize(result)
}

// Run is a convenience wrapper over BinWaves + ProcessWave + Finalize for
// callers that don't need mid-run cancellation (tests, single-shot CLI
// runs without a context).
func (s *Scheduler) Run(signals []Signal) RunResult {
	result := RunResult{Skipped: make(map[SkipReason]int)}
	for _, bin := range BinWaves(signals) {
		s.ProcessWave(bin, &result, nil)
	}
	s.Finalize(&result)
	return result
}

// orderWave sorts a wave's signals by score_week desc, score_month desc,
// signal_id asc.
func orderWave(signals []Signal) []Signal {
	ordered := make([]Signal, len(signals))
	copy(ordered, signals)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.ScoreWeek != b.ScoreWeek {
			return a.ScoreWeek > b.ScoreWeek
		}
		if a.ScoreMonth != b.ScoreMonth {
			return a.ScoreMonth > b.ScoreMonth
		}
		return a.SignalID < b.SignalID
	})
	return ordered
}

// closeDue releases and appends every open position whose projected close
// has arrived by waveTime.
func (s *Scheduler) closeDue(waveTime time.Time, result *RunResult) {
	for pair, pos := range s.open {
		if pos.ProjectedCloseTime.After(waveTime) {
			continue
		}
		s.ledger.Release(s.params.PositionSize, pos.ProjectedNetPnL, pos.EntryCommission+pos.ProjectedExitComm)
		result.Trades = append(result.Trades, outcomeFromOpen(pos))
		delete(s.open, pair)
	}
}

// updateEquity builds a price lookup from the last close at or before
// waveTime for every still-open pair and snapshots equity. A pair with no
// such candle is left out of the lookup, and SnapshotEquity panics on it
// rather than valuing the position at a zero price.
func (s *Scheduler) updateEquity(waveTime time.Time) {
	s.ledger.ObserveOpenCount(len(s.open))
	if len(s.open) == 0 {
		return
	}
	prices := make(map[string]float64, len(s.open))
	for pair := range s.open {
		if price, ok := s.histories[pair].CloseAt(waveTime); ok {
			prices[pair] = price
		}
	}
	s.ledger.SnapshotEquity(s.open, s.params.PositionSize, s.params.EffectiveNotional(), NewPriceLookup(prices))
}

// admit runs the per-wave admission step over orderedSignals.
func (s *Scheduler) admit(waveTime time.Time, orderedSignals []Signal, result *RunResult, cancelled func() bool) {
	admitted := 0
	stopReason := SkipReason("")

	for _, sig := range orderedSignals {
		if cancelled != nil && cancelled() {
			return
		}
		if stopReason != "" {
			result.Skipped[stopReason]++
			continue
		}
		if admitted >= s.params.MaxTradesPerWave {
			stopReason = SkipWaveCapReached
			result.Skipped[stopReason]++
			continue
		}
		if _, open := s.open[sig.PairSymbol]; open {
			result.Skipped[SkipDuplicatePair]++
			continue
		}
		if err := s.ledger.TryReserve(s.params.PositionSize); err != nil {
			stopReason = SkipInsufficientCapital
			result.Skipped[stopReason]++
			continue
		}

		history := s.histories[sig.PairSymbol].From(sig.SignalTimestamp)
		sim := Simulate(sig, history, s.params)
		if sim.NoEntry {
			s.ledger.Release(s.params.PositionSize, 0, 0)
			result.Skipped[SkipNoEntry]++
			continue
		}

		out := sim.Outcome
		if !out.CloseTime.After(waveTime) {
			// Opens and closes within the same wave.
			s.ledger.Release(s.params.PositionSize, out.NetPnL, out.EntryCommission+out.ExitCommission)
			result.Trades = append(result.Trades, out)
			continue
		}

		s.open[sig.PairSymbol] = &OpenPosition{
			PairSymbol:           sig.PairSymbol,
			SignalID:             out.SignalID,
			Direction:            out.Direction,
			EntryTime:            out.EntryTime,
			EntryPrice:           out.EntryPrice,
			EntryCommission:      out.EntryCommission,
			ProjectedCloseTime:   out.CloseTime,
			ProjectedClosePrice:  out.ClosePrice,
			ProjectedCloseReason: out.CloseReason,
			ProjectedNetPnL:      out.NetPnL,
			ProjectedGrossPnL:    out.GrossPnL,
			ProjectedExitComm:    out.ExitCommission,
			PeakFavorablePrice:   out.PeakFavorablePrice,
			MaxPotentialNetPnL:   out.MaxPotentialNetPnL,
		}
		admitted++
		s.ledger.ObserveOpenCount(len(s.open))
	}
}

// finalize runs the Scheduler's final pass: every position still open after
// the last wave is forced closed at simulation_end_time,
// relabeled forced_liquidation when the implied loss exceeds
// forced_close_max_loss_fraction of margin.
func (s *Scheduler) finalize(result *RunResult) {
	pairs := make([]string, 0, len(s.open))
	for pair := range s.open {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		pi, pj := s.open[pairs[i]], s.open[pairs[j]]
		if !pi.ProjectedCloseTime.Equal(pj.ProjectedCloseTime) {
			return pi.ProjectedCloseTime.Before(pj.ProjectedCloseTime)
		}
		return pairs[i] < pairs[j]
	})

	for _, pair := range pairs {
		pos := s.open[pair]
		lastPrice, ok := s.histories[pair].CloseAt(s.params.SimulationEndTime)
		if !ok {
			lastPrice = pos.ProjectedClosePrice
		}

		effectiveNotional := s.params.EffectiveNotional()
		pnlPct := pctMove(pos.Direction, pos.EntryPrice, lastPrice)
		lossThresholdPct := -s.params.ForcedCloseMaxLossFraction * s.params.PositionSize / effectiveNotional * 100.0

		reason := ReasonForcedPeriodEnd
		if pnlPct < lossThresholdPct {
			reason = ReasonForcedLiquidation
			lastPrice = priceOffset(pos.Direction, pos.EntryPrice, pnlPct)
		}
		lastPrice = applySlippage(pos.Direction, reason, lastPrice, s.params.SlippagePct)

		gross, exitComm, netRaw := computePnL(pos.Direction, pos.EntryPrice, lastPrice, effectiveNotional, pos.EntryCommission, s.params.CommissionRate)
		net := capLoss(netRaw, s.params.PositionSize, pos.EntryCommission)

		out := TradeOutcome{
			SignalID:           pos.SignalID,
			PairSymbol:         pos.PairSymbol,
			Direction:          pos.Direction,
			EntryTime:          pos.EntryTime,
			EntryPrice:         pos.EntryPrice,
			EntryCommission:    pos.EntryCommission,
			CloseTime:          s.params.SimulationEndTime,
			ClosePrice:         lastPrice,
			CloseReason:        reason,
			GrossPnL:           gross,
			ExitCommission:     exitComm,
			NetPnL:             net,
			PeakFavorablePrice: pos.PeakFavorablePrice,
			MaxPotentialNetPnL: pos.MaxPotentialNetPnL,
		}

		s.ledger.Release(s.params.PositionSize, net, pos.EntryCommission+exitComm)
		result.Trades = append(result.Trades, out)
		delete(s.open, pair)
	}
}

func outcomeFromOpen(pos *OpenPosition) TradeOutcome {
	return TradeOutcome{
		SignalID:           pos.SignalID,
		PairSymbol:         pos.PairSymbol,
		Direction:          pos.Direction,
		EntryTime:          pos.EntryTime,
		EntryPrice:         pos.EntryPrice,
		EntryCommission:    pos.EntryCommission,
		CloseTime:          pos.ProjectedCloseTime,
		ClosePrice:         pos.ProjectedClosePrice,
		CloseReason:        pos.ProjectedCloseReason,
		GrossPnL:           pos.ProjectedGrossPnL,
		ExitCommission:     pos.ProjectedExitComm,
		NetPnL:             pos.ProjectedNetPnL,
		PeakFavorablePrice: pos.PeakFavorablePrice,
		MaxPotentialNetPnL: pos.MaxPotentialNetPnL,
	}
}
