// Package session orchestrates one backtest run: it resolves strategy
// parameters, fetches signals and candle histories, drives the wave
// scheduler to end of period, and persists the result. It logs per session
// through a session-scoped logger; the simulation core (internal/simcore)
// stays silent.
package session

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/wavefront-labs/wavebt/internal/config"
	"github.com/wavefront-labs/wavebt/internal/liquidity"
	"github.com/wavefront-labs/wavebt/internal/obsmetrics"
	"github.com/wavefront-labs/wavebt/internal/simcore"
)

// Window is the signal/candle time range for a session.
type Window struct {
	From time.Time
	To   time.Time
}

// Input is everything RunSession needs beyond its collaborators.
type Input struct {
	SessionID  uuid.UUID
	UserID     string
	ExchangeID string
	Window     Window
	Filter     simcore.SignalFilter // caller fills score/hour/liquidity thresholds; From/To are set from Window, and a nil SelectedExchanges defaults to {ExchangeID}
	Overrides  []byte               // optional YAML blob merged over the resolved StrategyParams
}

// paramOverrides mirrors StrategyParams with pointer fields so YAML can
// leave unset fields untouched rather than zeroing them.
type paramOverrides struct {
	PositionSize          *float64 `yaml:"position_size"`
	Leverage              *int     `yaml:"leverage"`
	StopLossPct           *float64 `yaml:"stop_loss_pct"`
	TakeProfitPct         *float64 `yaml:"take_profit_pct"`
	UseTrailingStop       *bool    `yaml:"use_trailing_stop"`
	TrailingDistancePct   *float64 `yaml:"trailing_distance_pct"`
	TrailingActivationPct *float64 `yaml:"trailing_activation_pct"`
	CommissionRate        *float64 `yaml:"commission_rate"`
	SlippagePct           *float64 `yaml:"slippage_pct"`
	LiquidationThreshold  *float64 `yaml:"liquidation_threshold"`
	MaxTradesPerWave      *int     `yaml:"max_trades_per_wave"`
	InitialCapital        *float64 `yaml:"initial_capital"`
}

func (o paramOverrides) apply(p simcore.StrategyParams) simcore.StrategyParams {
	if o.PositionSize != nil {
		p.PositionSize = *o.PositionSize
	}
	if o.Leverage != nil {
		p.Leverage = *o.Leverage
	}
	if o.StopLossPct != nil {
		p.StopLossPct = *o.StopLossPct
	}
	if o.TakeProfitPct != nil {
		p.TakeProfitPct = *o.TakeProfitPct
	}
	if o.UseTrailingStop != nil {
		p.UseTrailingStop = *o.UseTrailingStop
	}
	if o.TrailingDistancePct != nil {
		p.TrailingDistancePct = *o.TrailingDistancePct
	}
	if o.TrailingActivationPct != nil {
		p.TrailingActivationPct = *o.TrailingActivationPct
	}
	if o.CommissionRate != nil {
		p.CommissionRate = *o.CommissionRate
	}
	if o.SlippagePct != nil {
		p.SlippagePct = *o.SlippagePct
	}
	if o.LiquidationThreshold != nil {
		p.LiquidationThreshold = *o.LiquidationThreshold
	}
	if o.MaxTradesPerWave != nil {
		p.MaxTradesPerWave = *o.MaxTradesPerWave
	}
	if o.InitialCapital != nil {
		p.InitialCapital = *o.InitialCapital
	}
	return p
}

// Runner orchestrates RunSession over the core's external ports.
type Runner struct {
	Candles   simcore.CandleStore
	Signals   simcore.SignalSource
	Params    simcore.ParamsSource
	Sink      simcore.ResultSink
	Timeframe time.Duration
}

// NewRunner constructs a Runner. timeframe is the candle bar size the
// simulator walks.
func NewRunner(candles simcore.CandleStore, signals simcore.SignalSource, params simcore.ParamsSource, sink simcore.ResultSink, timeframe time.Duration) *Runner {
	return &Runner{
		Candles:   candles,
		Signals:   signals,
		Params:    params,
		Sink:      sink,
		Timeframe: timeframe,
	}
}

// RunSession is the core's one top-level operation.
func (r *Runner) RunSession(ctx context.Context, in Input) (simcore.SessionSummary, error) {
	logger := config.NewSessionLogger(in.SessionID.String()).With().Str("exchange_id", in.ExchangeID).Logger()

	timer := prometheus.NewTimer(obsmetrics.SessionDuration.WithLabelValues(in.ExchangeID))
	defer timer.ObserveDuration()

	params, err := r.Params.BestParams(ctx, in.ExchangeID)
	if err != nil {
		return simcore.SessionSummary{}, &simcore.DataSourceError{Op: "resolve_params", Err: err}
	}
	params.SimulationEndTime = in.Window.To

	if len(in.Overrides) > 0 {
		var o paramOverrides
		if err := yaml.Unmarshal(in.Overrides, &o); err != nil {
			return simcore.SessionSummary{}, &simcore.ConfigError{Errs: simcore.ValidationErrors{{Field: "overrides", Message: err.Error()}}}
		}
		params = o.apply(params)
	}

	if err := params.Validate(); err != nil {
		return simcore.SessionSummary{}, err
	}

	filter := in.Filter
	filter.From, filter.To = in.Window.From, in.Window.To
	if filter.SelectedExchanges == nil {
		filter.SelectedExchanges = map[string]bool{in.ExchangeID: true}
	}

	signals, err := r.Signals.Signals(ctx, filter)
	if err != nil {
		return simcore.SessionSummary{}, &simcore.DataSourceError{Op: "fetch_signals", Err: err}
	}

	histories, eligible, noHistoryCount, err := r.fetchHistories(ctx, signals, params)
	if err != nil {
		return simcore.SessionSummary{}, err
	}

	liquidityRejected := 0
	if filter.LiquidityEnabled {
		eligible, liquidityRejected = filterByLiquidity(eligible, histories)
	}

	ledger := simcore.NewLedger(params.InitialCapital)
	scheduler := simcore.NewScheduler(ledger, params, histories)

	result := simcore.RunResult{Skipped: map[simcore.SkipReason]int{
		simcore.SkipNoHistory:       noHistoryCount,
		simcore.SkipFilterLiquidity: liquidityRejected,
	}}
	for _, bin := range simcore.BinWaves(eligible) {
		if ctx.Err() != nil {
			break
		}
		scheduler.ProcessWave(bin, &result, func() bool { return ctx.Err() != nil })
	}
	scheduler.Finalize(&result)

	summary := summarize(ledger, result)
	obsmetrics.ObserveSummary(in.SessionID.String(), summary)

	for _, trade := range result.Trades {
		if err := r.Sink.AppendTrade(ctx, in.SessionID.String(), trade); err != nil {
			logger.Error().Err(err).Str("signal_id", trade.SignalID).Msg("append trade failed")
		}
	}
	if err := r.Sink.WriteSummary(ctx, in.SessionID.String(), summary, params); err != nil {
		logger.Error().Err(err).Msg("write summary failed")
	}

	logger.Info().
		Int("total_trades", summary.TotalTrades).
		Float64("final_equity", summary.FinalEquity).
		Msg("session complete")

	return summary, nil
}

// fetchHistories eagerly fetches each signal's pair history into an
// in-memory immutable map. Pairs are fetched in sorted order; a failure on
// the session's first fetch is treated as a fatal DataSourceError (the
// upstream is assumed down); a failure on any later pair is non-fatal — the
// affected signals are dropped from eligible and counted under SkipNoHistory.
func (r *Runner) fetchHistories(ctx context.Context, signals []simcore.Signal, params simcore.StrategyParams) (map[string]simcore.PairHistory, []simcore.Signal, int, error) {
	pairIDs := make(map[string]string) // pair_symbol -> trading_pair_id
	order := make([]string, 0)
	from := params.SimulationEndTime.Add(-maxLookback)
	for _, sig := range signals {
		if sig.SignalTimestamp.Before(from) {
			from = sig.SignalTimestamp
		}
		if _, ok := pairIDs[sig.PairSymbol]; !ok {
			pairIDs[sig.PairSymbol] = sig.TradingPairID
			order = append(order, sig.PairSymbol)
		}
	}
	sort.Strings(order)

	histories := make(map[string]simcore.PairHistory, len(order))
	failed := make(map[string]bool)

	for i, pair := range order {
		candles, err := r.Candles.Candles(ctx, pairIDs[pair], r.Timeframe, from, params.SimulationEndTime)
		if err != nil {
			if i == 0 {
				return nil, nil, 0, &simcore.DataSourceError{Op: "fetch_candles", Err: err}
			}
			failed[pair] = true
			continue
		}
		histories[pair] = simcore.NewPairHistory(candles)
	}

	eligible := make([]simcore.Signal, 0, len(signals))
	noHistory := 0
	for _, sig := range signals {
		if failed[sig.PairSymbol] {
			noHistory++
			continue
		}
		eligible = append(eligible, sig)
	}
	return histories, eligible, noHistory, nil
}

// filterByLiquidity drops signals on pairs whose trailing volume/open
// interest has collapsed relative to baseline (internal/liquidity). The gate
// is computed once per pair from its full fetched history rather than
// per-signal, since a signal's own timestamp sits inside the same window the
// history already covers.
func filterByLiquidity(signals []simcore.Signal, histories map[string]simcore.PairHistory) ([]simcore.Signal, int) {
	gates := make(map[string]liquidity.Gate, len(histories))
	for pair, history := range histories {
		gates[pair] = liquidity.NewGate(history.Candles)
	}

	out := make([]simcore.Signal, 0, len(signals))
	rejected := 0
	for _, sig := range signals {
		if gate, ok := gates[sig.PairSymbol]; ok && !gate.Pass() {
			rejected++
			continue
		}
		out = append(out, sig)
	}
	return out, rejected
}

// maxLookback is the minimum reach of a candle fetch before
// simulation_end_time; fetchHistories starts the fetch earlier when a
// session's earliest signal predates that, so every signal's entry candle
// is inside the fetched range.
const maxLookback = 45 * 24 * time.Hour

func summarize(ledger *simcore.Ledger, result simcore.RunResult) simcore.SessionSummary {
	summary := simcore.SessionSummary{
		InitialCapital:         ledger.InitialCapital(),
		FinalEquity:            ledger.AvailableCapital(),
		RealizedPnL:            ledger.RealizedPnL(),
		CommissionPaid:         ledger.CommissionPaid(),
		MinEquity:              ledger.MinEquity(),
		MaxConcurrentPositions: ledger.MaxConcurrentPositions(),
		SkippedByReason:        result.Skipped,
	}

	peak := summary.InitialCapital
	equity := summary.InitialCapital
	maxDrawdownUSD := 0.0

	sorted := make([]simcore.TradeOutcome, len(result.Trades))
	copy(sorted, result.Trades)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CloseTime.Before(sorted[j].CloseTime) })

	for _, t := range sorted {
		summary.TotalTrades++
		switch {
		case t.NetPnL > 0:
			summary.Wins++
		case t.NetPnL < 0:
			summary.Losses++
		default:
			summary.Breakevens++
		}
		equity += t.NetPnL
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > maxDrawdownUSD {
			maxDrawdownUSD = dd
		}
	}

	if summary.TotalTrades > 0 {
		summary.WinRate = float64(summary.Wins) / float64(summary.TotalTrades) * 100.0
	}
	summary.MaxDrawdownUSD = maxDrawdownUSD
	if peak > 0 {
		summary.MaxDrawdownPct = maxDrawdownUSD / peak * 100.0
	}
	return summary
}
