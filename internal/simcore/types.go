// Package simcore implements the wave-based backtesting engine: the
// per-position lifecycle simulator and the wave scheduler that drives it.
// The package is pure — no I/O, no logging, no persistence. Everything it
// needs comes in through the ports in ports.go.
package simcore

import "time"

// Direction is the side of a position.
type Direction int

const (
	Long Direction = iota
	Short
)

func (d Direction) String() string {
	if d == Short {
		return "SHORT"
	}
	return "LONG"
}

// DirectionFromSignalAction maps the signal vocabulary (BUY/SELL, LONG/SHORT)
// onto Direction.
func DirectionFromSignalAction(action string) (Direction, bool) {
	switch action {
	case "LONG", "BUY":
		return Long, true
	case "SHORT", "SELL":
		return Short, true
	default:
		return 0, false
	}
}

// CloseReason is a closed sum type for why a position was closed. Kept as a
// tagged enum rather than a string so the loss-capping function (capLoss) is
// total over it and callers can't typo a reason into existence.
type CloseReason int

const (
	ReasonNone CloseReason = iota
	ReasonTakeProfit
	ReasonStopLoss
	ReasonTrailingStop
	ReasonLiquidation
	ReasonBreakeven
	ReasonSmartLoss
	ReasonForcedPeriodEnd
	ReasonForcedLiquidation
)

func (r CloseReason) String() string {
	switch r {
	case ReasonTakeProfit:
		return "take_profit"
	case ReasonStopLoss:
		return "stop_loss"
	case ReasonTrailingStop:
		return "trailing_stop"
	case ReasonLiquidation:
		return "liquidation"
	case ReasonBreakeven:
		return "breakeven"
	case ReasonSmartLoss:
		return "smart_loss"
	case ReasonForcedPeriodEnd:
		return "forced_period_end"
	case ReasonForcedLiquidation:
		return "forced_liquidation"
	default:
		return "none"
	}
}

// appliesSlippage reports whether adverse-execution slippage applies to an
// exit at this reason. Per the Design Notes: stop_loss, liquidation,
// trailing_stop, and forced_liquidation get it; take_profit, breakeven,
// smart_loss, and forced_period_end do not.
func (r CloseReason) appliesSlippage() bool {
	switch r {
	case ReasonStopLoss, ReasonLiquidation, ReasonTrailingStop, ReasonForcedLiquidation:
		return true
	default:
		return false
	}
}

// SkipReason is a non-error, per-session-counted reason a signal produced no
// trade.
type SkipReason string

const (
	SkipNoEntry             SkipReason = "no_entry"
	SkipNoHistory           SkipReason = "no_history"
	SkipInsufficientCapital SkipReason = "insufficient_capital"
	SkipDuplicatePair       SkipReason = "duplicate_pair"
	SkipWaveCapReached      SkipReason = "wave_cap_reached"
	SkipFilterScore         SkipReason = "filter_score"
	SkipFilterHour          SkipReason = "filter_hour"
	SkipFilterExchange      SkipReason = "filter_exchange"
	SkipFilterLiquidity     SkipReason = "filter_liquidity"
)

// Candle is one OHLCV bar for a pair at a given timeframe.
type Candle struct {
	Timestamp    time.Time
	Open         float64
	High         float64
	Low          float64
	Close        float64
	MarkPrice    *float64
	Volume       float64
	OpenInterest float64
}

// Signal is a time-stamped directional recommendation for a pair.
type Signal struct {
	SignalID        string
	PairSymbol      string
	TradingPairID   string
	ExchangeID      string
	Direction       Direction
	SignalTimestamp time.Time
	ScoreWeek       float64
	ScoreMonth      float64
	HourOfDay       *int
}

// SignalFilter is the full eligibility predicate: a signal source
// implementation returns only signals that already satisfy this.
type SignalFilter struct {
	From              time.Time
	To                time.Time
	ScoreWeekMin      float64
	ScoreMonthMin     float64
	AllowedHours      map[int]bool
	SelectedExchanges map[string]bool
	LiquidityEnabled  bool
}

// StrategyParams are the per-run strategy parameters.
type StrategyParams struct {
	PositionSize               float64
	Leverage                   int
	StopLossPct                float64
	TakeProfitPct              float64
	UseTrailingStop            bool
	TrailingDistancePct        float64
	TrailingActivationPct      float64
	CommissionRate             float64
	SlippagePct                float64
	LiquidationThreshold       float64
	MaxTradesPerWave           int
	InitialCapital             float64
	SimulationEndTime          time.Time
	WaveInterval               time.Duration
	Phase1Hours                time.Duration
	BreakevenWindowHours       time.Duration
	SmartLossPctPerHour        float64
	ForcedCloseMaxLossFraction float64
}

// DefaultStrategyParams returns the constant defaults that aren't swept
// (wave cadence and phase boundaries).
func DefaultStrategyParams() StrategyParams {
	return StrategyParams{
		LiquidationThreshold:       0.9,
		WaveInterval:               15 * time.Minute,
		Phase1Hours:                24 * time.Hour,
		BreakevenWindowHours:       8 * time.Hour,
		SmartLossPctPerHour:        0.5,
		ForcedCloseMaxLossFraction: 0.95,
	}
}

// Validate rejects malformed StrategyParams before the wave loop runs,
// wrapping any failures in a ConfigError.
func (p StrategyParams) Validate() error {
	var errs ValidationErrors
	if p.PositionSize <= 0 {
		errs = append(errs, ValidationError{Field: "position_size", Message: "must be positive"})
	}
	if p.Leverage < 1 {
		errs = append(errs, ValidationError{Field: "leverage", Message: "must be >= 1"})
	}
	if p.StopLossPct < 0 {
		errs = append(errs, ValidationError{Field: "stop_loss_pct", Message: "must not be negative"})
	}
	if p.TakeProfitPct < 0 {
		errs = append(errs, ValidationError{Field: "take_profit_pct", Message: "must not be negative"})
	}
	if p.TrailingDistancePct < 0 {
		errs = append(errs, ValidationError{Field: "trailing_distance_pct", Message: "must not be negative"})
	}
	if p.TrailingActivationPct < 0 {
		errs = append(errs, ValidationError{Field: "trailing_activation_pct", Message: "must not be negative"})
	}
	if p.MaxTradesPerWave < 1 {
		errs = append(errs, ValidationError{Field: "max_trades_per_wave", Message: "must be >= 1"})
	}
	if p.InitialCapital <= 0 {
		errs = append(errs, ValidationError{Field: "initial_capital", Message: "must be positive"})
	}
	if p.LiquidationThreshold <= 0 || p.LiquidationThreshold > 1 {
		errs = append(errs, ValidationError{Field: "liquidation_threshold", Message: "must be in (0,1]"})
	}
	if len(errs) > 0 {
		return &ConfigError{Errs: errs}
	}
	return nil
}

// EffectiveNotional is position_size * leverage.
func (p StrategyParams) EffectiveNotional() float64 {
	return p.PositionSize * float64(p.Leverage)
}

// TradeOutcome is the result of simulating one admitted signal to close.
type TradeOutcome struct {
	SignalID           string
	PairSymbol         string
	Direction          Direction
	EntryTime          time.Time
	EntryPrice         float64
	EntryCommission    float64
	CloseTime          time.Time
	ClosePrice         float64
	CloseReason        CloseReason
	GrossPnL           float64
	ExitCommission     float64
	NetPnL             float64
	PeakFavorablePrice float64
	MaxPotentialNetPnL float64
}

// OpenPosition is a live position tracked by the Wave Scheduler, indexed by
// pair symbol. It carries the Position Simulator's projection for when and
// how it will close absent new information.
type OpenPosition struct {
	PairSymbol           string
	SignalID             string
	Direction            Direction
	EntryTime            time.Time
	EntryPrice           float64
	EntryCommission      float64
	ProjectedCloseTime   time.Time
	ProjectedClosePrice  float64
	ProjectedCloseReason CloseReason
	ProjectedNetPnL      float64
	ProjectedGrossPnL    float64
	ProjectedExitComm    float64
	PeakFavorablePrice   float64
	MaxPotentialNetPnL   float64
}

// SessionSummary is the final ledger snapshot plus run statistics. Units are
// USD (2dp) and percent (4dp) when rendered externally; internally this
// struct keeps full float64 precision.
type SessionSummary struct {
	InitialCapital         float64
	FinalEquity            float64
	RealizedPnL            float64
	CommissionPaid         float64
	MinEquity              float64
	MaxConcurrentPositions int
	TotalTrades            int
	Wins                   int
	Losses                 int
	Breakevens             int
	WinRate                float64
	MaxDrawdownUSD         float64
	MaxDrawdownPct         float64
	SkippedByReason        map[SkipReason]int
}
