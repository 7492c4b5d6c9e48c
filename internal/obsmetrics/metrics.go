// Package obsmetrics exposes the Prometheus series the session runner emits
// for each backtest session: trades admitted, skips by reason, and the
// ledger's equity trajectory. Narrowed from the prior internal/metrics,
// which carried the same promauto wiring for a live-trading dashboard.
package obsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wavefront-labs/wavebt/internal/simcore"
)

var (
	// TradesAdmitted counts signals that produced a position, per session.
	TradesAdmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtest_trades_admitted_total",
		Help: "Signals admitted into an open position",
	}, []string{"session_id"})

	// SignalsSkipped counts signals that produced no trade, by reason.
	SignalsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtest_signals_skipped_total",
		Help: "Signals that produced no trade, labeled by skip reason",
	}, []string{"session_id", "reason"})

	// FinalEquity is the ledger's equity at session end.
	FinalEquity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "backtest_final_equity_usd",
		Help: "Ledger equity at the end of a session",
	}, []string{"session_id"})

	// MinEquity is the lowest equity observed during a session.
	MinEquity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "backtest_min_equity_usd",
		Help: "Lowest ledger equity observed during a session",
	}, []string{"session_id"})

	// WinRate is the percentage (0-100) of closed trades with positive net PnL.
	WinRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "backtest_win_rate",
		Help: "Percentage (0-100) of closed trades with positive net PnL",
	}, []string{"session_id"})

	// SessionDuration times one RunSession call end-to-end.
	SessionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backtest_session_duration_seconds",
		Help:    "Wall-clock duration of one RunSession call",
		Buckets: prometheus.DefBuckets,
	}, []string{"exchange_id"})
)

// ObserveSummary records the terminal metrics for one completed session.
func ObserveSummary(sessionID string, summary simcore.SessionSummary) {
	TradesAdmitted.WithLabelValues(sessionID).Add(float64(summary.TotalTrades))
	for reason, count := range summary.SkippedByReason {
		SignalsSkipped.WithLabelValues(sessionID, string(reason)).Add(float64(count))
	}
	FinalEquity.WithLabelValues(sessionID).Set(summary.FinalEquity)
	MinEquity.WithLabelValues(sessionID).Set(summary.MinEquity)
	WinRate.WithLabelValues(sessionID).Set(summary.WinRate)
}
