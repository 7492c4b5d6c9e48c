package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wavefront-labs/wavebt/internal/simcore"
)

// PostgresResultSink implements simcore.ResultSink over `trade_outcomes` and
// `session_summaries` tables, idempotent on sessionID (and, for trades, on
// signalID). Grounded on the prior JobManager.SaveResults / CreatePosition
// pattern.
type PostgresResultSink struct {
	db *DB
}

func NewPostgresResultSink(db *DB) *PostgresResultSink {
	return &PostgresResultSink{db: db}
}

func (s *PostgresResultSink) AppendTrade(ctx context.Context, sessionID string, trade simcore.TradeOutcome) error {
	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO trade_outcomes (
			id, session_id, signal_id, pair_symbol, direction, entry_time, entry_price,
			entry_commission, close_time, close_price, close_reason, gross_pnl,
			exit_commission, net_pnl, peak_favorable_price, max_potential_net_pnl, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (session_id, signal_id) DO NOTHING
	`,
		uuid.New(), sessionID, trade.SignalID, trade.PairSymbol, trade.Direction.String(),
		trade.EntryTime, trade.EntryPrice, trade.EntryCommission, trade.CloseTime, trade.ClosePrice,
		trade.CloseReason.String(), trade.GrossPnL, trade.ExitCommission, trade.NetPnL,
		trade.PeakFavorablePrice, trade.MaxPotentialNetPnL, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert trade outcome: %w", err)
	}
	return nil
}

func (s *PostgresResultSink) WriteSummary(ctx context.Context, sessionID string, summary simcore.SessionSummary, params simcore.StrategyParams) error {
	skipped, err := json.Marshal(summary.SkippedByReason)
	if err != nil {
		return fmt.Errorf("marshal skipped reasons: %w", err)
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	_, err = s.db.pool.Exec(ctx, `
		INSERT INTO session_summaries (
			session_id, initial_capital, final_equity, realized_pnl, commission_paid,
			min_equity, max_concurrent_positions, total_trades, wins, losses, breakevens,
			win_rate, max_drawdown_usd, max_drawdown_pct, skipped_by_reason, params, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (session_id) DO UPDATE SET
			final_equity = EXCLUDED.final_equity,
			realized_pnl = EXCLUDED.realized_pnl,
			commission_paid = EXCLUDED.commission_paid,
			min_equity = EXCLUDED.min_equity,
			max_concurrent_positions = EXCLUDED.max_concurrent_positions,
			total_trades = EXCLUDED.total_trades,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			breakevens = EXCLUDED.breakevens,
			win_rate = EXCLUDED.win_rate,
			max_drawdown_usd = EXCLUDED.max_drawdown_usd,
			max_drawdown_pct = EXCLUDED.max_drawdown_pct,
			skipped_by_reason = EXCLUDED.skipped_by_reason,
			params = EXCLUDED.params,
			updated_at = EXCLUDED.updated_at
	`,
		sessionID, summary.InitialCapital, summary.FinalEquity, summary.RealizedPnL, summary.CommissionPaid,
		summary.MinEquity, summary.MaxConcurrentPositions, summary.TotalTrades, summary.Wins, summary.Losses,
		summary.Breakevens, summary.WinRate, summary.MaxDrawdownUSD, summary.MaxDrawdownPct, skipped, paramsJSON,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upsert session summary: %w", err)
	}
	return nil
}
