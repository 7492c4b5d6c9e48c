package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/wavefront-labs/wavebt/internal/simcore"
)

// BacktestHistoryRepo implements simcore.ParamsSource over a `backtest_runs`
// table, selecting among prior runs for an exchange: among the runs within
// 85% of the best total_pnl_usd, pick the one with the highest win_rate.
// Grounded on the prior KellyCalculator.CalculateStats, which aggregates
// from a positions table the same way.
type BacktestHistoryRepo struct {
	db *DB
}

func NewBacktestHistoryRepo(db *DB) *BacktestHistoryRepo {
	return &BacktestHistoryRepo{db: db}
}

type backtestRun struct {
	params     simcore.StrategyParams
	totalPnL   float64
	winRate    float64
}

func (r *BacktestHistoryRepo) BestParams(ctx context.Context, exchangeID string) (simcore.StrategyParams, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT params, total_pnl_usd, win_rate
		FROM backtest_runs
		WHERE exchange_id = $1
	`, exchangeID)
	if err != nil {
		return simcore.StrategyParams{}, fmt.Errorf("query backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []backtestRun
	for rows.Next() {
		var raw []byte
		var run backtestRun
		if err := rows.Scan(&raw, &run.totalPnL, &run.winRate); err != nil {
			return simcore.StrategyParams{}, fmt.Errorf("scan backtest run: %w", err)
		}
		if err := json.Unmarshal(raw, &run.params); err != nil {
			return simcore.StrategyParams{}, fmt.Errorf("unmarshal params: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return simcore.StrategyParams{}, fmt.Errorf("iterate backtest runs: %w", err)
	}
	if len(runs) == 0 {
		return simcore.StrategyParams{}, fmt.Errorf("no prior backtest runs for exchange %q", exchangeID)
	}

	return selectBest(runs).params, nil
}

// selectBest maximizes total_pnl_usd, then among the runs within 85% of that
// max picks the highest win_rate. "Within 85%" is measured as the gap from
// best shrinking to at most 15% of |best|, not a fraction of best itself —
// multiplying best by 0.85 directly would invert the band whenever best is
// negative (every run in a losing history), excluding the best run itself.
func selectBest(runs []backtestRun) backtestRun {
	best := runs[0]
	for _, run := range runs[1:] {
		if run.totalPnL > best.totalPnL {
			best = run
		}
	}
	band := 0.15 * math.Abs(best.totalPnL)

	winner := best
	for _, run := range runs {
		if best.totalPnL-run.totalPnL > band {
			continue
		}
		if run.winRate > winner.winRate {
			winner = run
		}
	}
	return winner
}
