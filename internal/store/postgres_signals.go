package store

import (
	"context"
	"fmt"

	"github.com/wavefront-labs/wavebt/internal/simcore"
)

// PostgresSignalSource implements simcore.SignalSource over a `signals`
// table, pushing the time-window and score predicate into SQL and checking
// hour and exchange in-process (eligible, below). The liquidity
// leg of the eligibility predicate needs a pair's trailing candle history,
// which isn't available at signal-fetch time, so internal/liquidity is
// applied later by the session runner once histories are loaded.
type PostgresSignalSource struct {
	db *DB
}

func NewPostgresSignalSource(db *DB) *PostgresSignalSource {
	return &PostgresSignalSource{db: db}
}

func (s *PostgresSignalSource) Signals(ctx context.Context, filter simcore.SignalFilter) ([]simcore.Signal, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT signal_id, pair_symbol, trading_pair_id, exchange_id, signal_action,
		       signal_timestamp, score_week, score_month, hour_of_day
		FROM signals
		WHERE signal_timestamp >= $1 AND signal_timestamp <= $2
		  AND score_week >= $3 AND score_month >= $4
		ORDER BY signal_timestamp ASC
	`, filter.From, filter.To, filter.ScoreWeekMin, filter.ScoreMonthMin)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []simcore.Signal
	for rows.Next() {
		var sig simcore.Signal
		var action string
		var hour *int
		if err := rows.Scan(&sig.SignalID, &sig.PairSymbol, &sig.TradingPairID, &sig.ExchangeID, &action,
			&sig.SignalTimestamp, &sig.ScoreWeek, &sig.ScoreMonth, &hour); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		dir, ok := simcore.DirectionFromSignalAction(action)
		if !ok {
			continue
		}
		sig.Direction = dir
		sig.HourOfDay = hour

		if !eligible(sig, filter) {
			continue
		}
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return out, nil
}

// eligible applies the parts of the eligibility predicate that aren't
// already pushed into the SQL WHERE clause above (hour-of-day and exchange
// membership, both cheap to re-check in-process and easier to keep correct
// alongside the liquidity gate than to express as SQL).
func eligible(sig simcore.Signal, filter simcore.SignalFilter) bool {
	if len(filter.AllowedHours) > 0 {
		hour := sig.SignalTimestamp.UTC().Hour()
		if sig.HourOfDay != nil {
			hour = *sig.HourOfDay
		}
		if !filter.AllowedHours[hour] {
			return false
		}
	}
	if len(filter.SelectedExchanges) > 0 && !filter.SelectedExchanges[sig.ExchangeID] {
		return false
	}
	return true
}
