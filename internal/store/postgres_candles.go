package store

import (
	"context"
	"fmt"
	"time"

	"github.com/wavefront-labs/wavebt/internal/simcore"
)

// PostgresCandleStore implements simcore.CandleStore over a `candles` table
// keyed by (trading_pair_id, timeframe_seconds, timestamp).
type PostgresCandleStore struct {
	db *DB
}

func NewPostgresCandleStore(db *DB) *PostgresCandleStore {
	return &PostgresCandleStore{db: db}
}

func (s *PostgresCandleStore) Candles(ctx context.Context, pairID string, timeframe time.Duration, from, to time.Time) ([]simcore.Candle, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT timestamp, open, high, low, close, mark_price, volume, open_interest
		FROM candles
		WHERE trading_pair_id = $1 AND timeframe_seconds = $2 AND timestamp >= $3 AND timestamp <= $4
		ORDER BY timestamp ASC
	`, pairID, int(timeframe.Seconds()), from, to)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var out []simcore.Candle
	for rows.Next() {
		var c simcore.Candle
		var markPrice *float64
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &markPrice, &c.Volume, &c.OpenInterest); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.MarkPrice = markPrice
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candles: %w", err)
	}
	return out, nil
}
