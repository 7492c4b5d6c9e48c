package store

import (
	"context"
	"sync"

	"github.com/wavefront-labs/wavebt/internal/simcore"
)

// MemoryResultSink is an in-process ResultSink for tests, guarded by a mutex
// since RunMany drives several sessions concurrently against one sink.
type MemoryResultSink struct {
	mu        sync.Mutex
	trades    map[string][]simcore.TradeOutcome
	summaries map[string]simcore.SessionSummary
	params    map[string]simcore.StrategyParams
}

func NewMemoryResultSink() *MemoryResultSink {
	return &MemoryResultSink{
		trades:    make(map[string][]simcore.TradeOutcome),
		summaries: make(map[string]simcore.SessionSummary),
		params:    make(map[string]simcore.StrategyParams),
	}
}

func (s *MemoryResultSink) AppendTrade(ctx context.Context, sessionID string, trade simcore.TradeOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.trades[sessionID] {
		if existing.SignalID == trade.SignalID {
			return nil
		}
	}
	s.trades[sessionID] = append(s.trades[sessionID], trade)
	return nil
}

func (s *MemoryResultSink) WriteSummary(ctx context.Context, sessionID string, summary simcore.SessionSummary, params simcore.StrategyParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sessionID] = summary
	s.params[sessionID] = params
	return nil
}

func (s *MemoryResultSink) Trades(sessionID string) []simcore.TradeOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]simcore.TradeOutcome, len(s.trades[sessionID]))
	copy(out, s.trades[sessionID])
	return out
}

func (s *MemoryResultSink) Summary(sessionID string) (simcore.SessionSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary, ok := s.summaries[sessionID]
	return summary, ok
}
