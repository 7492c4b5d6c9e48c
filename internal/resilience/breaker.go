// Package resilience wraps the Candle Store and Signal Source upstream
// calls in a circuit breaker, surfacing a tripped breaker as a
// simcore.DataSourceError so the Session Runner's failure policy sees one
// error taxonomy regardless of whether the upstream failed outright or the
// breaker gave up on it first. Adapted from the prior
// internal/risk.CircuitBreakerManager, narrowed from three services
// (exchange/llm/database) to the two upstreams this core actually calls.
package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"

	"github.com/wavefront-labs/wavebt/internal/simcore"
)

const (
	MinRequests     = 5
	FailureRatio    = 0.6
	OpenTimeout     = 20 * time.Second
	HalfOpenMaxReqs = 3
	CountInterval   = 10 * time.Second
)

var (
	stateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backtest_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half_open, 2=open)",
		},
		[]string{"service"},
	)
	requestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_circuit_breaker_requests_total",
			Help: "Total requests observed by a circuit breaker",
		},
		[]string{"service", "result"},
	)
)

// Manager owns one breaker per upstream this core reads from.
type Manager struct {
	candles *gobreaker.CircuitBreaker
	signals *gobreaker.CircuitBreaker
}

// NewManager builds a Manager with default thresholds.
func NewManager() *Manager {
	m := &Manager{}
	m.candles = newBreaker("candle_store")
	m.signals = newBreaker("signal_source")
	return m
}

func newBreaker(service string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: HalfOpenMaxReqs,
		Interval:    CountInterval,
		Timeout:     OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= MinRequests && ratio >= FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			stateGauge.WithLabelValues(name).Set(float64(to))
		},
	})
}

// WrapCandles returns a CandleStore that routes calls through the breaker,
// converting both a tripped breaker and an underlying failure into a
// simcore.DataSourceError.
func (m *Manager) WrapCandles(store simcore.CandleStore) simcore.CandleStore {
	return candleBreaker{store: store, breaker: m.candles}
}

// WrapSignals returns a SignalSource that routes calls through the breaker.
func (m *Manager) WrapSignals(source simcore.SignalSource) simcore.SignalSource {
	return signalBreaker{source: source, breaker: m.signals}
}

type candleBreaker struct {
	store   simcore.CandleStore
	breaker *gobreaker.CircuitBreaker
}

func (c candleBreaker) Candles(ctx context.Context, pairID string, timeframe time.Duration, from, to time.Time) ([]simcore.Candle, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.store.Candles(ctx, pairID, timeframe, from, to)
	})
	if err != nil {
		requestCounter.WithLabelValues("candle_store", "failure").Inc()
		return nil, &simcore.DataSourceError{Op: fmt.Sprintf("candles(%s)", pairID), Err: err}
	}
	requestCounter.WithLabelValues("candle_store", "success").Inc()
	return result.([]simcore.Candle), nil
}

type signalBreaker struct {
	source  simcore.SignalSource
	breaker *gobreaker.CircuitBreaker
}

func (s signalBreaker) Signals(ctx context.Context, filter simcore.SignalFilter) ([]simcore.Signal, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.source.Signals(ctx, filter)
	})
	if err != nil {
		requestCounter.WithLabelValues("signal_source", "failure").Inc()
		return nil, &simcore.DataSourceError{Op: "signals", Err: err}
	}
	requestCounter.WithLabelValues("signal_source", "success").Inc()
	return result.([]simcore.Signal), nil
}
