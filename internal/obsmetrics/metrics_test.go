package obsmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/wavefront-labs/wavebt/internal/simcore"
)

func TestObserveSummary_RecordsAllSeries(t *testing.T) {
	sessionID := "smoke-test-session"
	summary := simcore.SessionSummary{
		TotalTrades:     3,
		FinalEquity:     1042.50,
		MinEquity:       980.00,
		WinRate:         0.6667,
		SkippedByReason: map[simcore.SkipReason]int{simcore.SkipNoHistory: 2},
	}

	ObserveSummary(sessionID, summary)

	assert.InDelta(t, 3, testutil.ToFloat64(TradesAdmitted.WithLabelValues(sessionID)), 1e-9)
	assert.InDelta(t, 1042.50, testutil.ToFloat64(FinalEquity.WithLabelValues(sessionID)), 1e-9)
	assert.InDelta(t, 980.00, testutil.ToFloat64(MinEquity.WithLabelValues(sessionID)), 1e-9)
	assert.InDelta(t, 0.6667, testutil.ToFloat64(WinRate.WithLabelValues(sessionID)), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(SignalsSkipped.WithLabelValues(sessionID, string(simcore.SkipNoHistory))), 1e-9)
}
