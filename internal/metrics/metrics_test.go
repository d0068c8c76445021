package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(operationsTotal.WithLabelValues("spcLimits", OutcomeSuccess))
	ObserveOperation("spcLimits", time.Millisecond, "anything", "")
	assert.Equal(t, before+1, testutil.ToFloat64(operationsTotal.WithLabelValues("spcLimits", OutcomeSuccess)))

	beforeErr := testutil.ToFloat64(operationErrorsTotal.WithLabelValues("spcLimits", "InsufficientData"))
	ObserveOperation("spcLimits", -time.Second, OutcomeError, "InsufficientData")
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(operationErrorsTotal.WithLabelValues("spcLimits", "InsufficientData")))
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(anomaliesFlaggedTotal)
	AddAnomalies(3)
	AddAnomalies(0)
	assert.Equal(t, before+3, testutil.ToFloat64(anomaliesFlaggedTotal))

	beforeFail := testutil.ToFloat64(knowledgeReloadsTotal.WithLabelValues(OutcomeError))
	ObserveKnowledgeReload(errors.New("bad yaml"))
	assert.Equal(t, beforeFail+1, testutil.ToFloat64(knowledgeReloadsTotal.WithLabelValues(OutcomeError)))
}

func TestRegisterActiveSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterActiveSessions(reg, func() float64 { return 4 }))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "mirador_yield_sessions_active", families[0].GetName())
	assert.Equal(t, 4.0, families[0].GetMetric()[0].GetGauge().GetValue())
}

func TestSessionsEndedCountsExplicitEnds(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	before := testutil.ToFloat64(sessionsEndedTotal)
	SessionEnded()
	assert.Equal(t, before+1, testutil.ToFloat64(sessionsEndedTotal))

	families, err := reg.Gather()
	require.NoError(t, err)
	var help string
	for _, mf := range families {
		if mf.GetName() == "mirador_yield_sessions_ended_total" {
			help = mf.GetHelp()
		}
	}
	assert.Equal(t, "Sessions ended explicitly through endSession.", help)
}
