package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	logs "github.com/danmuck/kiroshi/internal/logging"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordSessionStarted()
	RecordSessionEvent(EventSampling, 16)
	RecordSessionFinished(OutcomeFinished, 3*time.Second)
	SetBackendState(4)
	RecordReadinessAttempt(false)

	logs.Logf("observability/metrics: registration idempotent and recording paths executed")
}

func TestSessionEventCounters(t *testing.T) {
	before := testutil.ToFloat64(sessionEvents.WithLabelValues(EventFinished))
	bytesBefore := testutil.ToFloat64(payloadBytes)

	RecordSessionEvent(EventFinished, 1024)

	if got := testutil.ToFloat64(sessionEvents.WithLabelValues(EventFinished)); got != before+1 {
		t.Fatalf("expected finished counter +1, got %v -> %v", before, got)
	}
	if got := testutil.ToFloat64(payloadBytes); got != bytesBefore+1024 {
		t.Fatalf("expected payload bytes +1024, got %v -> %v", bytesBefore, got)
	}
}

func TestBackendStateGauge(t *testing.T) {
	SetBackendState(3)
	if got := testutil.ToFloat64(backendState); got != 3 {
		t.Fatalf("expected gauge 3, got %v", got)
	}
	if _, err := prometheus.DefaultGatherer.Gather(); err != nil {
		t.Fatalf("gather: %v", err)
	}
}
