package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNoopCollector(t *testing.T) {
	collector := Noop()
	require.NotNil(t, collector)
	collector.ObserveBackendCall("devices", "ok", time.Millisecond)
	collector.IncUnauthorized()
	collector.IncPollSuperseded("devices")
}

func TestPrometheusCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	collector.IncUnauthorized()

	again, err := NewPrometheusCollector(reg)
	require.NoError(t, err)
	require.Same(t, collector.pollSuperseded, again.pollSuperseded)

	again.IncUnauthorized()
	again.IncPollSuperseded("realtime")

	families, err := reg.Gather()
	require.NoError(t, err)

	unauthorized := findFamily(t, families, "plc_dashboard_unauthorized_total")
	require.Len(t, unauthorized.Metric, 1)
	require.Equal(t, float64(2), unauthorized.Metric[0].Counter.GetValue())

	superseded := findFamily(t, families, "plc_dashboard_poll_superseded_total")
	require.Len(t, superseded.Metric, 1)
	require.Equal(t, float64(1), superseded.Metric[0].Counter.GetValue())
}

func TestObserveBackendCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	collector.ObserveBackendCall("history", "ok", 20*time.Millisecond)
	collector.ObserveBackendCall("history", "error", 10*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	calls := findFamily(t, families, "plc_dashboard_backend_requests_total")
	require.Len(t, calls.Metric, 2)

	latency := findFamily(t, families, "plc_dashboard_backend_request_duration_seconds")
	require.Len(t, latency.Metric, 1)
	require.Equal(t, uint64(2), latency.Metric[0].Histogram.GetSampleCount())
}

func findFamily(t *testing.T, families []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	require.FailNow(t, "metric family not found", name)
	return nil
}
