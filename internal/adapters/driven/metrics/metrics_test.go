package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

// gatheredValue returns the value of the series with the given label pair,
// or of the only series when label is empty.
func gatheredValue(t *testing.T, g prometheus.Gatherer, name, label, value string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := label == ""
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					match = true
				}
			}
			if !match {
				continue
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s{%s=%q} not found", name, label, value)
	return 0
}

func TestRunMetrics_ObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newRunMetrics(reg, reg)

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	result := domain.NewRunResult("run-1", "agents")
	result.Status = domain.RunStatusPartial
	result.StartedAt = start
	result.FinishedAt = start.Add(3 * time.Second)
	result.TotalCandidates = 5
	result.ItemsNew = 4
	result.ItemsMerged = 1
	result.ProviderErrors["github"] = "timeout"
	result.ValidationErrors = 2
	result.StoreErrors["x"] = "locked"

	m.ObserveRun(result)
	m.ObserveRun(nil)

	assert.Equal(t, 1.0, gatheredValue(t, reg, "mosaic_runs_total", "status", "partial"))
	assert.Equal(t, 4.0, gatheredValue(t, reg, "mosaic_items_total", "outcome", "new"))
	assert.Equal(t, 1.0, gatheredValue(t, reg, "mosaic_items_total", "outcome", "merged"))
	assert.Equal(t, 5.0, gatheredValue(t, reg, "mosaic_candidates_total", "", ""))
	assert.Equal(t, 1.0, gatheredValue(t, reg, "mosaic_provider_errors_total", "provider", "github"))
	assert.Equal(t, 2.0, gatheredValue(t, reg, "mosaic_degraded_total", "stage", "normalize"))
	assert.Equal(t, 1.0, gatheredValue(t, reg, "mosaic_store_errors_total", "", ""))
	assert.Equal(t, float64(result.FinishedAt.Unix()), gatheredValue(t, reg, "mosaic_last_run_timestamp_seconds", "", ""))
}

func TestRunMetrics_Handler(t *testing.T) {
	m := NewRunMetrics()
	m.ObserveRun(&domain.RunResult{Status: domain.RunStatusDone})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mosaic_runs_total{status="done"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
