package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordChartRun(t *testing.T) {
	chartRunsTotal.Reset()
	chartRunDuration.Reset()

	RecordChartRun("loki", "deploy", nil, 3*time.Second)

	counter, err := chartRunsTotal.GetMetricWithLabelValues("loki", "deploy", "success")
	assert.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(counter))

	RecordChartRun("loki", "deploy", errors.New("boom"), time.Second)

	errorCounter, err := chartRunsTotal.GetMetricWithLabelValues("loki", "deploy", "error")
	assert.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(errorCounter))

	// Success counter is untouched by the failed run
	assert.Equal(t, float64(1), testutil.ToFloat64(counter))

	_, err = chartRunDuration.GetMetricWithLabelValues("loki", "deploy")
	assert.NoError(t, err)
}

func TestRecordHelmCommand(t *testing.T) {
	helmCommandsTotal.Reset()
	helmCommandDuration.Reset()

	RecordHelmCommand("upgrade", nil, 2*time.Second)
	RecordHelmCommand("upgrade", nil, 4*time.Second)
	RecordHelmCommand("status", errors.New("release not found"), 100*time.Millisecond)

	upgrades, err := helmCommandsTotal.GetMetricWithLabelValues("upgrade", "success")
	assert.NoError(t, err)
	assert.Equal(t, float64(2), testutil.ToFloat64(upgrades))

	failures, err := helmCommandsTotal.GetMetricWithLabelValues("status", "error")
	assert.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(failures))
}

func TestHandler(t *testing.T) {
	chartRunsTotal.Reset()
	RecordChartRun("cert-manager", "deploy", nil, time.Second)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "engine_charts_runs_total")
	assert.Contains(t, rec.Body.String(), `chart="cert-manager"`)
}
