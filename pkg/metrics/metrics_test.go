package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorRecords(t *testing.T) {
	c := NewCollectorWithRegistry("traffic_test", prometheus.NewRegistry())

	c.RecordAPIRequest("/api/views/{view}", "GET", "200")
	c.RecordAPIRequest("/api/views/{view}", "GET", "200")
	c.RecordAPIError("unsupported_view", "/api/views/{view}")
	c.RecordDatasetLoad(48204, 3)
	c.UpdateDBConnectionPool(2, 3, 5)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.APIRequestsTotal.WithLabelValues("/api/views/{view}", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.APIErrorsTotal.WithLabelValues("unsupported_view", "/api/views/{view}")))
	assert.Equal(t, 48204.0, testutil.ToFloat64(c.DatasetRowsLoaded))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.DatasetRowsRejected))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("total")))
}

func TestTimerObservesDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWithRegistry("traffic_test", reg)

	timer := c.NewTimer(c.ViewRenderDuration.WithLabelValues("weather"))
	assert.GreaterOrEqual(t, timer.ObserveDuration().Nanoseconds(), int64(0))

	assert.Equal(t, 1, testutil.CollectAndCount(c.ViewRenderDuration))
}

func TestCollectorsAreIsolatedPerRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollectorWithRegistry("traffic_test", prometheus.NewRegistry())
		NewCollectorWithRegistry("traffic_test", prometheus.NewRegistry())
	})
}
