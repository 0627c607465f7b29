package metrics

import (
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestMetrics registers metrics with a fresh registry so tests do not
// collide on the default one.
func createTestMetrics(namespace string) (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return New(namespace, reg), reg
}

func TestNew(t *testing.T) {
	m, reg := createTestMetrics("")

	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.LimitChecksTotal)
	assert.NotNil(t, m.LimitReservationsTotal)
	assert.NotNil(t, m.CacheHitsTotal)

	m.RecordHTTPRequest("GET", "/limits", 200, time.Millisecond)
	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "billing_http_requests_total")
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New("dup", reg)

	assert.Panics(t, func() { New("dup", reg) })
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m, _ := createTestMetrics("http_test")

	t.Run("records request with 2xx status", func(t *testing.T) {
		m.RecordHTTPRequest("GET", "/limits", 200, 100*time.Millisecond)

		count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/limits", "2xx"))
		assert.Equal(t, float64(1), count)
	})

	t.Run("records request with 4xx status", func(t *testing.T) {
		m.RecordHTTPRequest("POST", "/limits/check", 422, 50*time.Millisecond)

		count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/limits/check", "4xx"))
		assert.Equal(t, float64(1), count)
	})

	t.Run("records request with 5xx status", func(t *testing.T) {
		m.RecordHTTPRequest("GET", "/plans", 500, 200*time.Millisecond)

		count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/plans", "5xx"))
		assert.Equal(t, float64(1), count)
	})
}

func TestMetrics_RecordLimits(t *testing.T) {
	m, _ := createTestMetrics("limits_test")

	m.RecordLimitCheck("allowed")
	m.RecordLimitCheck("allowed")
	m.RecordLimitCheck("exceeded")
	m.RecordReservation("reserved")
	m.RecordRelease()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.LimitChecksTotal.WithLabelValues("allowed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LimitChecksTotal.WithLabelValues("exceeded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LimitReservationsTotal.WithLabelValues("reserved")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LimitReleasesTotal))
}

func TestMetrics_RecordDBQuery(t *testing.T) {
	m, _ := createTestMetrics("db_test")

	m.RecordDBQuery("select", 10*time.Millisecond)
	m.RecordDBQuery("update", 5*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(m.DBQueryDuration))
}

func TestMetrics_RecordCache(t *testing.T) {
	m, _ := createTestMetrics("cache_test")

	t.Run("records cache hit", func(t *testing.T) {
		m.RecordCacheHit("plans")

		count := testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("plans"))
		assert.Equal(t, float64(1), count)
	})

	t.Run("records cache miss", func(t *testing.T) {
		m.RecordCacheMiss("plans")

		count := testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("plans"))
		assert.Equal(t, float64(1), count)
	})
}

func TestStatusCodeToString(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{299, "2xx"},
		{300, "3xx"},
		{301, "3xx"},
		{399, "3xx"},
		{400, "4xx"},
		{404, "4xx"},
		{499, "4xx"},
		{500, "5xx"},
		{502, "5xx"},
		{599, "5xx"},
		{100, "unknown"},
		{0, "unknown"},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.code), func(t *testing.T) {
			result := statusCodeToString(tt.code)
			assert.Equal(t, tt.expected, result)
		})
	}
}
