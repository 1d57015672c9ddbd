package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	before := testutil.ToFloat64(EventsIngested.WithLabelValues("pageview"))
	EventsIngested.WithLabelValues("pageview").Inc()
	EventsRejected.WithLabelValues("click", ReasonInvalid).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(EventsIngested.WithLabelValues("pageview")))

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `shopdemo_analytics_events_ingested_total{type="pageview"}`)
	assert.Contains(t, w.Body.String(), `shopdemo_analytics_events_rejected_total{reason="invalid",type="click"}`)
}
