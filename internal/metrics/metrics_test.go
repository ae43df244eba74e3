package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ApprovalDecision("Resource", "Approved")
	m.ApprovalDecision("Resource", "Approved")
	m.ResourceUpload("knowledge", "ok")
	m.ObserveRequest("GET", "/api/resources", 200, 15*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	assert.Contains(t, body, `approval_decisions_total{decision="Approved",entity_type="Resource"} 2`)
	assert.Contains(t, body, `resource_uploads_total{category="knowledge",outcome="ok"} 1`)
	assert.Contains(t, body, `http_requests_total{method="GET",route="/api/resources",status="200"} 1`)
	assert.Contains(t, body, `http_request_duration_seconds_count{method="GET",route="/api/resources"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ApprovalDecision("Formula", "Rejected")
	m.ObserveRequest("GET", "/", 200, time.Second)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ResourceUpload("other", "rejected")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `resource_uploads_total{category="other",outcome="rejected"} 1`)
}
