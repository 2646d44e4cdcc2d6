package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type mockHTTPMetricsRecorder struct {
	statuses  []int
	latencies []time.Duration
}

func (m *mockHTTPMetricsRecorder) RecordHTTPStatus(statusCode int) {
	m.statuses = append(m.statuses, statusCode)
}

func (m *mockHTTPMetricsRecorder) RecordRequestLatency(duration time.Duration) {
	m.latencies = append(m.latencies, duration)
}

func TestMetricsMiddleware_RecordsStatusAndLatency(t *testing.T) {
	recorder := &mockHTTPMetricsRecorder{}
	handler := NewMetricsMiddleware(recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/index", http.StatusSeeOther)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil))

	if len(recorder.statuses) != 1 || recorder.statuses[0] != http.StatusSeeOther {
		t.Errorf("statuses = %v, want [303]", recorder.statuses)
	}
	if len(recorder.latencies) != 1 || recorder.latencies[0] < 0 {
		t.Errorf("latencies = %v, want one non-negative value", recorder.latencies)
	}
}

func TestMetricsMiddleware_ImplicitOK(t *testing.T) {
	recorder := &mockHTTPMetricsRecorder{}
	handler := NewMetricsMiddleware(recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(recorder.statuses) != 1 || recorder.statuses[0] != http.StatusOK {
		t.Errorf("statuses = %v, want [200]", recorder.statuses)
	}
}
