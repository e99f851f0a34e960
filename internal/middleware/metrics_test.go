package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type mockHTTPObserver struct {
	statuses []int
	methods  []string
}

func (m *mockHTTPObserver) RecordHTTPStatus(statusCode int) {
	m.statuses = append(m.statuses, statusCode)
}

func (m *mockHTTPObserver) RecordRequestDuration(method string, _ time.Duration) {
	m.methods = append(m.methods, method)
}

// TestMetricsMiddleware_RecordsStatusAndMethod はステータスとメソッドが記録されることを検証する。
func TestMetricsMiddleware_RecordsStatusAndMethod(t *testing.T) {
	obs := &mockHTTPObserver{}
	mw := NewMetricsMiddleware(obs)

	notFound := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	implicitOK := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	notFound.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/x", nil))
	implicitOK.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/y", nil))

	if len(obs.statuses) != 2 || obs.statuses[0] != http.StatusNotFound || obs.statuses[1] != http.StatusOK {
		t.Errorf("statuses = %v, want [404 200]", obs.statuses)
	}
	if len(obs.methods) != 2 || obs.methods[0] != http.MethodDelete || obs.methods[1] != http.MethodGet {
		t.Errorf("methods = %v, want [DELETE GET]", obs.methods)
	}
}
