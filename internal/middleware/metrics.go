package middleware

import (
	"net/http"
	"time"
)

// HTTPObserver はHTTPリクエストの計測インターフェース。
// metrics.Collectorが実装する。
type HTTPObserver interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(method string, duration time.Duration)
}

// NewMetricsMiddleware はレスポンスステータスと処理時間を記録するミドルウェアを返す。
func NewMetricsMiddleware(observer HTTPObserver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			observer.RecordHTTPStatus(rec.statusCode)
			observer.RecordRequestDuration(r.Method, time.Since(start))
		})
	}
}
