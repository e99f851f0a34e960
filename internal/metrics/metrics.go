// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、監査レコーダー、サービス層から利用する。
type MetricsCollector interface {
	RecordAuditWritten(resource string)
	RecordAuditDropped()
	RecordAuditFailed()
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(method string, duration time.Duration)
	RecordPostCreated()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	auditWritten    *prometheus.CounterVec
	auditDropped    prometheus.Counter
	auditFailed     prometheus.Counter
	httpStatus      *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	postsCreated    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		auditWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_audit_written_total",
			Help: "書き込まれた監査ログの合計数",
		}, []string{"resource"}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agora_audit_dropped_total",
			Help: "キュー溢れまたは停止中のため破棄された監査ログの合計数",
		}),
		auditFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agora_audit_failed_total",
			Help: "書き込みに失敗した監査ログの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agora_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agora_posts_created_total",
			Help: "作成された投稿の合計数",
		}),
	}

	reg.MustRegister(
		c.auditWritten,
		c.auditDropped,
		c.auditFailed,
		c.httpStatus,
		c.requestDuration,
		c.postsCreated,
	)

	return c
}

// RecordAuditWritten は監査ログの書き込み成功を記録する。
func (c *Collector) RecordAuditWritten(resource string) {
	c.auditWritten.WithLabelValues(resource).Inc()
}

// RecordAuditDropped は監査ログの破棄を記録する。
func (c *Collector) RecordAuditDropped() {
	c.auditDropped.Inc()
}

// RecordAuditFailed は監査ログの書き込み失敗を記録する。
func (c *Collector) RecordAuditFailed() {
	c.auditFailed.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestDuration(method string, duration time.Duration) {
	c.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordPostCreated は投稿の作成を記録する。
func (c *Collector) RecordPostCreated() {
	c.postsCreated.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
