// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/donetracker/internal/query"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアとクエリ実行器から利用する。
type MetricsCollector interface {
	query.Observer
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(method, route string, duration time.Duration)
	RecordAuthFailure(reason string)
	RecordRateLimited(scope string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	authFailures    *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	queries         *prometheus.CounterVec
	queryLatency    prometheus.Histogram
	droppedOutcomes prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "donetracker_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "donetracker_http_request_duration_seconds",
			Help:    "ルート別のリクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "donetracker_auth_failures_total",
			Help: "理由別の認証・認可失敗数",
		}, []string{"reason"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "donetracker_rate_limited_total",
			Help: "レート制限により拒否されたリクエスト数",
		}, []string{"scope"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "donetracker_query_total",
			Help: "結果別のステートメント実行数",
		}, []string{"outcome"}),
		queryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "donetracker_query_duration_seconds",
			Help:    "接続確立から解放までのステートメント実行時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		droppedOutcomes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "donetracker_query_dropped_outcomes_total",
			Help: "最初の結果の後に破棄された結果の数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.authFailures,
		c.rateLimited,
		c.queries,
		c.queryLatency,
		c.droppedOutcomes,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はルートパターン単位でリクエスト処理時間を記録する。
// routeにはURLの実値ではなくルートパターンを渡す。
func (c *Collector) RecordRequestLatency(method, route string, duration time.Duration) {
	c.requestLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthFailure は認証・認可の失敗を記録する。
func (c *Collector) RecordAuthFailure(reason string) {
	c.authFailures.WithLabelValues(reason).Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(scope string) {
	c.rateLimited.WithLabelValues(scope).Inc()
}

// ObserveQuery はステートメント1件の結果と所要時間を記録する。
func (c *Collector) ObserveQuery(outcome string, duration time.Duration) {
	c.queries.WithLabelValues(outcome).Inc()
	c.queryLatency.Observe(duration.Seconds())
}

// ObserveDroppedOutcome は破棄された後続の結果を記録する。
func (c *Collector) ObserveDroppedOutcome() {
	c.droppedOutcomes.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
