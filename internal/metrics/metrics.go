// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Collector はPrometheusメトリクスを収集する実装。
// tracker.Recorderを満たし、Trackerの操作結果を記録する。
type Collector struct {
	operations      *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpLatency     prometheus.Histogram
	cleanupDeleted  *prometheus.CounterVec
	cleanupFailures prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studylog_operations_total",
			Help: "認証・学習記録操作の結果別の合計数",
		}, []string{"operation", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studylog_http_requests_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "studylog_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studylog_cleanup_deleted_total",
			Help: "クリーンアップで削除された行数",
		}, []string{"table"}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studylog_cleanup_failures_total",
			Help: "クリーンアップジョブの失敗数",
		}),
	}

	reg.MustRegister(
		c.operations,
		c.httpRequests,
		c.httpLatency,
		c.cleanupDeleted,
		c.cleanupFailures,
	)

	return c
}

// ObserveOperation はTrackerの操作結果を記録する。
func (c *Collector) ObserveOperation(op string, err error) {
	result := resultSuccess
	if err != nil {
		result = resultFailure
	}
	c.operations.WithLabelValues(op, result).Inc()
}

// RecordHTTPRequest はHTTPレスポンスのステータスコードと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// RecordCleanup はクリーンアップで削除した行数を記録する。
func (c *Collector) RecordCleanup(table string, deleted int64) {
	c.cleanupDeleted.WithLabelValues(table).Add(float64(deleted))
}

// RecordCleanupFailure はクリーンアップジョブの失敗を記録する。
func (c *Collector) RecordCleanupFailure() {
	c.cleanupFailures.Inc()
}

// RegisterTrackerGauge は保持中のTracker数を公開するゲージを登録する。
func RegisterTrackerGauge(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "studylog_active_trackers",
		Help: "メモリ上に保持しているブラウザコンテキスト数",
	}, func() float64 {
		return float64(count())
	}))
}

// RegisterRateLimiterGauge はレートリミッターが保持するキー数を種別ごとに公開する。
func RegisterRateLimiterGauge(reg prometheus.Registerer, general, auth func() int) {
	for limitType, count := range map[string]func() int{"general": general, "auth": auth} {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "studylog_rate_limiter_keys",
			Help:        "レート制限の対象として保持しているキー数",
			ConstLabels: prometheus.Labels{"limit_type": limitType},
		}, func() float64 {
			return float64(count())
		}))
	}
}

// NewHTTPMiddleware はレスポンスのステータスコードと処理時間を記録するミドルウェアを返す。
func NewHTTPMiddleware(c *Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)
			c.RecordHTTPRequest(r.Method, rec.statusCode, time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.wroteHeader {
		sr.statusCode = code
		sr.wroteHeader = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
