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
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordStatusUpsert(mode string, records int)
	RecordStatusClear(deleted int64)
	RecordVisibilityQuery(scope string)
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(duration time.Duration)
	RecordCleanupDeleted(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	statusUpserts     *prometheus.CounterVec
	statusClears      prometheus.Counter
	visibilityQueries *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
	requestDuration   prometheus.Histogram
	cleanupDeleted    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		statusUpserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchplan_status_upserts_total",
			Help: "書き込みモード別の予定保存レコード数",
		}, []string{"mode"}),
		statusClears: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lunchplan_status_clears_total",
			Help: "クリアされた予定の合計数",
		}),
		visibilityQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchplan_visibility_queries_total",
			Help: "スコープ別の予定一覧クエリ数",
		}, []string{"scope"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchplan_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lunchplan_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lunchplan_cleanup_deleted_total",
			Help: "保持期間切れで削除された予定の合計数",
		}),
	}

	reg.MustRegister(
		c.statusUpserts,
		c.statusClears,
		c.visibilityQueries,
		c.httpStatus,
		c.requestDuration,
		c.cleanupDeleted,
	)

	return c
}

// RecordStatusUpsert は書き込みモードごとの保存レコード数を記録する。
func (c *Collector) RecordStatusUpsert(mode string, records int) {
	c.statusUpserts.WithLabelValues(mode).Add(float64(records))
}

// RecordStatusClear はクリアされた予定数を記録する。
func (c *Collector) RecordStatusClear(deleted int64) {
	c.statusClears.Add(float64(deleted))
}

// RecordVisibilityQuery は予定一覧クエリを記録する。scopeは "group" または "global"。
func (c *Collector) RecordVisibilityQuery(scope string) {
	c.visibilityQueries.WithLabelValues(scope).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestDuration(duration time.Duration) {
	c.requestDuration.Observe(duration.Seconds())
}

// RecordCleanupDeleted はクリーンアップで削除された予定数を記録する。
func (c *Collector) RecordCleanupDeleted(count int64) {
	c.cleanupDeleted.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordStatusUpsert(string, int)      {}
func (Nop) RecordStatusClear(int64)             {}
func (Nop) RecordVisibilityQuery(string)        {}
func (Nop) RecordHTTPStatus(int)                {}
func (Nop) RecordRequestDuration(time.Duration) {}
func (Nop) RecordCleanupDeleted(int64)          {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
