// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// account, importer, storage, reconcile の各 MetricsRecorder/Observer を満たす。
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
	storageOps      *prometheus.CounterVec
	storageLatency  *prometheus.HistogramVec
	registrations   *prometheus.CounterVec
	logins          *prometheus.CounterVec
	coursesImported prometheus.Counter
	reconcileRepair prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capacita_http_requests_total",
			Help: "HTTPリクエスト数（メソッド、ルート、ステータス別）",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "capacita_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		storageOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capacita_storage_operations_total",
			Help: "ストレージ操作数（バックエンド、操作、結果別）",
		}, []string{"backend", "op", "result"}),
		storageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "capacita_storage_operation_duration_seconds",
			Help:    "ストレージ操作の所要時間（秒）",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"backend", "op"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capacita_registrations_total",
			Help: "ユーザー登録数（種別別）",
		}, []string{"kind"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capacita_logins_total",
			Help: "ログイン試行数（結果別）",
		}, []string{"result"}),
		coursesImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capacita_courses_imported_total",
			Help: "フィードからインポートされた講座の合計数",
		}),
		reconcileRepair: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capacita_reconcile_repairs_total",
			Help: "整合性チェックで修復されたレコードの合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.storageOps,
		c.storageLatency,
		c.registrations,
		c.logins,
		c.coursesImported,
		c.reconcileRepair,
	)

	return c
}

// ObserveHTTPRequest はHTTPリクエスト1件を記録する。
// route にはパスパラメータを含まないルートパターンを渡す。
func (c *Collector) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveStorageOp はストレージ操作1件を記録する。
func (c *Collector) ObserveStorageOp(backend, op string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.storageOps.WithLabelValues(backend, op, result).Inc()
	c.storageLatency.WithLabelValues(backend, op).Observe(duration.Seconds())
}

// RecordRegistration はユーザー登録を記録する。
func (c *Collector) RecordRegistration(kind string) {
	c.registrations.WithLabelValues(kind).Inc()
}

// RecordLogin はログイン試行を記録する。
func (c *Collector) RecordLogin(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.logins.WithLabelValues(result).Inc()
}

// RecordCoursesImported はインポートされた講座数を記録する。
func (c *Collector) RecordCoursesImported(n int) {
	c.coursesImported.Add(float64(n))
}

// RecordReconcileRepairs は整合性チェックで修復した件数を記録する。
func (c *Collector) RecordReconcileRepairs(n int) {
	c.reconcileRepair.Add(float64(n))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

