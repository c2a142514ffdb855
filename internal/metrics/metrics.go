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
// サービス層およびミドルウェアから利用する。
type MetricsCollector interface {
	RecordSignInSuccess()
	RecordSignInFailure(reason string)
	RecordSignInLatency(duration time.Duration)
	RecordTokenVerifyFailure()
	RecordToggle(kind, op string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signInSuccess   prometheus.Counter
	signInFail      *prometheus.CounterVec
	signInLatency   prometheus.Histogram
	tokenVerifyFail prometheus.Counter
	toggleTotal     *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signInSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bukuma_signin_success_total",
			Help: "サインイン成功の合計数",
		}),
		signInFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bukuma_signin_fail_total",
			Help: "サインイン失敗の合計数（理由別）",
		}, []string{"reason"}),
		signInLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bukuma_signin_latency_seconds",
			Help:    "サインイン処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		tokenVerifyFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bukuma_token_verify_fail_total",
			Help: "セッショントークン検証失敗の合計数",
		}),
		toggleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bukuma_toggle_total",
			Help: "保存・共有トグル操作の合計数（種別・操作別）",
		}, []string{"kind", "op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bukuma_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.signInSuccess,
		c.signInFail,
		c.signInLatency,
		c.tokenVerifyFail,
		c.toggleTotal,
		c.httpStatus,
	)

	return c
}

// RecordSignInSuccess はサインイン成功を記録する。
func (c *Collector) RecordSignInSuccess() {
	c.signInSuccess.Inc()
}

// RecordSignInFailure はサインイン失敗を理由付きで記録する。
func (c *Collector) RecordSignInFailure(reason string) {
	c.signInFail.WithLabelValues(reason).Inc()
}

// RecordSignInLatency はサインイン処理のレイテンシを記録する。
func (c *Collector) RecordSignInLatency(duration time.Duration) {
	c.signInLatency.Observe(duration.Seconds())
}

// RecordTokenVerifyFailure はセッショントークンの検証失敗を記録する。
func (c *Collector) RecordTokenVerifyFailure() {
	c.tokenVerifyFail.Inc()
}

// RecordToggle は保存・共有のトグル操作を記録する。
// kindは"save"/"share"、opは"record"/"remove"。
func (c *Collector) RecordToggle(kind, op string) {
	c.toggleTotal.WithLabelValues(kind, op).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
