// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証イベントの結果ラベル
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordLogin(outcome string)
	RecordSignup(outcome string)
	RecordLogout()
	RecordExerciseLog(sizeBytes int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	login          *prometheus.CounterVec
	signup         *prometheus.CounterVec
	logout         prometheus.Counter
	exerciseLogs   prometheus.Counter
	exerciseBytes  prometheus.Histogram
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	sessionsPurged prometheus.Counter
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		login: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "valuetrainer_login_total",
			Help: "ログイン試行の結果別合計数",
		}, []string{"outcome"}),
		signup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "valuetrainer_signup_total",
			Help: "アカウント登録の結果別合計数",
		}, []string{"outcome"}),
		logout: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "valuetrainer_logout_total",
			Help: "ログアウトの合計数",
		}),
		exerciseLogs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "valuetrainer_exercise_log_total",
			Help: "受信した練習ログの合計数",
		}),
		exerciseBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "valuetrainer_exercise_log_bytes",
			Help:    "受信した練習ログのサイズ（バイト）",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "valuetrainer_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "valuetrainer_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "valuetrainer_sessions_purged_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.login,
		c.signup,
		c.logout,
		c.exerciseLogs,
		c.exerciseBytes,
		c.httpStatus,
		c.requestLatency,
		c.sessionsPurged,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.login.WithLabelValues(outcome).Inc()
}

// RecordSignup はアカウント登録の結果を記録する。
func (c *Collector) RecordSignup(outcome string) {
	c.signup.WithLabelValues(outcome).Inc()
}

// RecordLogout はログアウトを記録する。
func (c *Collector) RecordLogout() {
	c.logout.Inc()
}

// RecordExerciseLog は練習ログの受信を記録する。
func (c *Collector) RecordExerciseLog(sizeBytes int) {
	c.exerciseLogs.Inc()
	c.exerciseBytes.Observe(float64(sizeBytes))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordSessionsPurged は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクスを必要としないコマンドやテストで使用する。
type NopCollector struct{}

var _ MetricsCollector = NopCollector{}

func (NopCollector) RecordLogin(string)                 {}
func (NopCollector) RecordSignup(string)                {}
func (NopCollector) RecordLogout()                      {}
func (NopCollector) RecordExerciseLog(int)              {}
func (NopCollector) RecordHTTPStatus(int)               {}
func (NopCollector) RecordRequestLatency(time.Duration) {}
func (NopCollector) RecordSessionsPurged(int64)         {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
