// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// スナップショットリーダーやミドルウェアから利用する。
type Recorder interface {
	RecordCacheHit(resource string)
	RecordCacheMiss(resource string)
	RecordRefreshFailure(resource string)
	RecordRateLimitRejected()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cacheHit    *prometheus.CounterVec
	cacheMiss   *prometheus.CounterVec
	refreshFail *prometheus.CounterVec
	rateLimited prometheus.Counter
	httpStatus  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchday_cache_hit_total",
			Help: "スナップショットキャッシュヒットの合計数",
		}, []string{"resource"}),
		cacheMiss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchday_cache_miss_total",
			Help: "スナップショットキャッシュミスの合計数",
		}, []string{"resource"}),
		refreshFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchday_snapshot_refresh_fail_total",
			Help: "スナップショット再構築失敗の合計数",
		}, []string{"resource"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchday_ratelimit_rejected_total",
			Help: "レート制限により拒否されたリクエストの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matchday_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.cacheHit,
		c.cacheMiss,
		c.refreshFail,
		c.rateLimited,
		c.httpStatus,
	)

	return c
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(resource string) {
	c.cacheHit.WithLabelValues(resource).Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss(resource string) {
	c.cacheMiss.WithLabelValues(resource).Inc()
}

// RecordRefreshFailure はスナップショット再構築の失敗を記録する。
func (c *Collector) RecordRefreshFailure(resource string) {
	c.refreshFail.WithLabelValues(resource).Inc()
}

// RecordRateLimitRejected はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimitRejected() {
	c.rateLimited.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないRecorder。メトリクスが不要な構成やテストで使う。
type Nop struct{}

func (Nop) RecordCacheHit(string)     {}
func (Nop) RecordCacheMiss(string)    {}
func (Nop) RecordRefreshFailure(string) {}
func (Nop) RecordRateLimitRejected()  {}
func (Nop) RecordHTTPStatus(int)      {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface checks
var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
