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
// ナビゲーションエンジン、APIクライアント、ダウンロード処理から利用する。
type MetricsCollector interface {
	RecordNavigation(source string, duration time.Duration)
	RecordRemoteFailure(kind string)
	RecordExhausted(code string)
	RecordHTTPStatus(statusCode int)
	RecordDownload(success bool)
	RecordImagesDownloaded(count int)
	RecordCacheLookup(hit bool)
	RecordEntriesPruned(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	navigations       *prometheus.CounterVec
	navigationLatency prometheus.Histogram
	remoteFailures    *prometheus.CounterVec
	exhausted         *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
	downloads         *prometheus.CounterVec
	imagesDownloaded  prometheus.Counter
	cacheLookups      *prometheus.CounterVec
	entriesPruned     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxreader_navigation_total",
			Help: "解決元（remote/offline/local）別のナビゲーション成功数",
		}, []string{"source"}),
		navigationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fluxreader_navigation_latency_seconds",
			Help:    "ナビゲーション解決のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		remoteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxreader_remote_failure_total",
			Help: "オフライン探索に切り替えたリモート問い合わせ失敗の合計数",
		}, []string{"kind"}),
		exhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxreader_navigation_exhausted_total",
			Help: "リスト終端に到達したナビゲーションの合計数",
		}, []string{"code"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxreader_http_status_total",
			Help: "Miniflux APIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxreader_downloads_total",
			Help: "記事ダウンロードの合計数",
		}, []string{"result"}),
		imagesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fluxreader_images_downloaded_total",
			Help: "ダウンロードした画像の合計数",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxreader_cache_lookups_total",
			Help: "カタログキャッシュの参照数",
		}, []string{"result"}),
		entriesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fluxreader_entries_pruned_total",
			Help: "保持期間を超過して削除したローカル記事の合計数",
		}),
	}

	reg.MustRegister(
		c.navigations,
		c.navigationLatency,
		c.remoteFailures,
		c.exhausted,
		c.httpStatus,
		c.downloads,
		c.imagesDownloaded,
		c.cacheLookups,
		c.entriesPruned,
	)

	return c
}

// RecordNavigation はナビゲーション成功とそのレイテンシを記録する。
func (c *Collector) RecordNavigation(source string, duration time.Duration) {
	c.navigations.WithLabelValues(source).Inc()
	c.navigationLatency.Observe(duration.Seconds())
}

// RecordRemoteFailure はリモート問い合わせの失敗を記録する。
func (c *Collector) RecordRemoteFailure(kind string) {
	c.remoteFailures.WithLabelValues(kind).Inc()
}

// RecordExhausted はリスト終端への到達を記録する。
func (c *Collector) RecordExhausted(code string) {
	c.exhausted.WithLabelValues(code).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordDownload は記事ダウンロードの結果を記録する。
func (c *Collector) RecordDownload(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.downloads.WithLabelValues(result).Inc()
}

// RecordImagesDownloaded はダウンロードした画像数を記録する。
func (c *Collector) RecordImagesDownloaded(count int) {
	c.imagesDownloaded.Add(float64(count))
}

// RecordCacheLookup はキャッシュ参照のヒット・ミスを記録する。
func (c *Collector) RecordCacheLookup(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// RecordEntriesPruned は削除したローカル記事数を記録する。
func (c *Collector) RecordEntriesPruned(count int) {
	c.entriesPruned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
