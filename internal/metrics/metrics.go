package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "globe_requests_total",
		Help: "Total number of API requests by route",
	}, []string{"route"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "globe_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route"})
	HitTestTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globe_hittest_total",
		Help: "Total point-location queries",
	})
	HitTestFallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "globe_hittest_fallback_total",
		Help: "Point-location queries answered by a fallback path",
	}, []string{"kind"})
	HitTestDurationUs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "globe_hittest_duration_us",
		Help:    "Point-location duration in microseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	})
	LabelSelectTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globe_label_select_total",
		Help: "Total label selection cycles",
	})
	LabelWinners = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "globe_label_winners",
		Help:    "Winners per label selection cycle",
		Buckets: []float64{0, 5, 10, 15, 20, 30, 45, 60},
	})
	LabelStickyKeptTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globe_label_sticky_kept_total",
		Help: "Grid cells that kept their previous winner",
	})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "globe_cache_hits_total",
		Help: "Cache hits by layer (lru, shared)",
	}, []string{"layer"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "globe_cache_misses_total",
		Help: "Cache misses by layer (lru, shared)",
	}, []string{"layer"})
	CacheErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "globe_cache_errors_total",
		Help: "Shared cache read/write errors by backend",
	}, []string{"backend"})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globe_rate_limited_total",
		Help: "Requests rejected by the token bucket",
	})
	AMapRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globe_amap_requests_total",
		Help: "Total AMap IP location requests",
	})
	AMapFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globe_amap_fail_total",
		Help: "Failed AMap IP location requests",
	})
	AMapDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "globe_amap_duration_ms",
		Help:    "AMap request duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 4000},
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(HitTestTotal)
	prometheus.MustRegister(HitTestFallbackTotal)
	prometheus.MustRegister(HitTestDurationUs)
	prometheus.MustRegister(LabelSelectTotal)
	prometheus.MustRegister(LabelWinners)
	prometheus.MustRegister(LabelStickyKeptTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheErrorsTotal)
	prometheus.MustRegister(RateLimitedTotal)
	prometheus.MustRegister(AMapRequestsTotal)
	prometheus.MustRegister(AMapFailTotal)
	prometheus.MustRegister(AMapDurationMs)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
