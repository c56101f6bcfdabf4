package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nftstudio/nft-minter/internal/core/domain"
)

const namespace = "nftminter"

// Metrics owns the application's collectors and their registry.
type Metrics struct {
	registry *prometheus.Registry

	mints        *prometheus.CounterVec
	mintDuration *prometheus.HistogramVec
	pins         *prometheus.CounterVec
	pinDuration  prometheus.Histogram
	galleries    *prometheus.CounterVec
	galleryItems prometheus.Histogram

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		mints: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "total",
			Help:      "Mint pipeline runs by terminal state.",
		}, []string{"state"}),
		mintDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "duration_seconds",
			Help:      "Mint pipeline duration by terminal state.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"state"}),
		pins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pin",
			Name:      "total",
			Help:      "Metadata pin requests by outcome.",
		}, []string{"outcome"}),
		pinDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pin",
			Name:      "duration_seconds",
			Help:      "Metadata pin request duration.",
			Buckets:   prometheus.DefBuckets,
		}),
		galleries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gallery",
			Name:      "fetches_total",
			Help:      "Ownership queries by outcome.",
		}, []string{"outcome"}),
		galleryItems: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gallery",
			Name:      "items",
			Help:      "Items returned per successful ownership query.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "UI shell requests.",
		}, []string{"method", "route", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "UI shell request duration.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"method", "route"}),
	}
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) MintFinished(state domain.MintState, took time.Duration) {
	m.mints.WithLabelValues(string(state)).Inc()
	m.mintDuration.WithLabelValues(string(state)).Observe(took.Seconds())
}

func (m *Metrics) PinFinished(err error, took time.Duration) {
	m.pins.WithLabelValues(outcome(err)).Inc()
	m.pinDuration.Observe(took.Seconds())
}

func (m *Metrics) GalleryFetched(err error, count int, _ time.Duration) {
	m.galleries.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.galleryItems.Observe(float64(count))
	}
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// outcome labels err by its domain kind.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := domain.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
