package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var regOnce sync.Once

// Prometheus aggregates the counters and gauges the prediction pipeline
// reports. All collectors live on the default registry so the standard
// /metrics endpoint picks them up alongside the HTTP and Kafka metrics.
type Prometheus struct {
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	fetchErrors    *prometheus.CounterVec
	storeErrors    *prometheus.CounterVec
	opLatency      *prometheus.HistogramVec
	predictedPrice *prometheus.GaugeVec
}

// NewPrometheus creates the metric set and registers it once per process.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tikr_cache_hits_total",
			Help: "Valid cached predictions served without a remote fetch",
		}, []string{"ticker"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tikr_cache_misses_total",
			Help: "Cache lookups that were absent or expired",
		}, []string{"ticker"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tikr_fetch_errors_total",
			Help: "Remote inference fetches that failed after retries",
		}, []string{"ticker"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tikr_store_errors_total",
			Help: "Document store failures by kind (read, write, permission, history)",
		}, []string{"kind"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tikr_operation_duration_seconds",
			Help:    "End-to-end latency of manager operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		predictedPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tikr_predicted_price",
			Help: "Latest predicted price per ticker",
		}, []string{"ticker"}),
	}
	regOnce.Do(func() {
		prometheus.MustRegister(
			p.cacheHits,
			p.cacheMisses,
			p.fetchErrors,
			p.storeErrors,
			p.opLatency,
			p.predictedPrice,
		)
	})
	return p
}

func (p *Prometheus) RecordCacheHit(ticker string) {
	p.cacheHits.WithLabelValues(ticker).Inc()
}

func (p *Prometheus) RecordCacheMiss(ticker string) {
	p.cacheMisses.WithLabelValues(ticker).Inc()
}

func (p *Prometheus) RecordFetchError(ticker string) {
	p.fetchErrors.WithLabelValues(ticker).Inc()
}

func (p *Prometheus) RecordStoreError(kind string) {
	p.storeErrors.WithLabelValues(kind).Inc()
}

func (p *Prometheus) RecordLatency(op string, seconds float64) {
	p.opLatency.WithLabelValues(op).Observe(seconds)
}

func (p *Prometheus) RecordPredictedPrice(ticker string, price float64) {
	p.predictedPrice.WithLabelValues(ticker).Set(price)
}

// Handler exposes the default registry for scraping.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.Handler()
}
