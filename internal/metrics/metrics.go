// Package metrics exposes Prometheus counters for the taxonomy caches and
// the HTTP layer. Each Collector owns a private registry so tests can build
// as many as they like without duplicate-registration panics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application.
type Collector struct {
	registry *prometheus.Registry

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector creates and registers all metrics under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_cache_hits_total",
			Help:      "Tree cache lookups served from memory.",
		}, []string{"domain"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_cache_misses_total",
			Help:      "Tree cache lookups that fell through to the database.",
		}, []string{"domain"}),
		cacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_cache_evictions_total",
			Help:      "Expired tree cache entries removed.",
		}, []string{"domain"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	c.registry.MustRegister(
		c.cacheHits,
		c.cacheMisses,
		c.cacheEvictions,
		c.httpRequests,
		c.httpDuration,
	)
	return c
}

// CacheHit implements hierarchy.CacheObserver.
func (c *Collector) CacheHit(domain string) {
	c.cacheHits.WithLabelValues(domain).Inc()
}

// CacheMiss implements hierarchy.CacheObserver.
func (c *Collector) CacheMiss(domain string) {
	c.cacheMisses.WithLabelValues(domain).Inc()
}

// CacheEvicted implements hierarchy.CacheObserver.
func (c *Collector) CacheEvicted(domain string, n int) {
	c.cacheEvictions.WithLabelValues(domain).Add(float64(n))
}

// ObserveRequest records one finished HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
