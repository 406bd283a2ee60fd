// Package metrics exports cache and reconciliation events to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-donation-cache/cache"
	"github.com/goliatone/go-donation-cache/payments"
)

const namespace = "donations"

// Reconcile run results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collector implements cache.Observer and payments.Observer.
type Collector struct {
	registry *prometheus.Registry

	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	cacheErrors      *prometheus.CounterVec
	invalidations    *prometheus.CounterVec
	invalidatedKeys  prometheus.Counter
	reconcileRuns    *prometheus.CounterVec
	reconcilePages   prometheus.Counter
	reconcileSkipped prometheus.Counter
	statusChanges    *prometheus.CounterVec
	captures         *prometheus.CounterVec
}

var (
	_ cache.Observer    = (*Collector)(nil)
	_ payments.Observer = (*Collector)(nil)
)

// New creates a collector on its own registry, together with the Go runtime
// and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache reads answered from the cache.",
		}, []string{"tag"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache reads that had to compute the value.",
		}, []string{"tag"}),
		cacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Cache store failures, treated as misses.",
		}, []string{"op"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Invalidation passes by tag.",
		}, []string{"tag"}),
		invalidatedKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidated_keys_total",
			Help:      "Keys deleted by invalidation.",
		}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Payment reconciliation runs by result.",
		}, []string{"result"}),
		reconcilePages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_pages_total",
			Help:      "Provider pages committed by reconciliation.",
		}),
		reconcileSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_skipped_total",
			Help:      "Provider payments skipped for missing or malformed local data.",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_status_changes_total",
			Help:      "Local payment status transitions.",
		}, []string{"from", "to"}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_captures_total",
			Help:      "Provider captures by resulting status.",
		}, []string{"status"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.cacheHits,
		c.cacheMisses,
		c.cacheErrors,
		c.invalidations,
		c.invalidatedKeys,
		c.reconcileRuns,
		c.reconcilePages,
		c.reconcileSkipped,
		c.statusChanges,
		c.captures,
	)
	return c
}

// Registry returns the registry holding every metric.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) CacheHit(tag cache.Tag) {
	c.cacheHits.WithLabelValues(tag.String()).Inc()
}

func (c *Collector) CacheMiss(tag cache.Tag) {
	c.cacheMisses.WithLabelValues(tag.String()).Inc()
}

func (c *Collector) CacheError(op string, _ error) {
	c.cacheErrors.WithLabelValues(op).Inc()
}

func (c *Collector) CacheInvalidated(tags []cache.Tag, deleted int) {
	for _, tag := range tags {
		c.invalidations.WithLabelValues(tag.String()).Inc()
	}
	c.invalidatedKeys.Add(float64(deleted))
}

func (c *Collector) ReconcileFinished(report payments.Report, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	c.reconcileRuns.WithLabelValues(result).Inc()
	c.reconcilePages.Add(float64(report.Pages))
	c.reconcileSkipped.Add(float64(report.Skipped))
}

func (c *Collector) StatusChanged(from, to payments.Status) {
	c.statusChanges.WithLabelValues(from.String(), to.String()).Inc()
}

func (c *Collector) PaymentCaptured(status payments.Status) {
	c.captures.WithLabelValues(status.String()).Inc()
}
