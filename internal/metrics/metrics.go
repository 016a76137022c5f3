// Package metrics exposes Prometheus collectors for the oracle.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bondoracle"

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	priceQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "oracle",
		Name:      "price_queries_total",
		Help:      "Price queries by lookup kind and outcome.",
	}, []string{"kind", "outcome"})

	priceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "oracle",
		Name:      "price_query_duration_seconds",
		Help:      "Upstream read latency of price queries.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"kind"})

	snapshots = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "snapshot",
		Name:      "writes_total",
		Help:      "Registry snapshot writes by outcome.",
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		priceQueries,
		priceDuration,
		snapshots,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler serves the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Instrument records request counts and latency for every route except
// /metrics itself.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := CanonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// ObservePriceQuery records one price lookup. kind is "market" or "pair".
func ObservePriceQuery(kind string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	priceQueries.WithLabelValues(kind, outcome).Inc()
	priceDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

// ObserveSnapshot records one snapshot write attempt.
func ObserveSnapshot(err error) {
	if err != nil {
		snapshots.WithLabelValues("error").Inc()
		return
	}
	snapshots.WithLabelValues("ok").Inc()
}

// CanonicalPath collapses path parameters so label cardinality stays
// bounded: /api/markets/42/price becomes /api/markets/:id/price.
func CanonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "api" || len(parts) < 2 {
		return "/" + parts[0]
	}

	switch parts[1] {
	case "markets":
		return "/api/markets" + paramTail(parts[2:], ":id")
	case "pairs":
		return "/api/pairs" + paramTail(parts[2:], ":quote", ":payout")
	case "auctioneers":
		return "/api/auctioneers" + paramTail(parts[2:], ":address")
	default:
		return "/" + strings.Join(parts, "/")
	}
}

// paramTail replaces the leading segments with names and keeps the rest.
func paramTail(segs []string, names ...string) string {
	var b strings.Builder
	for i, s := range segs {
		b.WriteByte('/')
		if i < len(names) {
			b.WriteString(names[i])
		} else {
			b.WriteString(s)
		}
	}
	return b.String()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer for WebSocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
