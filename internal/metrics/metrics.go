// Package metrics exposes the dashboard's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "servereye"

// Refresh results.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
	ResultStale   = "stale"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	events          prometheus.Gauge
	players         prometheus.Gauge
	eventsByType    *prometheus.GaugeVec
	upstreamUp      prometheus.Gauge
	cacheUsage      prometheus.Gauge
	cleanups        *prometheus.CounterVec
	wsClients       prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

// New registers all collectors, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Refresh attempts by trigger and result.",
		}, []string{"trigger", "result"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Time spent fetching and ingesting events.",
			Buckets:   prometheus.DefBuckets,
		}),
		events: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events",
			Help:      "Events in the current snapshot.",
		}),
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "distinct_players",
			Help:      "Distinct players in the current snapshot.",
		}),
		eventsByType: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_by_type",
			Help:      "Events in the current snapshot by event type.",
		}, []string{"type"}),
		upstreamUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_up",
			Help:      "1 when the last upstream fetch succeeded.",
		}),
		cacheUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_cache_usage_percent",
			Help:      "Upstream event cache usage.",
		}),
		cleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanups_total",
			Help:      "Manual cleanups by result.",
		}, []string{"result"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected dashboard WebSocket clients.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Dashboard HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter by route.",
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.refreshes,
		m.refreshDuration,
		m.events,
		m.players,
		m.eventsByType,
		m.upstreamUp,
		m.cacheUsage,
		m.cleanups,
		m.wsClients,
		m.httpRequests,
		m.rateLimited,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.InstrumentMetricHandler(m.registry, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) ObserveRefresh(trigger, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(trigger, result).Inc()
	if result == ResultOK || result == ResultError {
		m.refreshDuration.Observe(d.Seconds())
	}
}

// SetSnapshot publishes the aggregate counts of the current snapshot.
func (m *Metrics) SetSnapshot(total, players int, perType map[string]int) {
	if m == nil {
		return
	}
	m.events.Set(float64(total))
	m.players.Set(float64(players))
	m.eventsByType.Reset()
	for t, n := range perType {
		m.eventsByType.WithLabelValues(t).Set(float64(n))
	}
}

func (m *Metrics) SetUpstream(online bool) {
	if m == nil {
		return
	}
	if online {
		m.upstreamUp.Set(1)
	} else {
		m.upstreamUp.Set(0)
	}
}

func (m *Metrics) SetCacheUsage(percent int) {
	if m == nil {
		return
	}
	m.cacheUsage.Set(float64(percent))
}

func (m *Metrics) ObserveCleanup(result string) {
	if m == nil {
		return
	}
	m.cleanups.WithLabelValues(result).Inc()
}

func (m *Metrics) AddWSClients(delta int) {
	if m == nil {
		return
	}
	m.wsClients.Add(float64(delta))
}

func (m *Metrics) ObserveHTTP(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, statusText(code)).Inc()
}

func (m *Metrics) ObserveRateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}

func statusText(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
