package podengine

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricsNamespace = "podengine"

// appMetrics holds the application counters. Each App owns its registry so
// several Apps (tests) can live in one process.
type appMetrics struct {
	registry         *prometheus.Registry
	rateLimited      *prometheus.CounterVec
	logins           *prometheus.CounterVec
	blogReplacements *prometheus.CounterVec
}

func newAppMetrics() *appMetrics {
	reg := prometheus.NewRegistry()
	m := &appMetrics{
		registry: reg,
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limiter.",
		}, []string{"limiter"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logins_total",
			Help:      "Admin login attempts by result.",
		}, []string{"result"}),
		blogReplacements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blog_replacements_total",
			Help:      "Blog collection replacements by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.rateLimited,
		m.logins,
		m.blogReplacements,
	)
	return m
}

func (m *appMetrics) middleware() echo.MiddlewareFunc {
	return echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  metricsNamespace,
		Registerer: m.registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	})
}

func (m *appMetrics) handler() echo.HandlerFunc {
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: m.registry})
}
