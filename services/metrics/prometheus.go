package metricsvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/aula/core/task"
)

// Prometheus collects the HTTP and task source metrics of one server.
// Each instance owns its registry so tests can build as many as they need.
type Prometheus struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	inFlightRequests prometheus.Gauge

	sourceFetchDuration *prometheus.HistogramVec
	sourceFetchFailures *prometheus.CounterVec
}

var _ task.Metrics = (*Prometheus)(nil)

func New(namespace string) *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"method", "route"},
		),
		inFlightRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests",
			},
		),
		sourceFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_source_fetch_duration_seconds",
				Help:      "Duration of task source queries in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"source"},
		),
		sourceFetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_source_fetch_failures_total",
				Help:      "Total number of task source queries that failed and were served empty",
			},
			[]string{"source"},
		),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.requestsTotal,
		p.requestDuration,
		p.inFlightRequests,
		p.sourceFetchDuration,
		p.sourceFetchFailures,
	)
	return p
}

func (p *Prometheus) ObserveFetch(src task.Source, elapsed time.Duration, err error) {
	p.sourceFetchDuration.WithLabelValues(string(src)).Observe(elapsed.Seconds())
	if err != nil {
		p.sourceFetchFailures.WithLabelValues(string(src)).Inc()
	}
}

// Middleware records every request under its route pattern (eg. /v1/students/:id), not its path.
// Handler errors are written here through the app error handler, so the recorded status is the one sent.
func (p *Prometheus) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p.inFlightRequests.Inc()
			defer p.inFlightRequests.Dec()

			start := time.Now()
			if err := next(ctx); err != nil {
				// the app error handler picks the status of wrapped domain errors
				ctx.Error(err)
			}

			status := ctx.Response().Status
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ctx.Request().Method
			p.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			p.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler serves the registry in the prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
