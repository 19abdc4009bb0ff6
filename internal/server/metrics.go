package server

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/John-Robertt/causematch/internal/domain"
)

const metricsNamespace = "causematch"

// Metrics 是 web 服务的 prometheus 指标。每个 Server 使用独立 registry，测试之间互不干扰。
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal *prometheus.CounterVec
	requestDur    *prometheus.HistogramVec

	runsTotal      *prometheus.CounterVec
	casesExtracted prometheus.Counter
	rowsMatched    prometheus.Counter
	sheetsSkipped  *prometheus.CounterVec
	sourcesFailed  *prometheus.CounterVec
}

// NewMetrics 创建并注册全部指标（含 Go runtime / process collector）。
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "endpoint", "status"}),
		requestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "endpoint"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Extraction and match runs served, by kind.",
		}, []string{"kind"}),
		casesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cases_extracted_total",
			Help:      "Case identifiers extracted from cause lists.",
		}),
		rowsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rows_matched_total",
			Help:      "Workbook rows matched against cause lists.",
		}),
		sheetsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sheets_skipped_total",
			Help:      "Sheets skipped during matching, by reason.",
		}, []string{"reason"}),
		sourcesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sources_failed_total",
			Help:      "Input resources that could not be read, by error code.",
		}, []string{"error_code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDur,
		m.runsTotal,
		m.casesExtracted,
		m.rowsMatched,
		m.sheetsSkipped,
		m.sourcesFailed,
	)
	return m
}

// Handler 返回 /metrics 的 echo handler。
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Middleware 记录每个请求的计数与耗时。endpoint 使用路由模板，避免高基数。
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "unmatched"
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			method := c.Request().Method
			m.requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
			m.requestDur.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) observeExtract(cases int) {
	m.runsTotal.WithLabelValues("extract").Inc()
	m.casesExtracted.Add(float64(cases))
}

func (m *Metrics) observeRun(rr domain.RunReport) {
	m.runsTotal.WithLabelValues("match").Inc()
	m.casesExtracted.Add(float64(rr.Summary.Cases))
	m.rowsMatched.Add(float64(rr.Summary.Matched))
	for _, sh := range rr.Sheets {
		if sh.Status == domain.SheetSkipped {
			m.sheetsSkipped.WithLabelValues(sh.Reason).Inc()
		}
	}
	for _, s := range rr.Sources {
		if s.Status == domain.SourceFailed {
			m.sourcesFailed.WithLabelValues(s.ErrorCode).Inc()
		}
	}
}
