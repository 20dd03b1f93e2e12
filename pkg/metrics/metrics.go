// Package metrics 提供 Prometheus 指标定义与暴露
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/solarhealth/pkg/logger"
)

const namespace = "solarhealth"

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求计数（method, path, status）
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec
	// gRPC 请求计数（method, code）
	GRPCRequestsTotal *prometheus.CounterVec
	// gRPC 请求耗时
	GRPCRequestDuration *prometheus.HistogramVec

	// 业务指标
	EvaluationsTotal       *prometheus.CounterVec
	EvaluationNeverPayback prometheus.Counter
	RegistrationsTotal     *prometheus.CounterVec
	PredictionsTotal       *prometheus.CounterVec
	OutboxRelayedTotal     *prometheus.CounterVec
	CacheLookupsTotal      *prometheus.CounterVec
}

// New 创建指标实例，并注册到独立的 registry
func New(serviceName string) *Metrics {
	constLabels := prometheus.Labels{"service": serviceName}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_requests_total",
			Help:        "Total HTTP requests",
			ConstLabels: constLabels,
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"method", "path"}),
		GRPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "grpc_requests_total",
			Help:        "Total gRPC requests",
			ConstLabels: constLabels,
		}, []string{"method", "code"}),
		GRPCRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "grpc_request_duration_seconds",
			Help:        "gRPC request duration in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"method"}),
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "evaluations_total",
			Help:        "Photovoltaic evaluations by viability",
			ConstLabels: constLabels,
		}, []string{"viable"}),
		EvaluationNeverPayback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "evaluation_never_payback_total",
			Help:        "Evaluations whose payback period is the 999 sentinel",
			ConstLabels: constLabels,
		}),
		RegistrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "registrations_total",
			Help:        "Complete facility registrations by result",
			ConstLabels: constLabels,
		}, []string{"result"}),
		PredictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "predictions_total",
			Help:        "Consumption and peak-shaving predictions by kind",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		OutboxRelayedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "outbox_relayed_total",
			Help:        "Outbox messages relayed to Kafka by result",
			ConstLabels: constLabels,
		}, []string{"result"}),
		CacheLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cache_lookups_total",
			Help:        "Cache lookups by cache name and outcome",
			ConstLabels: constLabels,
		}, []string{"cache", "outcome"}),
	}
	return m
}

// Register 注册全部指标以及 Go 运行时采集器
func (m *Metrics) Register() error {
	cs := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GRPCRequestsTotal,
		m.GRPCRequestDuration,
		m.EvaluationsTotal,
		m.EvaluationNeverPayback,
		m.RegistrationsTotal,
		m.PredictionsTotal,
		m.OutboxRelayedTotal,
		m.CacheLookupsTotal,
	}
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return nil
}

// Registry 返回底层 registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// StartHTTPServer 在独立端口上暴露指标，ctx 取消时关闭
func (m *Metrics) StartHTTPServer(ctx context.Context, port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info(ctx, "Metrics server starting", "port", port, "path", path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// ObserveHTTP 记录一次 HTTP 请求
func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, fmt.Sprint(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// ObserveGRPC 记录一次 gRPC 请求
func (m *Metrics) ObserveGRPC(method, code string, d time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}
