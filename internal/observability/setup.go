package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	promreg "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/ncecere/spendwatch/internal/config"
)

const metricsNamespace = "spendwatch"

type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *metric.MeterProvider
	promExporter   *prometheus.Exporter
	promHandler    http.Handler
	shutdownFuncs  []func(context.Context) error

	httpRequestCounter *promreg.CounterVec
	httpRequestLatency *promreg.HistogramVec
	syncRuns           *promreg.CounterVec
	syncDuration       *promreg.HistogramVec
	syncRecords        *promreg.CounterVec
	alertsFired        *promreg.CounterVec
	webhookEvents      *promreg.CounterVec
}

func Setup(ctx context.Context, cfg config.ObservabilityConfig) (*Provider, error) {
	if !cfg.EnableOTLP && !cfg.EnableMetrics {
		return nil, nil
	}

	provider := &Provider{}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("spendwatch"),
		),
	)
	if err != nil {
		return nil, err
	}

	if cfg.EnableOTLP {
		rawEndpoint := strings.TrimSpace(cfg.OTLPEndpoint)
		endpoint := rawEndpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		opts := []otlptracegrpc.Option{}
		switch {
		case strings.HasPrefix(endpoint, "http://"):
			endpoint = strings.TrimPrefix(endpoint, "http://")
			opts = append(opts, otlptracegrpc.WithInsecure())
		case strings.HasPrefix(endpoint, "https://"):
			endpoint = strings.TrimPrefix(endpoint, "https://")
		default:
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))

		client := otlptracegrpc.NewClient(opts...)
		exporter, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, err
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		provider.tracerProvider = tp
		provider.shutdownFuncs = append(provider.shutdownFuncs, tp.Shutdown)
	}

	if cfg.EnableMetrics {
		registry := promreg.NewRegistry()
		promExporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, err
		}
		mp := metric.NewMeterProvider(
			metric.WithReader(promExporter),
			metric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		provider.meterProvider = mp
		provider.promExporter = promExporter
		provider.promHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
		provider.shutdownFuncs = append(provider.shutdownFuncs, mp.Shutdown)

		httpRequests := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed.",
			},
			[]string{"method", "route", "status"},
		)
		latencyBuckets := []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10}
		httpLatency := promreg.NewHistogramVec(
			promreg.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   latencyBuckets,
			},
			[]string{"method", "route", "status"},
		)
		syncRuns := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "usage_sync_runs_total",
				Help:      "Provider usage syncs by outcome.",
			},
			[]string{"provider", "status"},
		)
		syncDuration := promreg.NewHistogramVec(
			promreg.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "usage_sync_duration_seconds",
				Help:      "Duration of provider usage syncs.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		)
		syncRecords := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "usage_records_synced_total",
				Help:      "Daily usage rows written by syncs.",
			},
			[]string{"provider"},
		)
		alertsFired := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "alerts_fired_total",
				Help:      "Alert notifications dispatched by severity.",
			},
			[]string{"type", "severity"},
		)
		webhookEvents := promreg.NewCounterVec(
			promreg.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "billing_webhook_events_total",
				Help:      "Billing webhook events by type and outcome.",
			},
			[]string{"type", "outcome"},
		)
		for _, collector := range []promreg.Collector{httpRequests, httpLatency, syncRuns, syncDuration, syncRecords, alertsFired, webhookEvents} {
			if err := registry.Register(collector); err != nil {
				return nil, err
			}
		}
		provider.httpRequestCounter = httpRequests
		provider.httpRequestLatency = httpLatency
		provider.syncRuns = syncRuns
		provider.syncDuration = syncDuration
		provider.syncRecords = syncRecords
		provider.alertsFired = alertsFired
		provider.webhookEvents = webhookEvents
	}

	return provider, nil
}

func (p *Provider) PrometheusHandler() http.Handler {
	if p == nil || p.promHandler == nil {
		return nil
	}
	return p.promHandler
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) TracerProvider() *sdktrace.TracerProvider {
	if p == nil {
		return nil
	}
	return p.tracerProvider
}

func (p *Provider) RecordHTTPRequest(_ context.Context, method, route string, status int, duration time.Duration) {
	if p == nil {
		return
	}

	statusLabel := strconv.Itoa(status)

	if p.httpRequestCounter != nil {
		p.httpRequestCounter.WithLabelValues(method, route, statusLabel).Inc()
	}

	if p.httpRequestLatency != nil {
		p.httpRequestLatency.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
	}
}

// RecordSync counts one provider sync and the rows it wrote.
func (p *Provider) RecordSync(provider, status string, records int, duration time.Duration) {
	if p == nil || p.syncRuns == nil {
		return
	}
	p.syncRuns.WithLabelValues(provider, status).Inc()
	p.syncDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if records > 0 {
		p.syncRecords.WithLabelValues(provider).Add(float64(records))
	}
}

func (p *Provider) RecordAlert(alertType, severity string) {
	if p == nil || p.alertsFired == nil {
		return
	}
	p.alertsFired.WithLabelValues(alertType, severity).Inc()
}

func (p *Provider) RecordWebhookEvent(eventType, outcome string) {
	if p == nil || p.webhookEvents == nil {
		return
	}
	p.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}
