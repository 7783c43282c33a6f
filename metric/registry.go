package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/schoolcache/errors"
)

// MetricsRegistrar is the registration surface components depend on.
type MetricsRegistrar interface {
	RegisterCounter(serviceName, metricName string, counter prometheus.Counter) error
	RegisterGauge(serviceName, metricName string, gauge prometheus.Gauge) error
	RegisterHistogram(serviceName, metricName string, histogram prometheus.Histogram) error
	RegisterCounterVec(serviceName, metricName string, counterVec *prometheus.CounterVec) error
	RegisterGaugeVec(serviceName, metricName string, gaugeVec *prometheus.GaugeVec) error
	RegisterHistogramVec(serviceName, metricName string, histogramVec *prometheus.HistogramVec) error
	Unregister(serviceName, metricName string) bool
}

var _ MetricsRegistrar = (*MetricsRegistry)(nil)

// MetricsRegistry wraps a private prometheus.Registry with per-service
// duplicate detection.
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
	registeredMetrics  map[string]prometheus.Collector
	mu                 sync.RWMutex
}

// NewMetricsRegistry creates a registry with core and Go runtime metrics.
func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		prometheusRegistry: prometheus.NewRegistry(),
		registeredMetrics:  make(map[string]prometheus.Collector),
		Metrics:            NewMetrics(),
	}

	r.prometheusRegistry.MustRegister(r.Metrics.collectors()...)
	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the process-wide metrics
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	return r.Metrics
}

func (r *MetricsRegistry) register(op, serviceName, metricName string, c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := serviceName + "." + metricName
	if _, exists := r.registeredMetrics[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for service %s", metricName, serviceName),
			"MetricsRegistry", op, "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(c); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.WrapInvalid(err, "MetricsRegistry", op,
				fmt.Sprintf("prometheus conflict for metric %s", metricName))
		}
		return errors.WrapFatal(err, "MetricsRegistry", op, "register collector with prometheus")
	}

	r.registeredMetrics[key] = c
	return nil
}

// RegisterCounter registers a counter metric for a service
func (r *MetricsRegistry) RegisterCounter(serviceName, metricName string, counter prometheus.Counter) error {
	return r.register("RegisterCounter", serviceName, metricName, counter)
}

// RegisterGauge registers a gauge metric for a service
func (r *MetricsRegistry) RegisterGauge(serviceName, metricName string, gauge prometheus.Gauge) error {
	return r.register("RegisterGauge", serviceName, metricName, gauge)
}

// RegisterHistogram registers a histogram metric for a service
func (r *MetricsRegistry) RegisterHistogram(serviceName, metricName string, histogram prometheus.Histogram) error {
	return r.register("RegisterHistogram", serviceName, metricName, histogram)
}

// RegisterCounterVec registers a counter vector metric for a service
func (r *MetricsRegistry) RegisterCounterVec(serviceName, metricName string, counterVec *prometheus.CounterVec) error {
	return r.register("RegisterCounterVec", serviceName, metricName, counterVec)
}

// RegisterGaugeVec registers a gauge vector metric for a service
func (r *MetricsRegistry) RegisterGaugeVec(serviceName, metricName string, gaugeVec *prometheus.GaugeVec) error {
	return r.register("RegisterGaugeVec", serviceName, metricName, gaugeVec)
}

// RegisterHistogramVec registers a histogram vector metric for a service
func (r *MetricsRegistry) RegisterHistogramVec(
	serviceName, metricName string, histogramVec *prometheus.HistogramVec) error {
	return r.register("RegisterHistogramVec", serviceName, metricName, histogramVec)
}

// Unregister removes a metric from the registry
func (r *MetricsRegistry) Unregister(serviceName, metricName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := serviceName + "." + metricName
	collector, exists := r.registeredMetrics[key]
	if !exists {
		return false
	}

	if !r.prometheusRegistry.Unregister(collector) {
		return false
	}
	delete(r.registeredMetrics, key)
	return true
}
