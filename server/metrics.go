package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names.
const (
	MetricCommandsSubmitted = "print_relay_commands_submitted_total"
	MetricCommandsDelivered = "print_relay_commands_delivered_total"
	MetricCommandsReported  = "print_relay_commands_reported_total"
	MetricPolls             = "print_relay_polls_total"
	MetricDevicesKnown      = "print_relay_devices_known"
	MetricUploadRejections  = "print_relay_upload_rejections_total"
)

// Metrics holds the broker's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	submitted        prometheus.Counter
	delivered        prometheus.Counter
	reported         *prometheus.CounterVec
	polls            prometheus.Counter
	devicesKnown     prometheus.Gauge
	uploadRejections *prometheus.CounterVec
}

// NewMetrics creates and registers the broker collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCommandsSubmitted,
			Help: "Print commands accepted by the broker",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCommandsDelivered,
			Help: "Print commands handed to a polling device",
		}),
		reported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricCommandsReported,
			Help: "Outcome reports received from devices",
		}, []string{"result"}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPolls,
			Help: "Device check-ins",
		}),
		devicesKnown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricDevicesKnown,
			Help: "Devices that have polled at least once",
		}),
		uploadRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricUploadRejections,
			Help: "Uploads rejected by validation",
		}, []string{"reason"}),
	}

	m.registry.MustRegister(
		m.submitted,
		m.delivered,
		m.reported,
		m.polls,
		m.devicesKnown,
		m.uploadRejections,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeReport(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.reported.WithLabelValues(result).Inc()
}
