package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics exposed on /metrics.
type Metrics struct {
	EnvelopesReceived   prometheus.Counter
	EnvelopesRejected   *prometheus.CounterVec
	ServicesProcessed   *prometheus.CounterVec
	AnomaliesDetected   *prometheus.CounterVec
	PersistenceFailures prometheus.Counter
	MappingFailures     prometheus.Counter
	ProcessingDuration  prometheus.Histogram
	RiskScore           prometheus.Histogram
}

// NewMetrics registers the service metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EnvelopesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "iot_envelopes_received_total",
			Help: "Total telemetry envelopes received from the cloud platform",
		}),
		EnvelopesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "iot_envelopes_rejected_total",
			Help: "Malformed envelopes rejected before processing",
		}, []string{"reason"}),
		ServicesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "iot_services_processed_total",
			Help: "Service reports processed, by result",
		}, []string{"result"}),
		AnomaliesDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "iot_anomalies_detected_total",
			Help: "Anomaly events detected, by type",
		}, []string{"type"}),
		PersistenceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "iot_persistence_failures_total",
			Help: "Sensor record writes that failed",
		}),
		MappingFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "iot_mapping_failures_total",
			Help: "Device identity resolutions that failed",
		}),
		ProcessingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "iot_envelope_processing_seconds",
			Help:    "Wall time spent processing one envelope",
			Buckets: prometheus.DefBuckets,
		}),
		RiskScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "iot_calculated_risk",
			Help:    "Distribution of calculated risk scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
	}
}
