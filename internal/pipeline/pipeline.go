package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kipp7/Landslide-monitor/internal/anomaly"
	"github.com/kipp7/Landslide-monitor/internal/config"
	"github.com/kipp7/Landslide-monitor/internal/devices"
	"github.com/kipp7/Landslide-monitor/internal/normalize"
	"github.com/kipp7/Landslide-monitor/internal/observability"
	"github.com/kipp7/Landslide-monitor/internal/risk"
)

// DeviceResolver resolves external device ids to internal ones.
type DeviceResolver interface {
	Resolve(ctx context.Context, externalID string, hint devices.Hint) (string, error)
}

// RecordSink persists one annotated record. Inserts must be idempotent on
// (device id, event time).
type RecordSink interface {
	InsertRecord(ctx context.Context, rec *normalize.Record, assessment risk.Assessment) error
}

// LatestWriter caches the most recent reading per device. Best effort.
type LatestWriter interface {
	SetLatest(ctx context.Context, rec *normalize.Record, assessment risk.Assessment) error
}

// TimeSeriesWriter mirrors records into the time-series store. Best effort.
type TimeSeriesWriter interface {
	WriteRecord(ctx context.Context, rec *normalize.Record, assessment risk.Assessment) error
}

// AnomalyPublisher forwards anomaly events for downstream alerting. Best
// effort.
type AnomalyPublisher interface {
	Publish(ctx context.Context, events []anomaly.Event) error
}

// Receipt acknowledges a well-formed envelope. JSON keys mirror what the
// cloud platform has always been answered with, including the spaced
// "Status Code" key.
type Receipt struct {
	StatusCode        int    `json:"Status Code"`
	Message           string `json:"message"`
	Timestamp         string `json:"timestamp"`
	DeviceID          string `json:"device_id"`
	ProcessedServices int    `json:"processed_services"`
	TotalServices     int    `json:"total_services"`
	ProcessingTimeMS  int64  `json:"processing_time_ms"`

	// Anomalies detected during this request cycle, exposed to the caller
	// and observability layer; they are not persisted here.
	Anomalies []anomaly.Event `json:"anomalies,omitempty"`
}

// Pipeline drives one envelope through resolution, normalization,
// detection, scoring and persistence.
type Pipeline struct {
	resolver   DeviceResolver
	sink       RecordSink
	latest     LatestWriter     // optional
	timeseries TimeSeriesWriter // optional
	publisher  AnomalyPublisher // optional
	normalizer *normalize.Normalizer
	thresholds config.ThresholdConfig
	riskCfg    config.RiskConfig
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// Options carries the optional collaborators.
type Options struct {
	Latest     LatestWriter
	TimeSeries TimeSeriesWriter
	Publisher  AnomalyPublisher
}

// New assembles a pipeline. Thresholds and risk bounds are explicit values
// captured here, not ambient state, so tests and tenants can override them.
func New(resolver DeviceResolver, sink RecordSink, thresholds config.ThresholdConfig, riskCfg config.RiskConfig,
	logger *zap.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	return &Pipeline{
		resolver:   resolver,
		sink:       sink,
		latest:     opts.Latest,
		timeseries: opts.TimeSeries,
		publisher:  opts.Publisher,
		normalizer: normalize.NewNormalizer(logger),
		thresholds: thresholds,
		riskCfg:    riskCfg,
		logger:     logger,
		metrics:    metrics,
	}
}

// Process validates the envelope and drives each service report through
// the pipeline sequentially, in listed order. A failure in one service is
// logged and counted, never aborts the remaining services, and the
// platform always gets an acknowledgement for a well-formed envelope.
func (p *Pipeline) Process(ctx context.Context, env *Envelope) (*Receipt, *ValidationError) {
	start := time.Now()

	if verr := env.Validate(); verr != nil {
		if p.metrics != nil {
			p.metrics.EnvelopesRejected.WithLabelValues(verr.Code).Inc()
		}
		return nil, verr
	}

	if p.metrics != nil {
		p.metrics.EnvelopesReceived.Inc()
	}

	header := env.NotifyData.Header
	services := env.NotifyData.Body.Services

	processed := 0
	var allAnomalies []anomaly.Event
	for _, svc := range services {
		events, err := p.processService(ctx, header, env.EventTime, svc)
		if err != nil {
			p.logger.Error("service report failed",
				zap.String("device_id", header.DeviceID),
				zap.String("service_id", svc.ServiceID),
				zap.Error(err))
			if p.metrics != nil {
				p.metrics.ServicesProcessed.WithLabelValues("failed").Inc()
			}
			continue
		}
		processed++
		allAnomalies = append(allAnomalies, events...)
		if p.metrics != nil {
			p.metrics.ServicesProcessed.WithLabelValues("ok").Inc()
		}
	}

	elapsed := time.Since(start)
	if p.metrics != nil {
		p.metrics.ProcessingDuration.Observe(elapsed.Seconds())
	}

	p.logger.Info("envelope processed",
		zap.String("device_id", header.DeviceID),
		zap.Int("processed", processed),
		zap.Int("total", len(services)),
		zap.Int("anomalies", len(allAnomalies)),
		zap.Duration("elapsed", elapsed))

	return &Receipt{
		StatusCode:        200,
		Message:           "data received",
		Timestamp:         time.Now().UTC().Format(time.RFC3339Nano),
		DeviceID:          header.DeviceID,
		ProcessedServices: processed,
		TotalServices:     len(services),
		ProcessingTimeMS:  elapsed.Milliseconds(),
		Anomalies:         allAnomalies,
	}, nil
}

// processService handles one service report inside its own isolation
// boundary: any error, including a panic from unexpectedly shaped
// properties, is captured and reported as this service's failure only.
func (p *Pipeline) processService(ctx context.Context, header Header, envelopeTime string, svc ServiceReport) (events []anomaly.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			events = nil
			err = fmt.Errorf("panic while processing service %s: %v", svc.ServiceID, r)
		}
	}()

	internalID, err := p.resolver.Resolve(ctx, header.DeviceID, hintFrom(svc.Properties))
	if err != nil {
		if p.metrics != nil {
			p.metrics.MappingFailures.Inc()
		}
		return nil, fmt.Errorf("resolve device %s: %w", header.DeviceID, err)
	}

	rawTime := svc.EventTime
	if rawTime == "" {
		rawTime = envelopeTime
	}
	eventTime := normalize.ParseEventTime(rawTime, p.logger)

	rec := p.normalizer.Normalize(svc.Properties, internalID, eventTime)

	events = anomaly.Detect(rec, p.thresholds)
	assessment := risk.Score(rec, p.riskCfg)

	for _, ev := range events {
		p.logger.Warn("anomaly detected",
			zap.String("device_id", ev.DeviceID),
			zap.String("type", string(ev.Type)),
			zap.Float64("value", ev.Value))
		if p.metrics != nil {
			p.metrics.AnomaliesDetected.WithLabelValues(string(ev.Type)).Inc()
		}
	}
	if p.metrics != nil {
		p.metrics.RiskScore.Observe(assessment.CalculatedRisk)
	}

	if err := p.sink.InsertRecord(ctx, rec, assessment); err != nil {
		if p.metrics != nil {
			p.metrics.PersistenceFailures.Inc()
		}
		return nil, fmt.Errorf("persist record for %s at %s: %w",
			rec.DeviceID, rec.EventTime.Format(time.RFC3339), err)
	}

	// Dashboard and alerting fan-out. None of these may fail the request.
	if p.latest != nil {
		if err := p.latest.SetLatest(ctx, rec, assessment); err != nil {
			p.logger.Warn("latest-reading cache update failed", zap.Error(err))
		}
	}
	if p.timeseries != nil {
		if err := p.timeseries.WriteRecord(ctx, rec, assessment); err != nil {
			p.logger.Warn("time-series forward failed", zap.Error(err))
		}
	}
	if p.publisher != nil && len(events) > 0 {
		if err := p.publisher.Publish(ctx, events); err != nil {
			p.logger.Warn("anomaly publish failed", zap.Error(err))
		}
	}

	return events, nil
}

// hintFrom extracts optional device metadata some firmware revisions
// include in their property bag, used only to seed a first-sighting
// mapping.
func hintFrom(props map[string]any) devices.Hint {
	hint := devices.Hint{}
	if v, ok := props["device_name"].(string); ok {
		hint.DeviceName = v
	}
	if v, ok := props["location_name"].(string); ok {
		hint.Location = v
	}
	return hint
}
