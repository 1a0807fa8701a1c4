package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kipp7/Landslide-monitor/internal/anomaly"
	"github.com/kipp7/Landslide-monitor/internal/config"
	"github.com/kipp7/Landslide-monitor/internal/devices"
	"github.com/kipp7/Landslide-monitor/internal/normalize"
	"github.com/kipp7/Landslide-monitor/internal/risk"
)

type fakeResolver struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeResolver) Resolve(ctx context.Context, externalID string, hint devices.Hint) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "device_1", nil
}

type fakeSink struct {
	mu      sync.Mutex
	calls   int
	records []*normalize.Record
	failOn  int // 1-based call index to fail, 0 = never
}

func (f *fakeSink) InsertRecord(ctx context.Context, rec *normalize.Record, assessment risk.Assessment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn != 0 && f.calls == f.failOn {
		return errors.New("connection reset")
	}
	f.records = append(f.records, rec)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []anomaly.Event
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, events []anomaly.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, events...)
	return nil
}

func newTestPipeline(resolver *fakeResolver, sink *fakeSink, opts Options) *Pipeline {
	cfg := config.DefaultConfig()
	return New(resolver, sink, cfg.Thresholds, cfg.Risk, zap.NewNop(), nil, opts)
}

func envelope(services ...ServiceReport) *Envelope {
	return &Envelope{
		Resource:  "device.property",
		Event:     "report",
		EventTime: "20250101T120000Z",
		NotifyData: &NotifyData{
			Header: Header{DeviceID: "6815a14f9314d118511807c6_rk2206", ProductID: "p1"},
			Body:   &Body{Services: services},
		},
	}
}

func TestProcess_AllServicesSucceed(t *testing.T) {
	resolver := &fakeResolver{}
	sink := &fakeSink{}
	p := newTestPipeline(resolver, sink, Options{})

	receipt, verr := p.Process(context.Background(), envelope(
		ServiceReport{ServiceID: "smartHome", Properties: map[string]any{"temperature": 22.5}},
		ServiceReport{ServiceID: "smartHome", Properties: map[string]any{"humidity": 48.0}},
	))
	if verr != nil {
		t.Fatalf("Process rejected: %v", verr)
	}
	if receipt.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", receipt.StatusCode)
	}
	if receipt.ProcessedServices != 2 || receipt.TotalServices != 2 {
		t.Errorf("processed/total = %d/%d, want 2/2", receipt.ProcessedServices, receipt.TotalServices)
	}
	if receipt.DeviceID != "6815a14f9314d118511807c6_rk2206" {
		t.Errorf("DeviceID = %q, want external id echoed back", receipt.DeviceID)
	}
	if sink.calls != 2 {
		t.Errorf("sink calls = %d, want 2", sink.calls)
	}
	for _, rec := range sink.records {
		if rec.DeviceID != "device_1" {
			t.Errorf("persisted DeviceID = %q, want internal id", rec.DeviceID)
		}
	}
}

func TestProcess_OneFailureDoesNotAbortTheRest(t *testing.T) {
	resolver := &fakeResolver{}
	sink := &fakeSink{failOn: 2}
	p := newTestPipeline(resolver, sink, Options{})

	receipt, verr := p.Process(context.Background(), envelope(
		ServiceReport{ServiceID: "a", Properties: map[string]any{"temperature": 20.0}},
		ServiceReport{ServiceID: "b", Properties: map[string]any{"temperature": 21.0}},
		ServiceReport{ServiceID: "c", Properties: map[string]any{"temperature": 22.0}},
	))
	if verr != nil {
		t.Fatalf("Process rejected: %v", verr)
	}
	if receipt.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200 despite partial failure", receipt.StatusCode)
	}
	if receipt.ProcessedServices != 2 {
		t.Errorf("ProcessedServices = %d, want 2", receipt.ProcessedServices)
	}
	if receipt.TotalServices != 3 {
		t.Errorf("TotalServices = %d, want 3", receipt.TotalServices)
	}
	if sink.calls != 3 {
		t.Errorf("sink calls = %d, want 3 (every service attempted)", sink.calls)
	}
}

func TestProcess_MissingNotifyDataRejected(t *testing.T) {
	resolver := &fakeResolver{}
	sink := &fakeSink{}
	p := newTestPipeline(resolver, sink, Options{})

	receipt, verr := p.Process(context.Background(), &Envelope{Resource: "device.property"})
	if verr == nil {
		t.Fatal("want rejection for missing notify_data")
	}
	if verr.Code != "missing_notify_data" {
		t.Errorf("Code = %q, want missing_notify_data", verr.Code)
	}
	if receipt != nil {
		t.Errorf("receipt = %+v, want nil on rejection", receipt)
	}
	if resolver.calls != 0 || sink.calls != 0 {
		t.Errorf("collaborators touched on rejection: resolver=%d sink=%d", resolver.calls, sink.calls)
	}
}

func TestProcess_MissingServicesRejected(t *testing.T) {
	resolver := &fakeResolver{}
	sink := &fakeSink{}
	p := newTestPipeline(resolver, sink, Options{})

	env := &Envelope{
		NotifyData: &NotifyData{
			Header: Header{DeviceID: "d"},
			Body:   &Body{},
		},
	}
	_, verr := p.Process(context.Background(), env)
	if verr == nil {
		t.Fatal("want rejection for empty services")
	}
	if verr.Code != "missing_services" {
		t.Errorf("Code = %q, want missing_services", verr.Code)
	}
	if resolver.calls != 0 || sink.calls != 0 {
		t.Errorf("collaborators touched on rejection: resolver=%d sink=%d", resolver.calls, sink.calls)
	}
}

func TestProcess_ResolverFailureCountsAsServiceFailure(t *testing.T) {
	resolver := &fakeResolver{err: devices.ErrMappingUnavailable}
	sink := &fakeSink{}
	p := newTestPipeline(resolver, sink, Options{})

	receipt, verr := p.Process(context.Background(), envelope(
		ServiceReport{ServiceID: "a", Properties: map[string]any{"temperature": 20.0}},
	))
	if verr != nil {
		t.Fatalf("Process rejected: %v", verr)
	}
	if receipt.ProcessedServices != 0 || receipt.TotalServices != 1 {
		t.Errorf("processed/total = %d/%d, want 0/1", receipt.ProcessedServices, receipt.TotalServices)
	}
	if sink.calls != 0 {
		t.Errorf("sink calls = %d, want 0 when resolution fails", sink.calls)
	}
}

func TestProcess_AnomaliesReportedAndPublished(t *testing.T) {
	resolver := &fakeResolver{}
	sink := &fakeSink{}
	publisher := &fakePublisher{}
	p := newTestPipeline(resolver, sink, Options{Publisher: publisher})

	receipt, verr := p.Process(context.Background(), envelope(
		ServiceReport{ServiceID: "smartHome", Properties: map[string]any{
			"temperature": 55.0,
			"vibration":   6.5,
		}},
	))
	if verr != nil {
		t.Fatalf("Process rejected: %v", verr)
	}
	if len(receipt.Anomalies) != 2 {
		t.Fatalf("got %d anomalies, want 2: %+v", len(receipt.Anomalies), receipt.Anomalies)
	}
	if receipt.Anomalies[0].Type != anomaly.TypeTemperatureExtreme {
		t.Errorf("first anomaly = %s, want %s", receipt.Anomalies[0].Type, anomaly.TypeTemperatureExtreme)
	}
	if receipt.Anomalies[1].Type != anomaly.TypeVibrationHigh {
		t.Errorf("second anomaly = %s, want %s", receipt.Anomalies[1].Type, anomaly.TypeVibrationHigh)
	}
	if len(publisher.events) != 2 {
		t.Errorf("published %d events, want 2", len(publisher.events))
	}
}

func TestProcess_PublisherFailureDoesNotFailService(t *testing.T) {
	resolver := &fakeResolver{}
	sink := &fakeSink{}
	publisher := &fakePublisher{err: errors.New("broker down")}
	p := newTestPipeline(resolver, sink, Options{Publisher: publisher})

	receipt, verr := p.Process(context.Background(), envelope(
		ServiceReport{ServiceID: "smartHome", Properties: map[string]any{"temperature": 55.0}},
	))
	if verr != nil {
		t.Fatalf("Process rejected: %v", verr)
	}
	if receipt.ProcessedServices != 1 {
		t.Errorf("ProcessedServices = %d, want 1 despite publish failure", receipt.ProcessedServices)
	}
}

func TestProcess_ServiceEventTimeOverridesEnvelope(t *testing.T) {
	resolver := &fakeResolver{}
	sink := &fakeSink{}
	p := newTestPipeline(resolver, sink, Options{})

	_, verr := p.Process(context.Background(), envelope(
		ServiceReport{ServiceID: "a", Properties: map[string]any{"temperature": 20.0}, EventTime: "20250630T081530Z"},
		ServiceReport{ServiceID: "b", Properties: map[string]any{"temperature": 21.0}},
	))
	if verr != nil {
		t.Fatalf("Process rejected: %v", verr)
	}
	if len(sink.records) != 2 {
		t.Fatalf("persisted %d records, want 2", len(sink.records))
	}
	first := sink.records[0].EventTime.UTC()
	if first.Year() != 2025 || first.Month() != 6 || first.Day() != 30 || first.Hour() != 8 {
		t.Errorf("first record EventTime = %v, want the service-level timestamp", first)
	}
	second := sink.records[1].EventTime.UTC()
	if second.Year() != 2025 || second.Month() != 1 || second.Day() != 1 || second.Hour() != 12 {
		t.Errorf("second record EventTime = %v, want envelope fallback", second)
	}
}

func TestParseEnvelope_WireNames(t *testing.T) {
	body := []byte(`{
		"resource": "device.property",
		"event": "report",
		"event_time": "20250101T120000Z",
		"notify_data": {
			"header": {"device_id": "ext-1", "product_id": "p1"},
			"body": {"services": [
				{"service_id": "smartHome", "properties": {"temperature": 22.5}}
			]}
		}
	}`)

	env, err := ParseEnvelope(body)
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if verr := env.Validate(); verr != nil {
		t.Fatalf("Validate: %v", verr)
	}
	if env.NotifyData.Header.DeviceID != "ext-1" {
		t.Errorf("DeviceID = %q", env.NotifyData.Header.DeviceID)
	}
	if got := env.NotifyData.Body.Services[0].Properties["temperature"]; got != 22.5 {
		t.Errorf("temperature = %v", got)
	}
}
