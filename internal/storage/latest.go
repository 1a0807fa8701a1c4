package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kipp7/Landslide-monitor/internal/normalize"
	"github.com/kipp7/Landslide-monitor/internal/risk"
)

// ErrNoLatest is returned when no cached reading exists for a device.
var ErrNoLatest = errors.New("no cached reading for device")

// LatestReading is the dashboard's real-time view of one station.
type LatestReading struct {
	Record         *normalize.Record `json:"record"`
	CalculatedRisk float64           `json:"calculated_risk"`
	RiskLabel      string            `json:"risk_label"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// LatestCache keeps the most recent reading per device in Redis with a
// TTL, so the dashboard can poll without hitting Postgres.
type LatestCache struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
}

// NewLatestCache wraps a Redis client.
func NewLatestCache(client *redis.Client, ttl, timeout time.Duration) *LatestCache {
	return &LatestCache{client: client, ttl: ttl, timeout: timeout}
}

func latestKey(deviceID string) string {
	return "iot:latest:" + deviceID
}

// SetLatest overwrites the cached reading for a device and refreshes the
// service-wide last-ingest marker.
func (c *LatestCache) SetLatest(ctx context.Context, rec *normalize.Record, assessment risk.Assessment) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reading := LatestReading{
		Record:         rec,
		CalculatedRisk: assessment.CalculatedRisk,
		RiskLabel:      string(assessment.RiskLabel),
		UpdatedAt:      time.Now().UTC(),
	}
	data, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal latest reading: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, latestKey(rec.DeviceID), data, c.ttl)
	pipe.Set(ctx, "iot:last_ingest_time", reading.UpdatedAt.Format(time.RFC3339Nano), c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache latest reading: %w", err)
	}
	return nil
}

// GetLatest returns the cached reading for a device, or ErrNoLatest.
func (c *LatestCache) GetLatest(ctx context.Context, deviceID string) (*LatestReading, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.client.Get(ctx, latestKey(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoLatest
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest reading: %w", err)
	}

	var reading LatestReading
	if err := json.Unmarshal(data, &reading); err != nil {
		return nil, fmt.Errorf("failed to decode latest reading: %w", err)
	}
	return &reading, nil
}
