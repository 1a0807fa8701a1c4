package storage

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kipp7/Landslide-monitor/internal/normalize"
	"github.com/kipp7/Landslide-monitor/internal/risk"
)

// InfluxForwarder mirrors persisted records into InfluxDB for the
// dashboard's time-series charts. Writes here are best effort; the
// Postgres row is the source of truth.
type InfluxForwarder struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
	timeout     time.Duration
}

// NewInfluxForwarder connects a blocking write API for the given bucket.
func NewInfluxForwarder(url, token, org, bucket, measurement string, timeout time.Duration) *InfluxForwarder {
	client := influxdb2.NewClient(url, token)
	return &InfluxForwarder{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(org, bucket),
		measurement: measurement,
		timeout:     timeout,
	}
}

// Close releases the underlying client.
func (f *InfluxForwarder) Close() {
	if f != nil && f.client != nil {
		f.client.Close()
	}
}

// WriteRecord writes one record as a point tagged by device id. Writing
// the same (device, event_time) twice overwrites the identical point, so
// duplicate pushes stay idempotent here too.
func (f *InfluxForwarder) WriteRecord(ctx context.Context, rec *normalize.Record, assessment risk.Assessment) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	point := f.buildPoint(rec, assessment)
	return f.writeAPI.WritePoint(ctx, point)
}

func (f *InfluxForwarder) buildPoint(rec *normalize.Record, assessment risk.Assessment) *write.Point {
	tags := map[string]string{
		"device_id":  rec.DeviceID,
		"risk_label": string(assessment.RiskLabel),
	}

	fields := map[string]any{
		"calculated_risk": assessment.CalculatedRisk,
	}
	addFloat := func(key string, v *float64) {
		if v != nil {
			fields[key] = *v
		}
	}
	addInt := func(key string, v *int64) {
		if v != nil {
			fields[key] = *v
		}
	}

	addFloat("temperature", rec.Temperature)
	addFloat("humidity", rec.Humidity)
	addFloat("illumination", rec.Illumination)
	addFloat("mpu_temperature", rec.MPUTemperature)
	addInt("acceleration_x", rec.AccelerationX)
	addInt("acceleration_y", rec.AccelerationY)
	addInt("acceleration_z", rec.AccelerationZ)
	addInt("gyroscope_x", rec.GyroscopeX)
	addInt("gyroscope_y", rec.GyroscopeY)
	addInt("gyroscope_z", rec.GyroscopeZ)
	addFloat("acceleration_total", rec.AccelerationTotal)
	addFloat("gyroscope_total", rec.GyroscopeTotal)
	addFloat("vibration", rec.Vibration)
	addFloat("angle_x", rec.AngleX)
	addFloat("angle_y", rec.AngleY)
	addFloat("angle_z", rec.AngleZ)
	addFloat("risk_level", rec.RiskLevel)
	addInt("uptime", rec.Uptime)
	addFloat("latitude", rec.Latitude)
	addFloat("longitude", rec.Longitude)
	addFloat("ultrasonic_distance", rec.UltrasonicDistance)
	addFloat("deformation_distance_3d", rec.DeformationDistance3D)
	addFloat("deformation_horizontal", rec.DeformationHorizontal)
	addFloat("deformation_vertical", rec.DeformationVertical)
	addFloat("deformation_velocity", rec.DeformationVelocity)
	addFloat("deformation_risk_level", rec.DeformationRisk)
	addInt("deformation_type", rec.DeformationType)
	addFloat("deformation_confidence", rec.DeformationConfidence)
	if rec.AlarmActive != nil {
		fields["alarm_active"] = *rec.AlarmActive
	}
	if rec.BaselineEstablished != nil {
		fields["baseline_established"] = *rec.BaselineEstablished
	}

	return write.NewPoint(f.measurement, tags, fields, rec.EventTime)
}
