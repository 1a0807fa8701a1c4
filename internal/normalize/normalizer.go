package normalize

import (
	"math"
	"time"

	"go.uber.org/zap"
)

// Normalizer maps raw service-report property bags onto canonical records.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a new normalizer.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize builds a canonical record from a raw property bag. Canonical
// scalar fields are copied by exact key name; fields absent or non-numeric
// in props are omitted from the result, never nulled or zeroed. Properties
// outside the canonical set are ignored so the storage schema stays closed
// against upstream field churn.
func (n *Normalizer) Normalize(props map[string]any, deviceID string, eventTime time.Time) *Record {
	rec := &Record{
		DeviceID:  deviceID,
		EventTime: eventTime,
	}

	rec.Temperature = floatField(props, "temperature")
	rec.Humidity = floatField(props, "humidity")
	rec.Illumination = floatField(props, "illumination")
	rec.MPUTemperature = floatField(props, "mpu_temperature")

	rec.AccelerationX = intField(props, "acceleration_x")
	rec.AccelerationY = intField(props, "acceleration_y")
	rec.AccelerationZ = intField(props, "acceleration_z")
	rec.GyroscopeX = intField(props, "gyroscope_x")
	rec.GyroscopeY = intField(props, "gyroscope_y")
	rec.GyroscopeZ = intField(props, "gyroscope_z")
	rec.Vibration = floatField(props, "vibration")

	rec.AccelerationTotal = magnitude(rec.AccelerationX, rec.AccelerationY, rec.AccelerationZ)
	rec.GyroscopeTotal = magnitude(rec.GyroscopeX, rec.GyroscopeY, rec.GyroscopeZ)

	rec.AngleX = floatField(props, "angle_x")
	rec.AngleY = floatField(props, "angle_y")
	rec.AngleZ = floatField(props, "angle_z")

	rec.RiskLevel = floatField(props, "risk_level")
	rec.AlarmActive = boolField(props, "alarm_active")
	rec.Uptime = intField(props, "uptime")

	rec.Latitude = floatField(props, "latitude")
	rec.Longitude = floatField(props, "longitude")
	rec.UltrasonicDistance = floatField(props, "ultrasonic_distance")

	rec.DeformationDistance3D = floatAlias(props, distance3DAliases)
	rec.DeformationHorizontal = floatAlias(props, horizontalAliases)
	rec.DeformationVertical = floatAlias(props, verticalAliases)
	rec.DeformationVelocity = floatAlias(props, velocityAliases)
	rec.DeformationRisk = floatAlias(props, deformRiskAliases)
	rec.DeformationType = intAlias(props, deformTypeAliases)
	rec.DeformationConfidence = floatAlias(props, confidenceAliases)
	rec.BaselineEstablished = boolAlias(props, baselineAliases)

	return rec
}

// magnitude derives the Euclidean norm of a 3-axis vector. A partial
// triple yields no magnitude at all; zero-padding a missing axis would
// corrupt the anomaly thresholds downstream.
func magnitude(x, y, z *int64) *float64 {
	if x == nil || y == nil || z == nil {
		return nil
	}
	fx, fy, fz := float64(*x), float64(*y), float64(*z)
	total := math.Sqrt(fx*fx + fy*fy + fz*fz)
	return &total
}

func floatField(props map[string]any, key string) *float64 {
	v, ok := props[key]
	if !ok || v == nil {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func intField(props map[string]any, key string) *int64 {
	v, ok := props[key]
	if !ok || v == nil {
		return nil
	}
	i, ok := toInt(v)
	if !ok {
		return nil
	}
	return &i
}

func boolField(props map[string]any, key string) *bool {
	v, ok := props[key]
	if !ok || v == nil {
		return nil
	}
	b, ok := toBool(v)
	if !ok {
		return nil
	}
	return &b
}

func floatAlias(props map[string]any, aliases []string) *float64 {
	v, ok := firstPresent(props, aliases)
	if !ok {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func intAlias(props map[string]any, aliases []string) *int64 {
	v, ok := firstPresent(props, aliases)
	if !ok {
		return nil
	}
	i, ok := toInt(v)
	if !ok {
		return nil
	}
	return &i
}

func boolAlias(props map[string]any, aliases []string) *bool {
	v, ok := firstPresent(props, aliases)
	if !ok {
		return nil
	}
	b, ok := toBool(v)
	if !ok {
		return nil
	}
	return &b
}
