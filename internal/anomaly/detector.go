// Package anomaly evaluates normalized sensor records against configured
// thresholds and emits typed anomaly events.
package anomaly

import (
	"github.com/kipp7/Landslide-monitor/internal/config"
	"github.com/kipp7/Landslide-monitor/internal/normalize"
)

// Type identifies the rule that fired.
type Type string

const (
	TypeTemperatureExtreme  Type = "TEMPERATURE_EXTREME"
	TypeHumiditySensorError Type = "HUMIDITY_SENSOR_ERROR"
	TypeAccelerationHigh    Type = "ACCELERATION_HIGH"
	TypeGyroscopeHigh       Type = "GYROSCOPE_HIGH"
	TypeRiskCritical        Type = "RISK_CRITICAL"
	TypeVibrationHigh       Type = "VIBRATION_HIGH"
)

// Event is one detected anomaly. Events are returned to the caller in the
// same request cycle they were produced; nothing here persists them.
type Event struct {
	DeviceID string  `json:"device_id"`
	Type     Type    `json:"anomaly_type"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit,omitempty"`
}

// Detect evaluates each rule independently against the record. Rules whose
// metric is absent never fire. Multiple rules may fire for one record; the
// fixed evaluation order below determines only the event ordering in the
// result. Pure function of (record, thresholds).
func Detect(rec *normalize.Record, t config.ThresholdConfig) []Event {
	var events []Event

	if rec.Temperature != nil &&
		(*rec.Temperature > t.Temperature.Max || *rec.Temperature < t.Temperature.Min) {
		events = append(events, Event{
			DeviceID: rec.DeviceID,
			Type:     TypeTemperatureExtreme,
			Value:    *rec.Temperature,
			Unit:     "°C",
		})
	}

	if rec.Humidity != nil &&
		(*rec.Humidity > t.Humidity.Max || *rec.Humidity < t.Humidity.Min) {
		events = append(events, Event{
			DeviceID: rec.DeviceID,
			Type:     TypeHumiditySensorError,
			Value:    *rec.Humidity,
			Unit:     "%",
		})
	}

	if rec.AccelerationTotal != nil && *rec.AccelerationTotal > t.Acceleration.TotalMax {
		events = append(events, Event{
			DeviceID: rec.DeviceID,
			Type:     TypeAccelerationHigh,
			Value:    *rec.AccelerationTotal,
			Unit:     "mg",
		})
	}

	if rec.GyroscopeTotal != nil && *rec.GyroscopeTotal > t.Gyroscope.TotalMax {
		events = append(events, Event{
			DeviceID: rec.DeviceID,
			Type:     TypeGyroscopeHigh,
			Value:    *rec.GyroscopeTotal,
			Unit:     "°/s",
		})
	}

	if rec.RiskLevel != nil && *rec.RiskLevel > t.RiskLevel.Critical {
		events = append(events, Event{
			DeviceID: rec.DeviceID,
			Type:     TypeRiskCritical,
			Value:    *rec.RiskLevel,
		})
	}

	if rec.Vibration != nil && *rec.Vibration > t.Vibration.Max {
		events = append(events, Event{
			DeviceID: rec.DeviceID,
			Type:     TypeVibrationHigh,
			Value:    *rec.Vibration,
		})
	}

	return events
}
