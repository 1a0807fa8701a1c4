// Package risk derives a composite landslide risk score for a normalized
// sensor record. The scorer is independent of anomaly detection: it uses
// its own secondary bounds, and a record can score high risk with zero
// anomalies or the reverse.
package risk

import (
	"github.com/kipp7/Landslide-monitor/internal/config"
	"github.com/kipp7/Landslide-monitor/internal/normalize"
)

// Label is the discrete risk bucket shown on the dashboard.
type Label string

const (
	LabelLow      Label = "low"
	LabelMedium   Label = "medium"
	LabelHigh     Label = "high"
	LabelCritical Label = "critical"
)

// Assessment annotates a record with the server-side risk estimate.
type Assessment struct {
	CalculatedRisk float64 `json:"calculated_risk"`
	RiskLabel      Label   `json:"risk_label"`
}

// Score accumulates fixed weight contributions for each metric beyond its
// configured bound, floors the result at the device-reported risk_level
// (the station's own assessment is never overridden downward) and caps it
// at 1.0. Absent metrics contribute nothing.
func Score(rec *normalize.Record, cfg config.RiskConfig) Assessment {
	calculated := 0.0

	if rec.AccelerationTotal != nil && *rec.AccelerationTotal > cfg.AccelerationBound {
		calculated += cfg.AccelerationWeight
	}
	if rec.GyroscopeTotal != nil && *rec.GyroscopeTotal > cfg.GyroscopeBound {
		calculated += cfg.GyroscopeWeight
	}
	if rec.Vibration != nil && *rec.Vibration > cfg.VibrationBound {
		calculated += cfg.VibrationWeight
	}
	if rec.Humidity != nil && *rec.Humidity > cfg.HumidityBound {
		calculated += cfg.HumidityWeight
	}

	if rec.RiskLevel != nil && *rec.RiskLevel > calculated {
		calculated = *rec.RiskLevel
	}
	if calculated > 1.0 {
		calculated = 1.0
	}

	return Assessment{
		CalculatedRisk: calculated,
		RiskLabel:      labelFor(calculated),
	}
}

// labelFor maps a score to its bucket. Cut points are strict: exactly 0.8
// is high, not critical.
func labelFor(score float64) Label {
	switch {
	case score > 0.8:
		return LabelCritical
	case score > 0.6:
		return LabelHigh
	case score > 0.3:
		return LabelMedium
	default:
		return LabelLow
	}
}
