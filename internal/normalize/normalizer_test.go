package normalize

import (
	"math"
	"testing"
	"time"

	"go.uber.org/zap"
)

var testTime = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(zap.NewNop())
}

func TestNormalize_ScalarFieldsCopiedByExactKey(t *testing.T) {
	props := map[string]any{
		"temperature":  32.5,
		"humidity":     "42.9",
		"illumination": 512.0,
		"risk_level":   0.2,
		"uptime":       3600.0,
		"vibration":    0.87,
	}

	rec := newTestNormalizer().Normalize(props, "device_1", testTime)

	if rec.DeviceID != "device_1" {
		t.Errorf("DeviceID = %q, want device_1", rec.DeviceID)
	}
	if !rec.EventTime.Equal(testTime) {
		t.Errorf("EventTime = %v, want %v", rec.EventTime, testTime)
	}
	if rec.Temperature == nil || *rec.Temperature != 32.5 {
		t.Errorf("Temperature = %v, want 32.5", rec.Temperature)
	}
	if rec.Humidity == nil || *rec.Humidity != 42.9 {
		t.Errorf("Humidity = %v, want 42.9 (coerced from string)", rec.Humidity)
	}
	if rec.Uptime == nil || *rec.Uptime != 3600 {
		t.Errorf("Uptime = %v, want 3600", rec.Uptime)
	}
	if rec.Vibration == nil || *rec.Vibration != 0.87 {
		t.Errorf("Vibration = %v, want 0.87", rec.Vibration)
	}
	if rec.AngleX != nil {
		t.Errorf("AngleX = %v, want absent", rec.AngleX)
	}
}

func TestNormalize_VectorMagnitude(t *testing.T) {
	props := map[string]any{
		"acceleration_x": 100.0,
		"acceleration_y": 200.0,
		"acceleration_z": 800.0,
	}

	rec := newTestNormalizer().Normalize(props, "device_1", testTime)

	if rec.AccelerationTotal == nil {
		t.Fatal("AccelerationTotal absent, want derived magnitude")
	}
	want := math.Sqrt(100*100 + 200*200 + 800*800)
	if math.Abs(*rec.AccelerationTotal-want) > 1e-9 {
		t.Errorf("AccelerationTotal = %v, want %v", *rec.AccelerationTotal, want)
	}
}

func TestNormalize_PartialTripleYieldsNoMagnitude(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]any
	}{
		{"missing z", map[string]any{"gyroscope_x": 10.0, "gyroscope_y": 20.0}},
		{"missing x and y", map[string]any{"gyroscope_z": 30.0}},
		{"non-numeric axis", map[string]any{"gyroscope_x": 10.0, "gyroscope_y": "garbage", "gyroscope_z": 30.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newTestNormalizer().Normalize(tt.props, "device_1", testTime)
			if rec.GyroscopeTotal != nil {
				t.Errorf("GyroscopeTotal = %v, want absent for partial triple", *rec.GyroscopeTotal)
			}
		})
	}
}

func TestNormalize_AxisComponentsCoercedToInt(t *testing.T) {
	props := map[string]any{
		"acceleration_x": "120",
		"acceleration_y": 45.7,
		"acceleration_z": 0.0,
	}

	rec := newTestNormalizer().Normalize(props, "device_1", testTime)

	if rec.AccelerationX == nil || *rec.AccelerationX != 120 {
		t.Errorf("AccelerationX = %v, want 120", rec.AccelerationX)
	}
	if rec.AccelerationY == nil || *rec.AccelerationY != 45 {
		t.Errorf("AccelerationY = %v, want 45 (truncated)", rec.AccelerationY)
	}
	if rec.AccelerationZ == nil || *rec.AccelerationZ != 0 {
		t.Errorf("AccelerationZ = %v, want 0", rec.AccelerationZ)
	}
}

func TestNormalize_NonNumericAndNonFiniteOmitted(t *testing.T) {
	props := map[string]any{
		"temperature": "not a number",
		"humidity":    math.NaN(),
		"vibration":   math.Inf(1),
		"uptime":      nil,
	}

	rec := newTestNormalizer().Normalize(props, "device_1", testTime)

	if rec.Temperature != nil {
		t.Errorf("Temperature = %v, want omitted for non-numeric input", *rec.Temperature)
	}
	if rec.Humidity != nil {
		t.Errorf("Humidity = %v, want omitted for NaN", *rec.Humidity)
	}
	if rec.Vibration != nil {
		t.Errorf("Vibration = %v, want omitted for Inf", *rec.Vibration)
	}
	if rec.Uptime != nil {
		t.Errorf("Uptime = %v, want omitted for null", *rec.Uptime)
	}
}

func TestNormalize_UnknownKeysIgnored(t *testing.T) {
	props := map[string]any{
		"temperature":      20.0,
		"firmware_debug":   "0xFF",
		"some_future_prop": 42.0,
	}

	rec := newTestNormalizer().Normalize(props, "device_1", testTime)

	if rec.Temperature == nil || *rec.Temperature != 20.0 {
		t.Errorf("Temperature = %v, want 20.0", rec.Temperature)
	}
	// Nothing to assert for the unknown keys beyond the record staying
	// well-formed: the canonical struct simply has no place for them.
}

func TestNormalize_DeformationAliasPriority(t *testing.T) {
	// Both the primary key and an older alias populated: the first alias
	// in priority order must win.
	props := map[string]any{
		"deformation_distance_3d": 1.5,
		"distance_3d":             99.0,
		"horizontal_displacement": 0.8,
		"displacement_v":          0.3,
		"deform_velocity":         0.05,
		"deformation_risk_level":  0.4,
		"deform_type":             2.0,
		"analysis_confidence":     0.9,
		"baseline_ok":             1.0,
	}

	rec := newTestNormalizer().Normalize(props, "device_1", testTime)

	if rec.DeformationDistance3D == nil || *rec.DeformationDistance3D != 1.5 {
		t.Errorf("DeformationDistance3D = %v, want 1.5 (primary alias wins)", rec.DeformationDistance3D)
	}
	if rec.DeformationHorizontal == nil || *rec.DeformationHorizontal != 0.8 {
		t.Errorf("DeformationHorizontal = %v, want 0.8", rec.DeformationHorizontal)
	}
	if rec.DeformationVertical == nil || *rec.DeformationVertical != 0.3 {
		t.Errorf("DeformationVertical = %v, want 0.3", rec.DeformationVertical)
	}
	if rec.DeformationVelocity == nil || *rec.DeformationVelocity != 0.05 {
		t.Errorf("DeformationVelocity = %v, want 0.05", rec.DeformationVelocity)
	}
	if rec.DeformationRisk == nil || *rec.DeformationRisk != 0.4 {
		t.Errorf("DeformationRisk = %v, want 0.4", rec.DeformationRisk)
	}
	if rec.DeformationType == nil || *rec.DeformationType != 2 {
		t.Errorf("DeformationType = %v, want 2", rec.DeformationType)
	}
	if rec.DeformationConfidence == nil || *rec.DeformationConfidence != 0.9 {
		t.Errorf("DeformationConfidence = %v, want 0.9", rec.DeformationConfidence)
	}
	if rec.BaselineEstablished == nil || !*rec.BaselineEstablished {
		t.Errorf("BaselineEstablished = %v, want true", rec.BaselineEstablished)
	}
}

func TestNormalize_BooleanCoercion(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"numeric one", 1.0, true},
		{"numeric zero", 0.0, false},
		{"bool true", true, true},
		{"string true", "true", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newTestNormalizer().Normalize(map[string]any{"alarm_active": tt.value}, "device_1", testTime)
			if rec.AlarmActive == nil || *rec.AlarmActive != tt.want {
				t.Errorf("AlarmActive = %v, want %v", rec.AlarmActive, tt.want)
			}
		})
	}
}
