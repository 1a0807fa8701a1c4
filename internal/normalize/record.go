// Package normalize converts raw per-service property bags pushed by the
// cloud IoT platform into canonical sensor records ready for storage.
package normalize

import "time"

// Record is the canonical, storage-ready representation of one service
// report. Optional metrics are pointers so that fields the device did not
// report are omitted from JSON and skipped by the storage layer instead of
// being written as zero.
type Record struct {
	DeviceID  string    `json:"device_id"`
	EventTime time.Time `json:"event_time"`

	// Environment sensors.
	Temperature    *float64 `json:"temperature,omitempty"`
	Humidity       *float64 `json:"humidity,omitempty"`
	Illumination   *float64 `json:"illumination,omitempty"`
	MPUTemperature *float64 `json:"mpu_temperature,omitempty"`

	// Motion sensors. Axis components arrive as string or number and are
	// coerced to integers; vibration is fractional.
	AccelerationX *int64   `json:"acceleration_x,omitempty"`
	AccelerationY *int64   `json:"acceleration_y,omitempty"`
	AccelerationZ *int64   `json:"acceleration_z,omitempty"`
	GyroscopeX    *int64   `json:"gyroscope_x,omitempty"`
	GyroscopeY    *int64   `json:"gyroscope_y,omitempty"`
	GyroscopeZ    *int64   `json:"gyroscope_z,omitempty"`
	Vibration     *float64 `json:"vibration,omitempty"`

	// Derived vector magnitudes. Present only when all three axes are.
	AccelerationTotal *float64 `json:"acceleration_total,omitempty"`
	GyroscopeTotal    *float64 `json:"gyroscope_total,omitempty"`

	// Attitude.
	AngleX *float64 `json:"angle_x,omitempty"`
	AngleY *float64 `json:"angle_y,omitempty"`
	AngleZ *float64 `json:"angle_z,omitempty"`

	// Station status.
	RiskLevel   *float64 `json:"risk_level,omitempty"`
	AlarmActive *bool    `json:"alarm_active,omitempty"`
	Uptime      *int64   `json:"uptime,omitempty"`

	// Position.
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	UltrasonicDistance *float64 `json:"ultrasonic_distance,omitempty"`

	// Deformation analysis. Each field is resolved from a fixed list of
	// historically used upstream key names, see aliases.go.
	DeformationDistance3D *float64 `json:"deformation_distance_3d,omitempty"`
	DeformationHorizontal *float64 `json:"deformation_horizontal,omitempty"`
	DeformationVertical   *float64 `json:"deformation_vertical,omitempty"`
	DeformationVelocity   *float64 `json:"deformation_velocity,omitempty"`
	DeformationRisk       *float64 `json:"deformation_risk_level,omitempty"`
	DeformationType       *int64   `json:"deformation_type,omitempty"`
	DeformationConfidence *float64 `json:"deformation_confidence,omitempty"`
	BaselineEstablished   *bool    `json:"baseline_established,omitempty"`
}
