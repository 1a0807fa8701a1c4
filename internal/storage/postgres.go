// Package storage persists normalized sensor records. Postgres is the
// primary store; InfluxDB and Redis carry dashboard-facing copies.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kipp7/Landslide-monitor/internal/normalize"
	"github.com/kipp7/Landslide-monitor/internal/risk"
)

// Open opens the shared Postgres handle with pool settings applied.
func Open(dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// RecordStore writes canonical sensor records to Postgres.
type RecordStore struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// NewRecordStore wraps an open database handle.
func NewRecordStore(db *sql.DB, queryTimeout time.Duration) *RecordStore {
	return &RecordStore{db: db, queryTimeout: queryTimeout}
}

const recordSchema = `
CREATE TABLE IF NOT EXISTS iot_data (
	device_id               TEXT NOT NULL,
	event_time              TIMESTAMPTZ NOT NULL,
	temperature             DOUBLE PRECISION,
	humidity                DOUBLE PRECISION,
	illumination            DOUBLE PRECISION,
	mpu_temperature         DOUBLE PRECISION,
	acceleration_x          BIGINT,
	acceleration_y          BIGINT,
	acceleration_z          BIGINT,
	gyroscope_x             BIGINT,
	gyroscope_y             BIGINT,
	gyroscope_z             BIGINT,
	acceleration_total      DOUBLE PRECISION,
	gyroscope_total         DOUBLE PRECISION,
	vibration               DOUBLE PRECISION,
	angle_x                 DOUBLE PRECISION,
	angle_y                 DOUBLE PRECISION,
	angle_z                 DOUBLE PRECISION,
	risk_level              DOUBLE PRECISION,
	alarm_active            BOOLEAN,
	uptime                  BIGINT,
	latitude                DOUBLE PRECISION,
	longitude               DOUBLE PRECISION,
	ultrasonic_distance     DOUBLE PRECISION,
	deformation_distance_3d DOUBLE PRECISION,
	deformation_horizontal  DOUBLE PRECISION,
	deformation_vertical    DOUBLE PRECISION,
	deformation_velocity    DOUBLE PRECISION,
	deformation_risk_level  DOUBLE PRECISION,
	deformation_type        BIGINT,
	deformation_confidence  DOUBLE PRECISION,
	baseline_established    BOOLEAN,
	calculated_risk         DOUBLE PRECISION,
	calculated_risk_label   TEXT,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (device_id, event_time)
)`

// EnsureSchema creates the record table if it does not exist.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, recordSchema); err != nil {
		return fmt.Errorf("failed to ensure record schema: %w", err)
	}
	return nil
}

// InsertRecord persists one record annotated with its risk assessment.
// The insert is idempotent on (device_id, event_time): a duplicate push
// from the platform leaves the original row untouched.
func (s *RecordStore) InsertRecord(ctx context.Context, rec *normalize.Record, assessment risk.Assessment) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO iot_data (
			device_id, event_time,
			temperature, humidity, illumination, mpu_temperature,
			acceleration_x, acceleration_y, acceleration_z,
			gyroscope_x, gyroscope_y, gyroscope_z,
			acceleration_total, gyroscope_total, vibration,
			angle_x, angle_y, angle_z,
			risk_level, alarm_active, uptime,
			latitude, longitude, ultrasonic_distance,
			deformation_distance_3d, deformation_horizontal, deformation_vertical,
			deformation_velocity, deformation_risk_level, deformation_type,
			deformation_confidence, baseline_established,
			calculated_risk, calculated_risk_label
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26,
			$27, $28, $29, $30, $31, $32, $33, $34
		)
		ON CONFLICT (device_id, event_time) DO NOTHING`,
		rec.DeviceID, rec.EventTime,
		rec.Temperature, rec.Humidity, rec.Illumination, rec.MPUTemperature,
		rec.AccelerationX, rec.AccelerationY, rec.AccelerationZ,
		rec.GyroscopeX, rec.GyroscopeY, rec.GyroscopeZ,
		rec.AccelerationTotal, rec.GyroscopeTotal, rec.Vibration,
		rec.AngleX, rec.AngleY, rec.AngleZ,
		rec.RiskLevel, rec.AlarmActive, rec.Uptime,
		rec.Latitude, rec.Longitude, rec.UltrasonicDistance,
		rec.DeformationDistance3D, rec.DeformationHorizontal, rec.DeformationVertical,
		rec.DeformationVelocity, rec.DeformationRisk, rec.DeformationType,
		rec.DeformationConfidence, rec.BaselineEstablished,
		assessment.CalculatedRisk, string(assessment.RiskLabel))
	if err != nil {
		return fmt.Errorf("failed to insert sensor record: %w", err)
	}
	return nil
}
