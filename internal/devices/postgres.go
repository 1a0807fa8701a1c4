package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore implements MappingStore on the shared Postgres handle.
// Uniqueness of external_id is enforced by the table constraint, which is
// what settles concurrent first-sighting races across process instances.
type PostgresStore struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB, queryTimeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, queryTimeout: queryTimeout}
}

const mappingSchema = `
CREATE SEQUENCE IF NOT EXISTS iot_device_mapping_seq;
CREATE TABLE IF NOT EXISTS iot_device_mapping (
	external_id   TEXT PRIMARY KEY,
	internal_id   TEXT UNIQUE NOT NULL,
	display_name  TEXT NOT NULL DEFAULT '',
	location_name TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// EnsureSchema creates the mapping table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, mappingSchema); err != nil {
		return fmt.Errorf("failed to ensure device mapping schema: %w", err)
	}
	return nil
}

// FindByExternalID looks up one mapping.
func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string) (*Mapping, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	m := &Mapping{ExternalID: externalID}
	err := s.db.QueryRowContext(ctx, `
		SELECT internal_id, display_name, location_name, created_at
		FROM iot_device_mapping
		WHERE external_id = $1`, externalID).
		Scan(&m.InternalID, &m.DisplayName, &m.Location, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMappingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query device mapping: %w", err)
	}
	return m, nil
}

// CreateIfAbsent inserts a new mapping with a store-assigned internal id.
// ON CONFLICT DO NOTHING makes the insert a no-op when another instance
// won the race; the winning row is then re-read and returned.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, m *Mapping) (*Mapping, error) {
	insertCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	created := &Mapping{
		ExternalID:  m.ExternalID,
		DisplayName: m.DisplayName,
		Location:    m.Location,
	}
	err := s.db.QueryRowContext(insertCtx, `
		INSERT INTO iot_device_mapping (external_id, internal_id, display_name, location_name)
		VALUES ($1, 'device_' || nextval('iot_device_mapping_seq'), $2, $3)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING internal_id, created_at`,
		m.ExternalID, m.DisplayName, m.Location).
		Scan(&created.InternalID, &created.CreatedAt)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to create device mapping: %w", err)
	}

	// Lost the race: a mapping for this external id already exists.
	return s.FindByExternalID(ctx, m.ExternalID)
}

// ListAll returns every mapping for cache warming.
func (s *PostgresStore) ListAll(ctx context.Context) ([]*Mapping, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT external_id, internal_id, display_name, location_name, created_at
		FROM iot_device_mapping
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list device mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*Mapping
	for rows.Next() {
		m := &Mapping{}
		if err := rows.Scan(&m.ExternalID, &m.InternalID, &m.DisplayName, &m.Location, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}
