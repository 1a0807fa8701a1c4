// Package devices maps the platform's long composite device identifiers to
// stable short internal identifiers.
package devices

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Common errors.
var (
	// ErrMappingNotFound is returned by stores when no mapping exists for
	// an external id.
	ErrMappingNotFound = errors.New("device mapping not found")

	// ErrMappingUnavailable is returned when the mapping store cannot be
	// reached. Callers must treat it as a per-record failure.
	ErrMappingUnavailable = errors.New("device mapping store unavailable")
)

// Mapping ties one external device id to its internal identity. Created
// exactly once per external id on first sighting and never deleted by this
// pipeline.
type Mapping struct {
	ExternalID  string    `json:"external_id"`
	InternalID  string    `json:"internal_id"`
	DisplayName string    `json:"display_name"`
	Location    string    `json:"location_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Hint carries device metadata derived from the first observed payload,
// used to seed a new mapping's display name and location.
type Hint struct {
	DeviceName string
	Location   string
}

// MappingStore is the persistent backing for device mappings.
type MappingStore interface {
	// FindByExternalID returns the mapping for an external id, or
	// ErrMappingNotFound.
	FindByExternalID(ctx context.Context, externalID string) (*Mapping, error)

	// CreateIfAbsent persists a new mapping unless one already exists for
	// the same external id, relying on the store's uniqueness guarantee.
	// It returns the winning mapping either way, so two concurrent first
	// sightings converge on one row.
	CreateIfAbsent(ctx context.Context, m *Mapping) (*Mapping, error)

	// ListAll returns every known mapping, used to warm the cache at
	// process start.
	ListAll(ctx context.Context) ([]*Mapping, error)
}

// Resolver resolves external device ids against an in-memory cache backed
// by a MappingStore. The cache is append-only: entries are added as
// mappings are resolved and never mutated in place, so concurrent readers
// never observe a half-written entry.
type Resolver struct {
	store  MappingStore
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]string // external id -> internal id
}

// NewResolver creates a resolver with an empty cache.
func NewResolver(store MappingStore, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger,
		cache:  make(map[string]string),
	}
}

// Warm populates the cache from the store so steady-state resolution never
// touches it. Called once at process start; failure is not fatal, the
// cache fills incrementally instead.
func (r *Resolver) Warm(ctx context.Context) error {
	mappings, err := r.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMappingUnavailable, err)
	}

	r.mu.Lock()
	for _, m := range mappings {
		r.cache[m.ExternalID] = m.InternalID
	}
	r.mu.Unlock()

	r.logger.Info("device mapping cache warmed", zap.Int("mappings", len(mappings)))
	return nil
}

// Resolve returns the internal id for an external device id, creating a
// mapping on first sighting. A creation race between two simultaneous
// first sightings is settled by the store's unique constraint, never by
// in-process locking: multiple service instances may run concurrently.
func (r *Resolver) Resolve(ctx context.Context, externalID string, hint Hint) (string, error) {
	r.mu.RLock()
	internalID, ok := r.cache[externalID]
	r.mu.RUnlock()
	if ok {
		return internalID, nil
	}

	existing, err := r.store.FindByExternalID(ctx, externalID)
	if err == nil {
		r.remember(externalID, existing.InternalID)
		return existing.InternalID, nil
	}
	if !errors.Is(err, ErrMappingNotFound) {
		return "", fmt.Errorf("%w: %v", ErrMappingUnavailable, err)
	}

	winner, err := r.store.CreateIfAbsent(ctx, &Mapping{
		ExternalID:  externalID,
		DisplayName: displayName(externalID, hint),
		Location:    hint.Location,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMappingUnavailable, err)
	}

	r.logger.Info("device mapping resolved",
		zap.String("external_id", externalID),
		zap.String("internal_id", winner.InternalID))

	r.remember(externalID, winner.InternalID)
	return winner.InternalID, nil
}

func (r *Resolver) remember(externalID, internalID string) {
	r.mu.Lock()
	r.cache[externalID] = internalID
	r.mu.Unlock()
}

// displayName seeds a readable station name when the payload carried no
// device-name hint. External ids end with the node identifier, e.g.
// "6815a14f9314d118511807c6_rk2206".
func displayName(externalID string, hint Hint) string {
	if hint.DeviceName != "" {
		return hint.DeviceName
	}
	suffix := externalID
	if len(suffix) > 12 {
		suffix = suffix[len(suffix)-12:]
	}
	return "Station " + suffix
}
