// Package store provides persistence interfaces for preferences, target URLs
// and visit history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/narvanalabs/mocktraffic/internal/models"
)

// Common errors returned by store implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when inserting a record that already exists.
	ErrDuplicate = errors.New("record already exists")
	// ErrUnavailable is returned when the backing storage cannot be reached.
	ErrUnavailable = errors.New("store unavailable")
)

// SettingsStore defines key-value operations for persisted preferences.
type SettingsStore interface {
	// Get retrieves a setting by key. Missing keys return "" and no error.
	Get(ctx context.Context, key string) (string, error)
	// Set creates or replaces a setting.
	Set(ctx context.Context, key, value string) error
	// GetAll retrieves all settings.
	GetAll(ctx context.Context) (map[string]string, error)
}

// TargetStore defines operations for the user-supplied URLs to visit.
type TargetStore interface {
	// List returns all target URLs in insertion order.
	List(ctx context.Context) ([]string, error)
	// Add appends a URL. Returns ErrDuplicate if it is already present.
	Add(ctx context.Context, url string) error
	// Exists reports whether the exact URL is stored.
	Exists(ctx context.Context, url string) (bool, error)
	// Clear removes every target URL.
	Clear(ctx context.Context) error
}

// VisitStore defines operations for visit history.
type VisitStore interface {
	// Record persists a visit.
	Record(ctx context.Context, visit *models.Visit) error
	// ListRecent returns up to limit visits, newest first. A limit of zero
	// or less returns every stored visit.
	ListRecent(ctx context.Context, limit int) ([]*models.Visit, error)
	// Count returns the number of stored visits.
	Count(ctx context.Context) (int, error)
	// PruneBefore deletes visits older than cutoff and returns how many were removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Store is the main interface for persistence.
type Store interface {
	// Settings returns the SettingsStore.
	Settings() SettingsStore
	// Targets returns the TargetStore.
	Targets() TargetStore
	// Visits returns the VisitStore.
	Visits() VisitStore

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error
	// Close releases the backing storage.
	Close() error
}
