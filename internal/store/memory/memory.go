// Package memory provides an in-process implementation of the store interfaces.
// Data is lost when the process exits.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/narvanalabs/mocktraffic/internal/models"
	"github.com/narvanalabs/mocktraffic/internal/store"
)

// Store implements store.Store in memory.
type Store struct {
	mu       sync.RWMutex
	settings map[string]string
	targets  []string
	visits   []*models.Visit
	closed   bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		settings: make(map[string]string),
	}
}

// Settings returns the SettingsStore.
func (s *Store) Settings() store.SettingsStore { return (*settingsStore)(s) }

// Targets returns the TargetStore.
func (s *Store) Targets() store.TargetStore { return (*targetStore)(s) }

// Visits returns the VisitStore.
func (s *Store) Visits() store.VisitStore { return (*visitStore)(s) }

// Ping always succeeds while the store is open.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return ctx.Err()
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type settingsStore Store

func (s *settingsStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", errClosed
	}
	return s.settings[key], nil
}

func (s *settingsStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.settings[key] = value
	return nil
}

func (s *settingsStore) GetAll(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

type targetStore Store

func (s *targetStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	return append([]string(nil), s.targets...), nil
}

func (s *targetStore) Add(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	for _, t := range s.targets {
		if t == url {
			return store.ErrDuplicate
		}
	}
	s.targets = append(s.targets, url)
	return nil
}

func (s *targetStore) Exists(ctx context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, errClosed
	}
	for _, t := range s.targets {
		if t == url {
			return true, nil
		}
	}
	return false, nil
}

func (s *targetStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.targets = nil
	return nil
}

type visitStore Store

func (s *visitStore) Record(ctx context.Context, visit *models.Visit) error {
	if visit.VisitedAt.IsZero() {
		visit.VisitedAt = time.Now().UTC()
	}
	cp := *visit
	cp.Resources = append([]string(nil), visit.Resources...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.visits = append(s.visits, &cp)
	return nil
}

func (s *visitStore) ListRecent(ctx context.Context, limit int) ([]*models.Visit, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, errClosed
	}
	out := make([]*models.Visit, len(s.visits))
	copy(out, s.visits)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].VisitedAt.After(out[j].VisitedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *visitStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, errClosed
	}
	return len(s.visits), nil
}

func (s *visitStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errClosed
	}
	kept := s.visits[:0]
	removed := 0
	for _, v := range s.visits {
		if v.VisitedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(s.visits); i++ {
		s.visits[i] = nil
	}
	s.visits = kept
	return removed, nil
}
