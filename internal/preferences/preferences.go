// Package preferences manages the persisted, user-controlled generator state:
// whether traffic and DoH are enabled, the selected DoH provider, the URLs to
// visit and the lifetime request count.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/narvanalabs/mocktraffic/internal/models"
	"github.com/narvanalabs/mocktraffic/internal/store"
)

// Settings keys.
const (
	KeyTrafficEnabled = "traffic_enabled"
	KeyDoHEnabled     = "doh_enabled"
	KeyDoHProvider    = "doh_provider"
	KeyRequestCount   = "request_count"
)

// Default values.
const (
	DefaultTrafficEnabled = false
	DefaultDoHEnabled     = true
)

// Preference errors.
var (
	ErrDuplicateURL    = errors.New("URL already exists")
	ErrUnknownProvider = errors.New("unknown DoH provider")
)

// Service reads and writes preferences through a store.
type Service struct {
	store   store.Store
	logger  *slog.Logger
	reloads chan struct{}
}

// NewService creates a preferences service backed by st.
func NewService(st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   st,
		logger:  logger,
		reloads: make(chan struct{}, 1),
	}
}

// Reloads delivers a notification whenever URLs or DoH settings change.
// Notifications coalesce: a consumer that falls behind sees one pending signal.
func (s *Service) Reloads() <-chan struct{} {
	return s.reloads
}

func (s *Service) notifyReload() {
	select {
	case s.reloads <- struct{}{}:
	default:
	}
}

// Load returns the current preferences, applying defaults for unset keys.
func (s *Service) Load(ctx context.Context) (*models.Preferences, error) {
	all, err := s.store.Settings().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	urls, err := s.store.Targets().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading urls: %w", err)
	}

	provider := all[KeyDoHProvider]
	if _, ok := models.LookupDoHProvider(provider); !ok {
		provider = models.DefaultDoHProvider().URL
	}

	if urls == nil {
		urls = []string{}
	}

	return &models.Preferences{
		TrafficEnabled: parseBool(all[KeyTrafficEnabled], DefaultTrafficEnabled),
		DoHEnabled:     parseBool(all[KeyDoHEnabled], DefaultDoHEnabled),
		DoHProvider:    provider,
		URLs:           urls,
		RequestCount:   parseInt(all[KeyRequestCount], 0),
	}, nil
}

// AddURL validates and stores a new target URL.
func (s *Service) AddURL(ctx context.Context, raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if err := models.ValidateTargetURL(u); err != nil {
		return "", err
	}

	exists, err := s.store.Targets().Exists(ctx, u)
	if err != nil {
		return "", fmt.Errorf("checking url: %w", err)
	}
	if exists {
		return "", ErrDuplicateURL
	}

	if err := s.store.Targets().Add(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return "", ErrDuplicateURL
		}
		return "", fmt.Errorf("adding url: %w", err)
	}

	s.logger.Info("url added", "url", u)
	s.notifyReload()
	return u, nil
}

// ClearURLs removes every target URL.
func (s *Service) ClearURLs(ctx context.Context) error {
	if err := s.store.Targets().Clear(ctx); err != nil {
		return fmt.Errorf("clearing urls: %w", err)
	}
	s.logger.Info("urls cleared")
	s.notifyReload()
	return nil
}

// SetDoHEnabled toggles DNS-over-HTTPS.
func (s *Service) SetDoHEnabled(ctx context.Context, enabled bool) error {
	if err := s.store.Settings().Set(ctx, KeyDoHEnabled, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("saving %s: %w", KeyDoHEnabled, err)
	}
	s.logger.Info("DoH toggled", "enabled", enabled)
	s.notifyReload()
	return nil
}

// SetDoHProvider selects one of the built-in DoH providers by URL.
func (s *Service) SetDoHProvider(ctx context.Context, providerURL string) error {
	p, ok := models.LookupDoHProvider(providerURL)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, providerURL)
	}
	if err := s.store.Settings().Set(ctx, KeyDoHProvider, p.URL); err != nil {
		return fmt.Errorf("saving %s: %w", KeyDoHProvider, err)
	}
	s.logger.Info("DoH provider selected", "provider", p.Name)
	s.notifyReload()
	return nil
}

// SetTrafficEnabled persists whether the generator should run.
func (s *Service) SetTrafficEnabled(ctx context.Context, enabled bool) error {
	if err := s.store.Settings().Set(ctx, KeyTrafficEnabled, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("saving %s: %w", KeyTrafficEnabled, err)
	}
	return nil
}

// SaveRequestCount persists the lifetime request count.
func (s *Service) SaveRequestCount(ctx context.Context, n int) error {
	if err := s.store.Settings().Set(ctx, KeyRequestCount, strconv.Itoa(n)); err != nil {
		return fmt.Errorf("saving %s: %w", KeyRequestCount, err)
	}
	return nil
}

func parseBool(value string, defaultVal bool) bool {
	if value == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultVal
	}
	return b
}

func parseInt(value string, defaultVal int) int {
	if value == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultVal
	}
	return i
}
