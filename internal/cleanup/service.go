// Package cleanup prunes visit history older than a configurable retention.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/narvanalabs/mocktraffic/internal/store"
)

// Settings keys for cleanup configuration.
const (
	SettingHistoryRetention     = "history_retention"
	SettingHistoryPruneInterval = "history_prune_interval"
)

// Default values for cleanup settings.
const (
	DefaultHistoryRetention     = 24 * time.Hour
	DefaultHistoryPruneInterval = 30 * time.Second
)

// Settings holds cleanup configuration loaded from the settings store.
type Settings struct {
	HistoryRetention     time.Duration `json:"history_retention"`
	HistoryPruneInterval time.Duration `json:"history_prune_interval"`
}

// Validate checks that both durations are positive.
func (s *Settings) Validate() error {
	if s.HistoryRetention <= 0 {
		return fmt.Errorf("history_retention must be positive, got %v", s.HistoryRetention)
	}
	if s.HistoryPruneInterval <= 0 {
		return fmt.Errorf("history_prune_interval must be positive, got %v", s.HistoryPruneInterval)
	}
	return nil
}

// Result holds the outcome of one prune pass.
type Result struct {
	ItemsRemoved int           `json:"items_removed"`
	Cutoff       time.Time     `json:"cutoff"`
	Duration     time.Duration `json:"duration"`
}

// Service periodically removes old visits.
type Service struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	settings *Settings
	running  bool
	stopChan chan struct{}
}

// NewService creates a new cleanup service.
func NewService(st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// LoadSettings loads cleanup settings from the store, applying defaults for
// missing, malformed or non-positive values.
func (s *Service) LoadSettings(ctx context.Context) (*Settings, error) {
	allSettings, err := s.store.Settings().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	settings := &Settings{
		HistoryRetention:     parseDuration(allSettings[SettingHistoryRetention], DefaultHistoryRetention),
		HistoryPruneInterval: parseDuration(allSettings[SettingHistoryPruneInterval], DefaultHistoryPruneInterval),
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	s.logger.Debug("loaded cleanup settings",
		"history_retention", settings.HistoryRetention,
		"history_prune_interval", settings.HistoryPruneInterval,
	)
	return settings, nil
}

// GetSettings returns the current cleanup settings.
// Returns nil if settings have not been loaded.
func (s *Service) GetSettings() *Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// PruneHistory deletes visits older than the configured retention.
func (s *Service) PruneHistory(ctx context.Context) (*Result, error) {
	settings, err := s.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}

	start := s.now()
	cutoff := start.Add(-settings.HistoryRetention)

	removed, err := s.store.Visits().PruneBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("pruning visits: %w", err)
	}

	result := &Result{
		ItemsRemoved: removed,
		Cutoff:       cutoff,
		Duration:     s.now().Sub(start),
	}
	if removed > 0 {
		s.logger.Info("visit history pruned",
			"removed", removed,
			"cutoff", cutoff,
			"duration", result.Duration,
		)
	}
	return result, nil
}

// Start runs PruneHistory on every prune interval until ctx is cancelled or
// Stop is called. The interval is re-read from settings after each pass.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopChan = make(chan struct{})
	stopChan := s.stopChan
	s.mu.Unlock()

	settings, err := s.LoadSettings(ctx)
	if err != nil {
		s.logger.Error("loading cleanup settings", "error", err)
		settings = &Settings{HistoryPruneInterval: DefaultHistoryPruneInterval}
	}

	s.logger.Info("starting history cleanup", "interval", settings.HistoryPruneInterval)

	timer := time.NewTimer(settings.HistoryPruneInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("history cleanup stopped by context")
			return ctx.Err()
		case <-stopChan:
			s.logger.Info("history cleanup stopped")
			return nil
		case <-timer.C:
			interval := DefaultHistoryPruneInterval
			if _, err := s.PruneHistory(ctx); err != nil {
				s.logger.Error("history cleanup failed", "error", err)
			}
			if current := s.GetSettings(); current != nil {
				interval = current.HistoryPruneInterval
			}
			timer.Reset(interval)
		}
	}
}

// Stop stops the cleanup loop.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		close(s.stopChan)
		s.running = false
	}
}

// parseDuration parses a duration string, returning the default if parsing
// fails, the value is empty or it is not positive.
func parseDuration(value string, defaultVal time.Duration) time.Duration {
	if value == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
