package traffic

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/narvanalabs/mocktraffic/internal/models"
	"github.com/narvanalabs/mocktraffic/internal/resolver"
)

// ProbeFunc checks that a resolver can be used to fetch probeURL.
type ProbeFunc func(ctx context.Context, r resolver.Resolver, probeURL string, timeout time.Duration) error

// ClientConfig controls how ConfigureClient builds the visiting client.
type ClientConfig struct {
	// Timeout is the overall per-request timeout.
	Timeout time.Duration
	// ProbeURL is fetched through the DoH provider before it is trusted.
	ProbeURL     string
	ProbeTimeout time.Duration
	// Probe defaults to resolver.Probe.
	Probe ProbeFunc
}

// ConfigureClient builds the HTTP client used for visits according to the
// DoH preferences. It reports whether DoH is in use. A provider that fails the
// probe falls back to the system resolver.
func ConfigureClient(ctx context.Context, prefs *models.Preferences, cfg ClientConfig, logger *slog.Logger) (*http.Client, bool) {
	if logger == nil {
		logger = slog.Default()
	}
	probe := cfg.Probe
	if probe == nil {
		probe = resolver.Probe
	}

	if prefs.DoHEnabled {
		provider, ok := models.LookupDoHProvider(prefs.DoHProvider)
		if !ok {
			provider = models.DefaultDoHProvider()
		}
		doh := resolver.NewDoH(provider, resolver.WithLogger(logger))

		err := probe(ctx, doh, cfg.ProbeURL, cfg.ProbeTimeout)
		if err == nil {
			logger.Info("using DoH resolver", "provider", provider.Name, "url", provider.URL)
			return resolver.NewHTTPClient(doh, cfg.Timeout), true
		}
		logger.Warn("DoH provider probe failed, falling back to system resolver",
			"provider", provider.Name,
			"error", err,
		)
	}

	return resolver.NewHTTPClient(resolver.NewSystem(), cfg.Timeout), false
}
