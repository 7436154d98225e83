// Package traffic generates background web traffic: it periodically visits a
// random target URL with a randomized user agent and fetches a few of the
// page's static resources, the way a browser would.
package traffic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/narvanalabs/mocktraffic/internal/models"
	"github.com/narvanalabs/mocktraffic/internal/preferences"
	"github.com/narvanalabs/mocktraffic/internal/resolver"
	"github.com/narvanalabs/mocktraffic/internal/stats"
	"github.com/narvanalabs/mocktraffic/internal/store"
	"github.com/narvanalabs/mocktraffic/pkg/logger"
)

// Generator errors.
var (
	ErrNonHTTPS = errors.New("only https URLs are visited")
)

// Config holds generator tunables.
type Config struct {
	ProbeURL     string
	ProbeTimeout time.Duration

	// Delay overrides NextDelay.
	Delay func() time.Duration
	// Client, when set, is used for every visit instead of ConfigureClient.
	Client *http.Client
	// Probe overrides resolver.Probe when configuring DoH.
	Probe ProbeFunc
}

// Generator schedules visits and tracks their statistics.
type Generator struct {
	prefs   *preferences.Service
	visits  store.VisitStore
	profile *models.Profile
	broker  *stats.Broker
	cfg     Config
	logger  *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	mu            sync.RWMutex
	running       bool
	enabled       bool
	active        bool
	urls          []string
	client        *http.Client
	dohActive     bool
	requestCount  int
	resourceCount int
	lastURLs      []string
	countLoaded   bool

	stopCh chan struct{}
	wake   chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewGenerator creates a traffic generator.
func NewGenerator(prefs *preferences.Service, visits store.VisitStore, profile *models.Profile, broker *stats.Broker, cfg Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if broker == nil {
		broker = stats.NewBroker(logger)
	}
	return &Generator{
		prefs:   prefs,
		visits:  visits,
		profile: profile,
		broker:  broker,
		cfg:     cfg,
		logger:  logger,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		wake:    make(chan struct{}, 1),
	}
}

// Start runs the visit loop until ctx is cancelled or Stop is called.
// It returns nil immediately if the generator is already running.
func (g *Generator) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return nil
	}
	g.running = true
	g.stopCh = make(chan struct{})
	g.done = make(chan struct{})
	stopCh, done := g.stopCh, g.done
	g.mu.Unlock()

	defer close(done)

	visitCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		g.wg.Wait()
		g.mu.Lock()
		g.running = false
		g.active = false
		g.mu.Unlock()
		g.publish()
	}()

	if err := g.Reload(ctx); err != nil {
		g.logger.Error("loading preferences", "error", err)
	}

	g.logger.Info("traffic generator started")

	timer := time.NewTimer(g.nextDelay())
	defer timer.Stop()
	idle := false

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("traffic generator stopped by context")
			return ctx.Err()
		case <-stopCh:
			g.logger.Info("traffic generator stopped")
			return nil
		case <-g.prefs.Reloads():
			if err := g.Reload(ctx); err != nil {
				g.logger.Error("reloading preferences", "error", err)
			}
			if idle {
				idle = false
				timer.Reset(0)
			}
		case <-g.wake:
			if idle {
				idle = false
				timer.Reset(0)
			}
		case <-timer.C:
			if g.step(visitCtx) {
				timer.Reset(g.nextDelay())
			} else {
				idle = true
			}
		}
	}
}

// Stop halts the visit loop and waits for in-flight visits to finish.
func (g *Generator) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	select {
	case <-g.stopCh:
	default:
		close(g.stopCh)
	}
	done := g.done
	g.mu.Unlock()

	<-done
}

// Reload re-reads the target URLs and DoH preferences and rebuilds the client.
func (g *Generator) Reload(ctx context.Context) error {
	prefs, err := g.prefs.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading preferences: %w", err)
	}

	urls := g.profile.FilterTargets(prefs.URLs)

	client, doh := g.cfg.Client, false
	if client == nil {
		client, doh = ConfigureClient(ctx, prefs, ClientConfig{
			Timeout:      g.profile.Timeout,
			ProbeURL:     g.cfg.ProbeURL,
			ProbeTimeout: g.cfg.ProbeTimeout,
			Probe:        g.cfg.Probe,
		}, g.logger)
	}

	g.mu.Lock()
	old := g.client
	g.urls = urls
	g.enabled = prefs.TrafficEnabled
	g.active = g.running && g.enabled && len(urls) > 0
	g.client = client
	g.dohActive = doh
	if !g.countLoaded {
		g.requestCount = prefs.RequestCount
		g.countLoaded = true
	}
	g.mu.Unlock()

	if old != nil && old != client && g.cfg.Client == nil {
		resolver.CloseIdle(old)
	}

	g.logger.Info("traffic configuration reloaded",
		"urls", len(urls),
		"traffic_enabled", prefs.TrafficEnabled,
		"doh_active", doh,
	)
	g.publish()
	return nil
}

// SetEnabled persists the traffic switch and wakes an idle loop.
func (g *Generator) SetEnabled(ctx context.Context, enabled bool) error {
	if err := g.prefs.SetTrafficEnabled(ctx, enabled); err != nil {
		return err
	}

	g.mu.Lock()
	g.enabled = enabled
	g.active = g.running && enabled && len(g.urls) > 0
	g.mu.Unlock()

	g.logger.Info("traffic switched", "enabled", enabled)
	g.publish()

	select {
	case g.wake <- struct{}{}:
	default:
	}
	return nil
}

// Stats returns a snapshot of the generator state.
func (g *Generator) Stats() models.Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshotLocked()
}

// Running reports whether the visit loop is running.
func (g *Generator) Running() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.running
}

// Broker returns the broker that receives stats snapshots.
func (g *Generator) Broker() *stats.Broker {
	return g.broker
}

func (g *Generator) snapshotLocked() models.Stats {
	return models.Stats{
		RequestCount:  g.requestCount,
		ResourceCount: g.resourceCount,
		LastURLs:      append([]string{}, g.lastURLs...),
		Running:       g.running && g.active,
		DoHActive:     g.dohActive,
		UpdatedAt:     time.Now().UTC(),
	}
}

func (g *Generator) publish() {
	g.broker.Publish(g.Stats())
}

// step performs one tick. It reports false when the generator has nothing to
// do and should wait for a reload or wake-up.
func (g *Generator) step(ctx context.Context) bool {
	g.mu.Lock()
	if !g.enabled || len(g.urls) == 0 {
		wasActive := g.active
		g.active = false
		g.mu.Unlock()
		if wasActive {
			g.logger.Info("traffic generator idle")
		}
		g.publish()
		return false
	}
	g.active = true
	target := g.urls[g.intN(len(g.urls))]
	client := g.client
	g.lastURLs = append(g.lastURLs, target)
	if len(g.lastURLs) > MaxLastURLs {
		g.lastURLs = g.lastURLs[len(g.lastURLs)-MaxLastURLs:]
	}
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.visit(ctx, client, target)
	}()

	g.publish()
	return true
}

// visit fetches target and some of its resources and records the outcome.
func (g *Generator) visit(ctx context.Context, client *http.Client, target string) *models.Visit {
	start := time.Now()
	v := &models.Visit{
		ID:        uuid.NewString(),
		URL:       target,
		VisitedAt: start.UTC(),
	}
	ctx = logger.ContextWithVisitID(ctx, v.ID)
	log := logger.FromContext(ctx, g.logger).With("url", target)

	defer func() {
		v.Duration = time.Since(start).Milliseconds()
		if err := g.visits.Record(context.WithoutCancel(ctx), v); err != nil {
			log.Error("recording visit", "error", err)
		}
		g.publish()
	}()

	if !strings.HasPrefix(target, "https://") {
		v.Error = ErrNonHTTPS.Error()
		return v
	}

	v.UserAgent = g.userAgent()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		v.Error = err.Error()
		return v
	}
	req.Header.Set("User-Agent", v.UserAgent)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Connection", "keep-alive")

	resp, err := client.Do(req)
	if err != nil {
		log.Debug("visit failed", "error", err)
		v.Error = err.Error()
		return v
	}
	defer resp.Body.Close()

	v.Status = resp.StatusCode
	if !isSuccess(resp.StatusCode) {
		v.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageSize))
		return v
	}

	v.Success = true
	g.countRequest(ctx)

	candidates, err := ExtractResources(resp.Request.URL, io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		log.Debug("parsing page", "error", err)
		return v
	}

	g.rngMu.Lock()
	selected := SelectResources(candidates, g.profile, g.rng, MaxResources)
	g.rngMu.Unlock()

	v.Resources = g.fetchResources(ctx, client, selected)
	log.Debug("visit complete", "status", v.Status, "resources", len(v.Resources))
	return v
}

// fetchResources loads each resource concurrently and returns those accepted.
func (g *Generator) fetchResources(ctx context.Context, client *http.Client, urls []string) []string {
	if len(urls) == 0 {
		return nil
	}

	accepted := make([]bool, len(urls))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(MaxResources)
	for i, u := range urls {
		eg.Go(func() error {
			ok, err := g.fetchResource(egCtx, client, u)
			if err != nil {
				logger.FromContext(ctx, g.logger).Debug("resource fetch failed", "resource", u, "error", err)
				return nil
			}
			accepted[i] = ok
			return nil
		})
	}
	_ = eg.Wait()

	var out []string
	for i, ok := range accepted {
		if ok {
			out = append(out, urls[i])
		}
	}

	if len(out) > 0 {
		g.mu.Lock()
		g.resourceCount += len(out)
		g.mu.Unlock()
	}
	return out
}

func (g *Generator) fetchResource(ctx context.Context, client *http.Client, u string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", g.userAgent())
	req.Header.Set("Accept", acceptFor(u))
	req.Header.Set("Connection", "keep-alive")

	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return false, nil
	}
	if resp.ContentLength > MaxResourceSize {
		return false, nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResourceSize))
	return true, nil
}

func (g *Generator) countRequest(ctx context.Context) {
	g.mu.Lock()
	g.requestCount++
	n := g.requestCount
	g.mu.Unlock()

	if err := g.prefs.SaveRequestCount(context.WithoutCancel(ctx), n); err != nil {
		logger.FromContext(ctx, g.logger).Warn("persisting request count", "error", err)
	}
}

func (g *Generator) nextDelay() time.Duration {
	if g.cfg.Delay != nil {
		return g.cfg.Delay()
	}
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return NextDelay(g.rng)
}

func (g *Generator) intN(n int) int {
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return g.rng.IntN(n)
}

func (g *Generator) userAgent() string {
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return g.profile.RandomUserAgent(g.rng)
}

func isSuccess(code int) bool {
	return code >= 200 && code <= 299
}
