package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/narvanalabs/mocktraffic/internal/api/handlers"
	"github.com/narvanalabs/mocktraffic/internal/auth"
	"github.com/narvanalabs/mocktraffic/internal/models"
	"github.com/narvanalabs/mocktraffic/internal/preferences"
	"github.com/narvanalabs/mocktraffic/internal/stats"
	"github.com/narvanalabs/mocktraffic/internal/store/memory"
	"github.com/narvanalabs/mocktraffic/internal/traffic"
	"github.com/narvanalabs/mocktraffic/pkg/config"
)

const adminPassword = "correct horse battery staple"

type testEnv struct {
	api    *Server
	server *httptest.Server
	store  *memory.Store
	prefs  *preferences.Service
	gen    *traffic.Generator
	token  string
}

func newTestEnv(t *testing.T, passwordHash string) *testEnv {
	t.Helper()

	cfg := config.LoadWithDefaults()
	cfg.AuthDisabled = false

	st := memory.New()
	prefs := preferences.NewService(st, nil)
	profile := &models.Profile{UserAgents: []string{"test-agent"}, Timeout: time.Second}
	gen := traffic.NewGenerator(prefs, st.Visits(), profile, stats.NewBroker(nil), traffic.Config{Client: http.DefaultClient}, nil)

	authSvc := auth.NewService(&auth.Config{
		JWTSecret:    []byte(cfg.JWTSecret),
		TokenExpiry:  time.Hour,
		PasswordHash: passwordHash,
	}, nil)
	token, err := authSvc.GenerateToken(auth.AdminSubject)
	require.NoError(t, err)

	srv := NewServer(cfg, st, prefs, gen, authSvc, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testEnv{api: srv, server: ts, store: st, prefs: prefs, gen: gen, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestV1RequiresToken(t *testing.T) {
	env := newTestEnv(t, "")
	env.token = ""

	resp := env.do(t, http.MethodGet, "/v1/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
	assert.NotEmpty(t, body["request_id"])
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	env := newTestEnv(t, string(hash))
	env.token = ""

	resp := env.do(t, http.MethodPost, "/auth/login", map[string]string{"password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/auth/login", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/auth/login", map[string]string{"password": adminPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env.token = decode[handlers.LoginResponse](t, resp).Token

	resp = env.do(t, http.MethodGet, "/v1/stats", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginWithoutConfiguredPassword(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.do(t, http.MethodPost, "/auth/login", map[string]string{"password": "anything"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestURLLifecycle(t *testing.T) {
	env := newTestEnv(t, "")

	cases := []struct {
		url     string
		status  int
		message string
	}{
		{"   ", http.StatusBadRequest, "Enter a URL"},
		{"http://example.com", http.StatusBadRequest, "Invalid HTTPS URL"},
		{"https://", http.StatusBadRequest, "Invalid HTTPS URL"},
		{"  https://example.com/news  ", http.StatusCreated, ""},
		{"https://example.com/news", http.StatusConflict, "URL already exists"},
	}
	for _, tc := range cases {
		resp := env.do(t, http.MethodPost, "/v1/urls", handlers.URLRequest{URL: tc.url})
		require.Equal(t, tc.status, resp.StatusCode, tc.url)
		body := decode[map[string]any](t, resp)
		if tc.message != "" {
			assert.Equal(t, tc.message, body["message"], tc.url)
		} else {
			assert.Equal(t, "https://example.com/news", body["url"])
		}
	}

	resp := env.do(t, http.MethodGet, "/v1/urls", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"https://example.com/news"}, decode[handlers.URLListResponse](t, resp).URLs)

	resp = env.do(t, http.MethodDelete, "/v1/urls", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/v1/urls", nil)
	assert.Empty(t, decode[handlers.URLListResponse](t, resp).URLs)
}

func TestStoreUnavailableReturns503(t *testing.T) {
	env := newTestEnv(t, "")
	require.NoError(t, env.store.Close())

	resp := env.do(t, http.MethodGet, "/v1/urls", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "SERVICE_UNAVAILABLE", body["code"])
	assert.NotEmpty(t, body["request_id"])

	resp = env.do(t, http.MethodGet, "/v1/visits", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestDoHPreferences(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodGet, "/v1/preferences", nil)
	prefs := decode[models.Preferences](t, resp)
	assert.True(t, prefs.DoHEnabled)
	assert.False(t, prefs.TrafficEnabled)
	assert.Equal(t, models.DefaultDoHProvider().URL, prefs.DoHProvider)

	resp = env.do(t, http.MethodPut, "/v1/preferences/doh", map[string]any{"provider": "https://dns.example/query"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/v1/preferences/doh", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	quad9 := models.DoHProviders[2].URL
	resp = env.do(t, http.MethodPut, "/v1/preferences/doh", map[string]any{"enabled": false, "provider": quad9})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	prefs = decode[models.Preferences](t, resp)
	assert.False(t, prefs.DoHEnabled)
	assert.Equal(t, quad9, prefs.DoHProvider)

	resp = env.do(t, http.MethodGet, "/v1/providers", nil)
	providers := decode[handlers.ProvidersResponse](t, resp)
	assert.Len(t, providers.Providers, len(models.DoHProviders))
	assert.Equal(t, quad9, providers.Selected)
}

func TestTrafficToggle(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	resp := env.do(t, http.MethodPost, "/v1/traffic/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	prefs, err := env.prefs.Load(ctx)
	require.NoError(t, err)
	assert.True(t, prefs.TrafficEnabled)

	resp = env.do(t, http.MethodPost, "/v1/traffic/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decode[models.Stats](t, resp)
	assert.False(t, snap.Running)
	prefs, err = env.prefs.Load(ctx)
	require.NoError(t, err)
	assert.False(t, prefs.TrafficEnabled)
}

func TestVisitsLimit(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 60; i++ {
		require.NoError(t, env.store.Visits().Record(ctx, &models.Visit{
			ID:        fmt.Sprintf("visit-%d", i),
			URL:       "https://example.com",
			VisitedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	resp := env.do(t, http.MethodGet, "/v1/visits", nil)
	page := decode[handlers.VisitListResponse](t, resp)
	assert.Len(t, page.Visits, handlers.DefaultVisitLimit)
	assert.Equal(t, 60, page.Total)
	assert.True(t, page.Visits[0].VisitedAt.After(page.Visits[1].VisitedAt))

	resp = env.do(t, http.MethodGet, "/v1/visits?limit=5", nil)
	assert.Len(t, decode[handlers.VisitListResponse](t, resp).Visits, 5)

	resp = env.do(t, http.MethodGet, "/v1/visits?limit=100000", nil)
	assert.Len(t, decode[handlers.VisitListResponse](t, resp).Visits, 60)

	resp = env.do(t, http.MethodGet, "/v1/visits?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatsStream(t *testing.T) {
	env := newTestEnv(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/v1/stats/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+env.token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "event: ") {
				events <- strings.TrimPrefix(line, "event: ")
			}
		}
		close(events)
	}()

	assert.Equal(t, "connected", <-events)
	assert.Equal(t, "stats", <-events)

	require.NoError(t, env.gen.SetEnabled(context.Background(), true))
	assert.Equal(t, "stats", <-events)
}

func TestStatsWebSocket(t *testing.T) {
	env := newTestEnv(t, "")

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/v1/stats/ws"
	header := http.Header{"Authorization": []string{"Bearer " + env.token}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var snap models.Stats
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Zero(t, snap.RequestCount)

	require.NoError(t, env.gen.SetEnabled(context.Background(), true))
	require.NoError(t, conn.ReadJSON(&snap))
	assert.False(t, snap.Running)
}

func TestHealthAndVersion(t *testing.T) {
	env := newTestEnv(t, "")
	env.token = ""

	resp := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "degraded", body["status"])

	resp = env.do(t, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := decode[map[string]any](t, resp)
	assert.Equal(t, "com.nemesis.mocktraffic", info["app_id"])
	assert.Equal(t, "1.1", info["version_name"])
}

type openAPIDoc struct {
	Paths map[string]map[string]any `yaml:"paths"`
}

// Every route the router serves is documented in the embedded OpenAPI file.
func TestOpenAPIEndpointCoverage(t *testing.T) {
	var doc openAPIDoc
	require.NoError(t, yaml.Unmarshal(handlers.OpenAPISpec(), &doc))

	env := newTestEnv(t, "")
	err := chi.Walk(env.api.Router(), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if strings.HasPrefix(route, "/api/docs") {
			return nil
		}
		path := route
		if len(path) > 1 {
			path = strings.TrimSuffix(path, "/")
		}
		ops, ok := doc.Paths[path]
		if assert.True(t, ok, "route %s is not documented", path) {
			_, ok = ops[strings.ToLower(method)]
			assert.True(t, ok, "%s %s is not documented", method, path)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestShutdownEndsOpenStreams(t *testing.T) {
	env := newTestEnv(t, "")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- env.api.Serve(context.Background(), ln) }()

	req, err := http.NewRequest(http.MethodGet, "http://"+ln.Addr().String()+"/v1/stats/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+env.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, env.api.Shutdown(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.NoError(t, <-served)
}
