package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPinger struct {
	fail  bool
	delay time.Duration
}

func (m *mockPinger) Ping(ctx context.Context) error {
	select {
	case <-time.After(m.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if m.fail {
		return errors.New("mock ping failed")
	}
	return nil
}

type mockRunner bool

func (m mockRunner) Running() bool { return bool(m) }

// **Property: Health Aggregation**
// *For any* combination of store and generator state, the overall status
// SHALL be unhealthy when the store fails, degraded when only the generator
// is stopped, and healthy otherwise; the HTTP status SHALL follow.
func TestPropertyHealthAggregation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genVersion := gen.RegexMatch("v?[0-9]+\\.[0-9]+\\.[0-9]+")

	properties.Property("overall status follows components", prop.ForAll(
		func(version string, dbHealthy, running bool) bool {
			checker := NewChecker(&mockPinger{fail: !dbHealthy}, mockRunner(running), version)

			rr := httptest.NewRecorder()
			checker.Handler()(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			var resp Response
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				return false
			}

			want := StatusHealthy
			switch {
			case !dbHealthy:
				want = StatusUnhealthy
			case !running:
				want = StatusDegraded
			}
			wantCode := http.StatusOK
			if want == StatusUnhealthy {
				wantCode = http.StatusServiceUnavailable
			}

			_, hasDB := resp.Components["database"]
			_, hasGen := resp.Components["generator"]
			return resp.Status == want && rr.Code == wantCode && hasDB && hasGen && resp.Version == version
		},
		genVersion,
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestCheckHonoursTimeout(t *testing.T) {
	checker := NewChecker(&mockPinger{delay: time.Second}, nil, "dev")
	checker.SetTimeout(20 * time.Millisecond)

	start := time.Now()
	resp := checker.Check(context.Background())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	_, hasGen := resp.Components["generator"]
	assert.False(t, hasGen)
}

func TestCheckWithoutStore(t *testing.T) {
	resp := NewChecker(nil, mockRunner(true), "dev").Check(context.Background())
	require.Contains(t, resp.Components, "database")
	assert.Equal(t, StatusUnhealthy, resp.Components["database"].Status)
}
