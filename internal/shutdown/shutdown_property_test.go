package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// MockComponent records when it is shut down.
type MockComponent struct {
	name          string
	shutdownDelay time.Duration
	shouldFail    bool
	shutdownCount int32
	order         *orderLog
}

type orderLog struct {
	mu    sync.Mutex
	names []string
}

func (l *orderLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

func (l *orderLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

func NewMockComponent(name string, delay time.Duration, shouldFail bool) *MockComponent {
	return &MockComponent{
		name:          name,
		shutdownDelay: delay,
		shouldFail:    shouldFail,
	}
}

func (m *MockComponent) Name() string {
	return m.name
}

func (m *MockComponent) Shutdown(ctx context.Context) error {
	atomic.AddInt32(&m.shutdownCount, 1)
	if m.order != nil {
		m.order.add(m.name)
	}

	select {
	case <-time.After(m.shutdownDelay):
		if m.shouldFail {
			return errors.New("mock shutdown failed")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockComponent) ShutdownCount() int {
	return int(atomic.LoadInt32(&m.shutdownCount))
}

// **Property: Reverse Registration Order**
// *For any* number of registered components, shutdown SHALL stop each of them
// exactly once, newest first, and exit with code 0.
func TestPropertyShutdownOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("components stop in LIFO order", prop.ForAll(
		func(n int, failing int) bool {
			log := &orderLog{}
			coordinator := NewCoordinator(WithTimeout(time.Second))

			var want []string
			components := make([]*MockComponent, n)
			for i := 0; i < n; i++ {
				comp := NewMockComponent(fmt.Sprintf("component-%d", i), 0, i == failing%n)
				comp.order = log
				components[i] = comp
				coordinator.Register(comp)
				want = append([]string{comp.name}, want...)
			}

			coordinator.Shutdown()
			coordinator.Wait()

			for _, comp := range components {
				if comp.ShutdownCount() != 1 {
					return false
				}
			}
			return assert.ObjectsAreEqual(want, log.get()) && coordinator.ExitCode() == 0
		},
		gen.IntRange(1, 8),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

// **Property: Forced Termination**
// *For any* timeout shorter than a component's shutdown, the coordinator SHALL
// return near the timeout with exit code 1 and SHALL NOT start older components.
func TestPropertyShutdownTimeout(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("slow components force exit code 1", prop.ForAll(
		func(ms int64) bool {
			timeout := time.Duration(ms) * time.Millisecond
			coordinator := NewCoordinator(WithTimeout(timeout))

			older := NewMockComponent("store", 0, false)
			slow := NewMockComponent("generator", timeout*10, false)
			coordinator.Register(older)
			coordinator.Register(slow)

			start := time.Now()
			coordinator.Shutdown()
			coordinator.Wait()
			elapsed := time.Since(start)

			return elapsed < timeout+200*time.Millisecond &&
				coordinator.ExitCode() == 1 &&
				slow.ShutdownCount() == 1 &&
				older.ShutdownCount() == 0
		},
		gen.Int64Range(20, 100),
	))

	properties.TestingRun(t)
}

func TestShutdownIsIdempotent(t *testing.T) {
	coordinator := NewCoordinator(WithTimeout(time.Second))
	comp := NewMockComponent("api", 5*time.Millisecond, false)
	coordinator.Register(comp)

	coordinator.Shutdown()
	coordinator.Shutdown()
	coordinator.Shutdown()
	coordinator.Wait()

	assert.Equal(t, 1, comp.ShutdownCount())
	assert.Equal(t, 0, coordinator.ExitCode())
}

func TestWaitForSignal(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	coordinator := NewCoordinator(WithTimeout(time.Second), WithSignalChannel(sigCh))
	comp := NewMockComponent("api", 0, false)
	coordinator.Register(comp)

	done := make(chan struct{})
	go func() {
		coordinator.WaitForSignal(context.Background())
		close(done)
	}()

	sigCh <- os.Interrupt
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete after signal")
	}
	assert.Equal(t, 1, comp.ShutdownCount())
}

func TestWaitForSignalHonoursContext(t *testing.T) {
	coordinator := NewCoordinator(WithTimeout(time.Second), WithSignalChannel(make(chan os.Signal)))
	comp := NewMockComponent("grpc", 0, false)
	coordinator.Register(comp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	coordinator.WaitForSignal(ctx)
	coordinator.Wait()

	assert.Equal(t, 1, comp.ShutdownCount())
}

type blockingStopper struct {
	release chan struct{}
}

func (b *blockingStopper) Stop() { <-b.release }

func TestStopperComponentRespectsDeadline(t *testing.T) {
	stopper := &blockingStopper{release: make(chan struct{})}
	defer close(stopper.release)

	comp := NewStopperComponent("generator", stopper)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, comp.Shutdown(ctx), context.DeadlineExceeded)
	assert.Equal(t, "generator", comp.Name())
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestCloserAndFuncComponents(t *testing.T) {
	var closed, called bool
	closer := NewCloserComponent("store", closerFunc(func() error { closed = true; return nil }))
	fn := NewFuncComponent("api", func(ctx context.Context) error { called = true; return nil })

	assert.NoError(t, closer.Shutdown(context.Background()))
	assert.NoError(t, fn.Shutdown(context.Background()))
	assert.True(t, closed)
	assert.True(t, called)
}
