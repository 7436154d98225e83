package shutdown

import (
	"context"
	"io"
)

// CloserComponent wraps an io.Closer, such as the store, for graceful shutdown.
type CloserComponent struct {
	name   string
	closer io.Closer
}

// NewCloserComponent creates a new closer shutdown component.
func NewCloserComponent(name string, closer io.Closer) *CloserComponent {
	return &CloserComponent{
		name:   name,
		closer: closer,
	}
}

// Name returns the component name.
func (c *CloserComponent) Name() string {
	return c.name
}

// Shutdown closes the underlying resource.
func (c *CloserComponent) Shutdown(ctx context.Context) error {
	return c.closer.Close()
}

// FuncComponent wraps a shutdown function as a component.
type FuncComponent struct {
	name string
	fn   func(ctx context.Context) error
}

// NewFuncComponent creates a new function-based shutdown component.
func NewFuncComponent(name string, fn func(ctx context.Context) error) *FuncComponent {
	return &FuncComponent{
		name: name,
		fn:   fn,
	}
}

// Name returns the component name.
func (c *FuncComponent) Name() string {
	return c.name
}

// Shutdown calls the wrapped function.
func (c *FuncComponent) Shutdown(ctx context.Context) error {
	return c.fn(ctx)
}

// Stopper is implemented by background loops that block in Stop until their
// in-flight work is done.
type Stopper interface {
	Stop()
}

// StopperComponent wraps a background loop for graceful shutdown.
type StopperComponent struct {
	name    string
	stopper Stopper
}

// NewStopperComponent creates a new loop shutdown component.
func NewStopperComponent(name string, stopper Stopper) *StopperComponent {
	return &StopperComponent{
		name:    name,
		stopper: stopper,
	}
}

// Name returns the component name.
func (c *StopperComponent) Name() string {
	return c.name
}

// Shutdown stops the loop, giving up when ctx is done.
func (c *StopperComponent) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.stopper.Stop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
