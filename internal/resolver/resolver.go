// Package resolver provides host name resolution over DNS-over-HTTPS with a
// system resolver fallback, and HTTP clients that dial through either.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Resolution errors.
var (
	// ErrNoAddresses is returned when a lookup succeeds but yields no usable records.
	ErrNoAddresses = errors.New("no addresses found")
)

// Resolver resolves host names to IP address strings.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// System resolves through the operating system resolver.
type System struct {
	resolver *net.Resolver
}

// NewSystem returns a resolver backed by net.DefaultResolver.
func NewSystem() *System {
	return &System{resolver: net.DefaultResolver}
}

// LookupHost resolves host with the system resolver.
func (s *System) LookupHost(ctx context.Context, host string) ([]string, error) {
	addrs, err := s.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("system lookup %s: %w", host, err)
	}
	return addrs, nil
}

// Dialer dials TCP connections after resolving the host with Resolver.
type Dialer struct {
	Resolver Resolver
	Dialer   *net.Dialer
}

func (d *Dialer) netDialer() *net.Dialer {
	if d.Dialer != nil {
		return d.Dialer
	}
	return &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
}

// DialContext resolves the host part of addr and tries each address in order.
func (d *Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("splitting address %s: %w", addr, err)
	}

	dialer := d.netDialer()
	if net.ParseIP(host) != nil || d.Resolver == nil {
		return dialer.DialContext(ctx, network, addr)
	}

	addrs, err := d.Resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolving %s: %w", host, ErrNoAddresses)
	}

	var lastErr error
	for _, ip := range addrs {
		conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("dialing %s: %w", addr, lastErr)
}

// NewHTTPClient builds a client that resolves through r. The client keeps no
// cookies and follows the standard redirect policy. A nil r uses the system resolver.
func NewHTTPClient(r Resolver, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if r != nil {
		transport.DialContext = (&Dialer{Resolver: r}).DialContext
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// CloseIdle releases idle connections held by a client built with NewHTTPClient.
func CloseIdle(c *http.Client) {
	if c == nil {
		return
	}
	if t, ok := c.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}
