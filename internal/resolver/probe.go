package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Probe fetches probeURL through a client that resolves with r and reports
// whether the response was successful. It is used to decide whether a DoH
// provider is usable before switching traffic onto it.
func Probe(ctx context.Context, r Resolver, probeURL string, timeout time.Duration) error {
	client := NewHTTPClient(r, timeout)
	defer CloseIdle(client)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return fmt.Errorf("creating probe request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe returned HTTP %d", resp.StatusCode)
	}
	return nil
}
