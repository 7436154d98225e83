package resolver

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/dns/dnsmessage"

	"github.com/narvanalabs/mocktraffic/internal/models"
)

const (
	// MinCacheTTL is the floor applied to record TTLs when caching answers.
	MinCacheTTL = 30 * time.Second

	maxDoHResponse = 64 * 1024

	mimeDNSMessage = "application/dns-message"
	mimeDNSJSON    = "application/dns-json"
)

// DoH errors.
var (
	ErrDNSFailure  = errors.New("dns query failed")
	ErrIDMismatch  = errors.New("dns response id mismatch")
	ErrBadProvider = errors.New("unsupported DoH provider format")
)

type cacheEntry struct {
	addrs   []string
	expires time.Time
}

// DoH resolves names against a DNS-over-HTTPS provider. The HTTP client used
// to reach the provider resolves through the system resolver.
type DoH struct {
	provider models.DoHProvider
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// DoHOption configures a DoH resolver.
type DoHOption func(*DoH)

// WithHTTPClient sets the bootstrap client used to reach the provider.
func WithHTTPClient(c *http.Client) DoHOption {
	return func(d *DoH) {
		d.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DoHOption {
	return func(d *DoH) {
		d.logger = logger
	}
}

// WithClock overrides the time source used for cache expiry.
func WithClock(now func() time.Time) DoHOption {
	return func(d *DoH) {
		d.now = now
	}
}

// NewDoH creates a resolver for provider.
func NewDoH(provider models.DoHProvider, opts ...DoHOption) *DoH {
	d := &DoH{
		provider: provider,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   slog.Default(),
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Provider returns the provider this resolver queries.
func (d *DoH) Provider() models.DoHProvider {
	return d.provider
}

// LookupHost resolves host to its A and AAAA addresses.
func (d *DoH) LookupHost(ctx context.Context, host string) ([]string, error) {
	host = strings.TrimSuffix(host, ".")
	if ip := net.ParseIP(host); ip != nil {
		return []string{host}, nil
	}

	if addrs, ok := d.cached(host); ok {
		return addrs, nil
	}

	var (
		addrs  []string
		minTTL uint32
		errs   []error
	)
	for _, qtype := range []dnsmessage.Type{dnsmessage.TypeA, dnsmessage.TypeAAAA} {
		found, ttl, err := d.query(ctx, host, qtype)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(found) > 0 && (minTTL == 0 || ttl < minTTL) {
			minTTL = ttl
		}
		addrs = append(addrs, found...)
	}

	if len(addrs) == 0 {
		if len(errs) > 0 {
			return nil, fmt.Errorf("doh lookup %s via %s: %w", host, d.provider.Name, errors.Join(errs...))
		}
		return nil, fmt.Errorf("doh lookup %s via %s: %w", host, d.provider.Name, ErrNoAddresses)
	}

	ttl := time.Duration(minTTL) * time.Second
	if ttl < MinCacheTTL {
		ttl = MinCacheTTL
	}
	d.store(host, addrs, ttl)

	d.logger.Debug("doh lookup", "host", host, "provider", d.provider.Name, "addrs", len(addrs), "ttl", ttl)
	return addrs, nil
}

func (d *DoH) cached(host string) ([]string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.cache[host]
	if !ok {
		return nil, false
	}
	if !d.now().Before(e.expires) {
		delete(d.cache, host)
		return nil, false
	}
	return append([]string(nil), e.addrs...), true
}

func (d *DoH) store(host string, addrs []string, ttl time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache[host] = cacheEntry{addrs: append([]string(nil), addrs...), expires: d.now().Add(ttl)}
}

func (d *DoH) query(ctx context.Context, host string, qtype dnsmessage.Type) ([]string, uint32, error) {
	switch d.provider.Format {
	case models.DoHFormatWire, "":
		return d.queryWire(ctx, host, qtype)
	case models.DoHFormatJSON:
		return d.queryJSON(ctx, host, qtype)
	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrBadProvider, d.provider.Format)
	}
}

// queryWire sends an RFC 8484 POST with a wireformat query.
func (d *DoH) queryWire(ctx context.Context, host string, qtype dnsmessage.Type) ([]string, uint32, error) {
	id, err := randomID()
	if err != nil {
		return nil, 0, err
	}
	msg, err := BuildQuery(id, host, qtype)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.provider.URL, bytes.NewReader(msg))
	if err != nil {
		return nil, 0, fmt.Errorf("creating doh request: %w", err)
	}
	req.Header.Set("Content-Type", mimeDNSMessage)
	req.Header.Set("Accept", mimeDNSMessage)

	body, err := d.do(req)
	if err != nil {
		return nil, 0, err
	}
	return ParseResponse(body, id)
}

// jsonResponse is the subset of the dns-json answer format that we read.
type jsonResponse struct {
	Status int `json:"Status"`
	Answer []struct {
		Type int    `json:"type"`
		TTL  uint32 `json:"TTL"`
		Data string `json:"data"`
	} `json:"Answer"`
}

// queryJSON sends a GET to a JSON API provider.
func (d *DoH) queryJSON(ctx context.Context, host string, qtype dnsmessage.Type) ([]string, uint32, error) {
	u, err := url.Parse(d.provider.URL)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing provider url: %w", err)
	}
	q := u.Query()
	q.Set("name", host)
	q.Set("type", fmt.Sprintf("%d", uint16(qtype)))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating doh request: %w", err)
	}
	req.Header.Set("Accept", mimeDNSJSON)

	body, err := d.do(req)
	if err != nil {
		return nil, 0, err
	}

	var resp jsonResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, fmt.Errorf("decoding doh json: %w", err)
	}
	if resp.Status != int(dnsmessage.RCodeSuccess) {
		return nil, 0, fmt.Errorf("%w: rcode %d", ErrDNSFailure, resp.Status)
	}

	var (
		addrs  []string
		minTTL uint32
	)
	for _, a := range resp.Answer {
		if a.Type != int(qtype) {
			continue
		}
		ip := net.ParseIP(a.Data)
		if ip == nil {
			continue
		}
		addrs = append(addrs, ip.String())
		if minTTL == 0 || a.TTL < minTTL {
			minTTL = a.TTL
		}
	}
	return addrs, minTTL, nil
}

func (d *DoH) do(req *http.Request) ([]byte, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("doh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("doh resolver returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDoHResponse))
	if err != nil {
		return nil, fmt.Errorf("reading doh response: %w", err)
	}
	return body, nil
}

// BuildQuery encodes a recursive query for host.
func BuildQuery(id uint16, host string, qtype dnsmessage.Type) ([]byte, error) {
	name, err := dnsmessage.NewName(fqdn(host))
	if err != nil {
		return nil, fmt.Errorf("encoding name %s: %w", host, err)
	}

	b := dnsmessage.NewBuilder(make([]byte, 0, 512), dnsmessage.Header{
		ID:               id,
		RecursionDesired: true,
	})
	b.EnableCompression()
	if err := b.StartQuestions(); err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	if err := b.Question(dnsmessage.Question{
		Name:  name,
		Type:  qtype,
		Class: dnsmessage.ClassINET,
	}); err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	msg, err := b.Finish()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return msg, nil
}

// ParseResponse extracts A and AAAA addresses and the smallest TTL among them.
func ParseResponse(msg []byte, wantID uint16) ([]string, uint32, error) {
	var p dnsmessage.Parser
	h, err := p.Start(msg)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing dns header: %w", err)
	}
	if h.ID != wantID {
		return nil, 0, ErrIDMismatch
	}
	if h.RCode != dnsmessage.RCodeSuccess {
		return nil, 0, fmt.Errorf("%w: %s", ErrDNSFailure, h.RCode)
	}
	if err := p.SkipAllQuestions(); err != nil {
		return nil, 0, fmt.Errorf("parsing dns questions: %w", err)
	}

	var (
		addrs  []string
		minTTL uint32
	)
	for {
		rh, err := p.AnswerHeader()
		if errors.Is(err, dnsmessage.ErrSectionDone) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("parsing dns answer: %w", err)
		}

		switch rh.Type {
		case dnsmessage.TypeA:
			r, err := p.AResource()
			if err != nil {
				return nil, 0, fmt.Errorf("parsing A record: %w", err)
			}
			addrs = append(addrs, net.IP(r.A[:]).String())
		case dnsmessage.TypeAAAA:
			r, err := p.AAAAResource()
			if err != nil {
				return nil, 0, fmt.Errorf("parsing AAAA record: %w", err)
			}
			addrs = append(addrs, net.IP(r.AAAA[:]).String())
		default:
			if err := p.SkipAnswer(); err != nil {
				return nil, 0, fmt.Errorf("skipping dns answer: %w", err)
			}
			continue
		}
		if minTTL == 0 || rh.TTL < minTTL {
			minTTL = rh.TTL
		}
	}
	return addrs, minTTL, nil
}

func fqdn(host string) string {
	if strings.HasSuffix(host, ".") {
		return host
	}
	return host + "."
}

func randomID() (uint16, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("generating query id: %w", err)
	}
	return binary.BigEndian.Uint16(b[:]), nil
}
