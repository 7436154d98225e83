// Package models defines the data types shared by the store, the traffic
// generator and the API.
package models

// DoHFormat identifies the request/response encoding a DoH provider speaks.
type DoHFormat string

const (
	// DoHFormatWire is RFC 8484 application/dns-message.
	DoHFormatWire DoHFormat = "wire"
	// DoHFormatJSON is the JSON API served at dns.google/resolve.
	DoHFormatJSON DoHFormat = "json"
)

// DoHProvider is a DNS-over-HTTPS resolver endpoint.
type DoHProvider struct {
	Name   string    `json:"name"`
	URL    string    `json:"url"`
	Format DoHFormat `json:"format"`
}

// DoHProviders is the set of selectable providers. The first entry is the default.
var DoHProviders = []DoHProvider{
	{Name: "Google DNS", URL: "https://dns.google/resolve", Format: DoHFormatJSON},
	{Name: "Cloudflare DNS", URL: "https://cloudflare-dns.com/dns-query", Format: DoHFormatWire},
	{Name: "Quad9 DNS", URL: "https://dns.quad9.net/dns-query", Format: DoHFormatWire},
}

// DefaultDoHProvider returns the provider used when none has been selected.
func DefaultDoHProvider() DoHProvider {
	return DoHProviders[0]
}

// LookupDoHProvider returns the built-in provider with the given URL.
func LookupDoHProvider(url string) (DoHProvider, bool) {
	for _, p := range DoHProviders {
		if p.URL == url {
			return p, true
		}
	}
	return DoHProvider{}, false
}
