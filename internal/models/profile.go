package models

import (
	"math/rand/v2"
	"strings"
	"time"
)

// FallbackUserAgent is sent when a profile lists no user agents.
const FallbackUserAgent = "Mozilla/5.0"

// Profile is the static traffic profile: what to avoid, how to identify, and
// how long to wait for a response.
type Profile struct {
	BlacklistedURLs []string      `json:"blacklisted_urls"`
	UserAgents      []string      `json:"user_agents"`
	Timeout         time.Duration `json:"timeout"`
}

// IsBlacklisted reports whether url contains any blacklist entry.
func (p *Profile) IsBlacklisted(url string) bool {
	for _, entry := range p.BlacklistedURLs {
		if entry != "" && strings.Contains(url, entry) {
			return true
		}
	}
	return false
}

// RandomUserAgent picks a user agent uniformly from the profile.
func (p *Profile) RandomUserAgent(rng *rand.Rand) string {
	if len(p.UserAgents) == 0 {
		return FallbackUserAgent
	}
	return p.UserAgents[rng.IntN(len(p.UserAgents))]
}

// FilterTargets keeps the https, non-blacklisted URLs in order.
func (p *Profile) FilterTargets(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if strings.HasPrefix(u, "https://") && !p.IsBlacklisted(u) {
			out = append(out, u)
		}
	}
	return out
}
