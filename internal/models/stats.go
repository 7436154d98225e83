package models

import "time"

// Stats is a point-in-time snapshot of generator activity.
type Stats struct {
	RequestCount  int       `json:"request_count"`
	ResourceCount int       `json:"resource_count"`
	LastURLs      []string  `json:"last_urls"`
	Running       bool      `json:"running"`
	DoHActive     bool      `json:"doh_active"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the snapshot.
func (s Stats) Clone() Stats {
	out := s
	out.LastURLs = append([]string(nil), s.LastURLs...)
	return out
}
