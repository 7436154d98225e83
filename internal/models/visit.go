package models

import "time"

// Visit records a single page visit and the resources fetched alongside it.
type Visit struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	UserAgent string    `json:"user_agent"`
	Status    int       `json:"status"`
	Success   bool      `json:"success"`
	Resources []string  `json:"resources,omitempty"`
	Error     string    `json:"error,omitempty"`
	Duration  int64     `json:"duration_ms"`
	VisitedAt time.Time `json:"visited_at"`
}
