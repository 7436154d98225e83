package models

// Preferences is the user-controlled state of the generator.
type Preferences struct {
	TrafficEnabled bool     `json:"traffic_enabled"`
	DoHEnabled     bool     `json:"doh_enabled"`
	DoHProvider    string   `json:"doh_provider"`
	URLs           []string `json:"urls"`
	RequestCount   int      `json:"request_count"`
}
