package traffic

import (
	"math/rand/v2"
	"time"
)

// Scheduling and fetch limits.
const (
	MinDelay  = 3 * time.Second
	MaxDelay  = 25 * time.Second
	BaseDelay = 10 * time.Second

	// The variation is drawn from [-2000, +5000) milliseconds.
	variationSpanMS  = 7000
	variationShiftMS = 2000

	MaxLastURLs     = 5
	MaxResources    = 3
	MaxResourceSize = 1_000_000

	// maxPageSize bounds how much of a page body is parsed for resources.
	maxPageSize = 5 << 20
)

// NextDelay returns the wait before the next visit.
func NextDelay(rng *rand.Rand) time.Duration {
	variation := time.Duration(rng.IntN(variationSpanMS)-variationShiftMS) * time.Millisecond
	return clampDelay(BaseDelay + variation)
}

func clampDelay(d time.Duration) time.Duration {
	return max(MinDelay, min(MaxDelay, d))
}
