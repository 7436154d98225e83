package memory

import (
	"fmt"

	"github.com/narvanalabs/mocktraffic/internal/store"
)

var errClosed = fmt.Errorf("memory store is closed: %w", store.ErrUnavailable)
