package adapter

import (
	"context"

	"github.com/everstacklabs/modelprice/internal/model"
)

// Adapter fetches priced model records from one upstream source.
type Adapter interface {
	// Name returns the source name (e.g., "openrouter").
	Name() string
	// DisplayName returns the human-readable source name (e.g., "OpenRouter").
	DisplayName() string
	// Fetch returns every model the source currently lists.
	// Adapters bound their own I/O; the orchestrator never times them out.
	Fetch(ctx context.Context) ([]model.Record, error)
}

// HealthChecker is an optional interface adapters can implement for
// post-fetch model count validation.
type HealthChecker interface {
	// MinExpectedModels returns the minimum number of models expected from this source.
	// A fetch result below this threshold signals a data quality issue.
	MinExpectedModels() int
}
