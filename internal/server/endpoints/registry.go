package endpoints

import (
	"github.com/docfusion/docfusion/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// MaxUploadBytes caps document uploads (0 = DefaultMaxUploadBytes).
	MaxUploadBytes int64
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Processing
		&ProcessEndpoint{MaxUploadBytes: cfg.MaxUploadBytes},

		// Metrics
		&MetricsSummaryEndpoint{},
	}
}
