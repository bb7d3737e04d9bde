package config

import "time"

// Default runtime limits and guardrails for the MCP Clickstream Analysis Server.
// These values are conservative and can be overridden by future configuration
// mechanisms (env, CLI, or files). They are referenced by internal/runtime.

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 10
	DefaultMaxOpenDatasets       = 4

	// Payload and row limits
	DefaultMaxPayloadBytes = 128 * 1024 // 128KB
	DefaultMaxRowsPerOp    = 250_000
	DefaultPreviewRowLimit = 100
)

const (
	// Timeouts
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second

	// Dataset handle lifecycle
	DefaultDatasetIdleTTL       = 10 * time.Minute
	DefaultDatasetCleanupPeriod = time.Minute
)

// Analysis defaults. Front ends pass these through unless a caller overrides
// them; the core treats all of them as plain parameters.
const (
	DefaultTopSequences = 10
)

// DefaultFunnelSteps is the GA4-style conversion path used when a caller does
// not configure steps of their own.
func DefaultFunnelSteps() []string {
	return []string{"session_start", "page_view", "add_to_cart", "purchase"}
}

// DefaultBucketBounds returns the engagement-time bin edges in seconds.
// Bins are right-closed with the lowest bound inclusive.
func DefaultBucketBounds() []float64 {
	return []float64{0, 10, 30, 60, 120, 300}
}

// DefaultBucketLabels returns the display labels paired with DefaultBucketBounds.
func DefaultBucketLabels() []string {
	return []string{"0-10s", "10-30s", "30-60s", "60-120s", "120s+"}
}
