// Package metrics provides Prometheus collectors for the freshness ledger.
package metrics

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Detection outcome label values.
const (
	OutcomeAccepted       = "accepted"
	OutcomeBelowThreshold = "below_threshold"
	OutcomeInvalidLabel   = "invalid_label"
)

// Histogram bucket parameters.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketFactor2 doubles each bucket.
	BucketFactor2 = 2
	// BucketCount12 covers 1ms to ~2s.
	BucketCount12 = 12
)
