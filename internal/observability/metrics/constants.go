// Package metrics provides the Prometheus collectors for FallWatch.
package metrics

// Histogram bucket parameters.
const (
	BucketStart1ms  = 0.001
	BucketStart10ms = 0.01
	BucketFactor2   = 2
	BucketCount12   = 12
	BucketCount10   = 10
)

// Operation status labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
