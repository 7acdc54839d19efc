// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nftmedia"

var (
	// VerificationPassesTotal tracks completed verification passes.
	// Labels:
	//   - result: valid, invalid, superseded
	VerificationPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_passes_total",
			Help:      "Total number of completed verification passes",
		},
		[]string{"result"},
	)

	// FetchAttemptsTotal tracks candidate URI fetch attempts.
	// Labels:
	//   - class: video, image, binary
	//   - status: valid, mismatch, error, invalid_uri
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Total number of candidate content fetch attempts",
		},
		[]string{"class", "status"},
	)

	// CacheOperationsTotal tracks persisted cache slot operations.
	// Labels:
	//   - slot: thumbnail, content, force_reload
	//   - operation: get, set
	//   - status: hit, miss, success, error
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of media cache operations",
		},
		[]string{"slot", "operation", "status"},
	)

	// SingleflightRequestsTotal tracks coalescing of concurrent verifies.
	// Labels:
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight verification requests",
		},
		[]string{"result"},
	)
)

// DBPoolStats is a snapshot of database connection pool occupancy.
type DBPoolStats struct {
	AcquiredConns int32
	IdleConns     int32
	TotalConns    int32
	MaxConns      int32
}

// RegisterDBPoolGauges exposes live connection pool gauges on the default
// registry. stat runs on every scrape and must be safe for concurrent use.
// Call it once per process; promauto panics on duplicate registration.
func RegisterDBPoolGauges(stat func() DBPoolStats) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_pool_acquired_conns",
		Help:      "Connections currently checked out of the pool",
	}, func() float64 { return float64(stat().AcquiredConns) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_pool_idle_conns",
		Help:      "Idle connections held open by the pool",
	}, func() float64 { return float64(stat().IdleConns) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_pool_total_conns",
		Help:      "Total connections managed by the pool",
	}, func() float64 { return float64(stat().TotalConns) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_pool_max_conns",
		Help:      "Configured connection ceiling of the pool",
	}, func() float64 { return float64(stat().MaxConns) })
}

// Verification pass result constants.
const (
	PassResultValid      = "valid"
	PassResultInvalid    = "invalid"
	PassResultSuperseded = "superseded"
)

// Fetch attempt status constants.
const (
	FetchStatusValid      = "valid"
	FetchStatusMismatch   = "mismatch"
	FetchStatusError      = "error"
	FetchStatusInvalidURI = "invalid_uri"
)

// Cache slot constants.
const (
	CacheSlotThumbnail   = "thumbnail"
	CacheSlotContent     = "content"
	CacheSlotForceReload = "force_reload"
)

// Cache operation constants.
const (
	CacheOpGet = "get"
	CacheOpSet = "set"
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)
