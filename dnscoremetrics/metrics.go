// Package dnscoremetrics holds the process-wide Prometheus collectors
// shared by the cache, zone transfer, and TSIG packages.
package dnscoremetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheOperations tracks cache hits/misses/evictions by result.
	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnscore_cache_operations_total",
		Help: "Total number of cache lookups by result",
	}, []string{"result"})

	// CacheSize tracks the live entry count.
	CacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dnscore_cache_entries",
		Help: "Number of live entries currently held in the cache",
	})

	// LookupOutcomes tracks zone/cache lookup outcomes by case.
	LookupOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnscore_lookup_outcomes_total",
		Help: "Total number of lookups by outcome",
	}, []string{"outcome"})

	// TransferDuration tracks AXFR/IXFR wall-clock duration.
	TransferDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dnscore_transfer_duration_seconds",
		Help:    "Histogram of zone transfer duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "result"})

	// TransferRecords tracks the number of records/deltas carried by a
	// completed transfer.
	TransferRecords = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dnscore_transfer_records",
		Help:    "Histogram of record counts per completed transfer",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"kind"})

	// TSIGVerifications tracks TSIG verify outcomes.
	TSIGVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnscore_tsig_verifications_total",
		Help: "Total number of TSIG verification attempts by result",
	}, []string{"result"})
)
