// Package metrics holds the Prometheus collectors of the deal engine. They
// register on the default registry, which /metrics serves.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DealsCreated counts placed orders by deal type
	DealsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deal_engine_deals_created_total",
		Help: "Total orders placed by deal type",
	}, []string{"deal_type"})

	// VersionTransitions counts negotiation events by kind
	VersionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deal_engine_version_transitions_total",
		Help: "Negotiation events by kind (proposed, accepted, rejected, updated, deleted)",
	}, []string{"event"})

	// VersionConflictRetries counts retries after a lost race for a version number
	VersionConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deal_engine_version_conflict_retries_total",
		Help: "Retries of create-new-version after a unique (deal_id, version) violation",
	})

	// SequenceNumbersIssued counts generated sequence numbers per domain
	SequenceNumbersIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deal_engine_sequence_numbers_issued_total",
		Help: "Sequence numbers generated by numbering domain",
	}, []string{"domain"})

	// StorageOperations counts object storage calls by operation and result
	StorageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deal_engine_storage_operations_total",
		Help: "Object storage operations by operation and result",
	}, []string{"operation", "result"})

	// PendingDeletions reports the size of the object deletion retry queue
	PendingDeletions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "deal_engine_pending_object_deletions",
		Help: "Storage objects waiting for a delete retry",
	})

	// CatalogProductsSynced counts warehouse products mirrored by the sync job
	CatalogProductsSynced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deal_engine_catalog_products_synced_total",
		Help: "Warehouse products copied into the local catalog by result",
	}, []string{"result"})

	// RequestDuration tracks HTTP latency by route pattern
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deal_engine_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Result labels a storage outcome
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
