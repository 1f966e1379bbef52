// Package metrics defines the engine's instrumentation as an explicit
// collaborator. Components receive a *Metrics through their constructors;
// nothing registers against a process-global default.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the storage engine's counters and histograms, registered on
// a caller-supplied prometheus registry.
type Metrics struct {
	ChunksStored    prometheus.Counter
	DedupHits       prometheus.Counter
	BytesWritten    prometheus.Counter
	FilesFinalized  prometheus.Counter
	SyncRequests    prometheus.Counter
	UploadSeconds   prometheus.Histogram
	FinalizeSeconds prometheus.Histogram
}

// New registers the engine metrics on reg and returns the handle. Passing a
// fresh registry per engine keeps tests and multi-instance embeddings
// isolated.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChunksStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chunksync", Name: "chunks_stored_total",
			Help: "Chunk payloads written to the blob store.",
		}),
		DedupHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chunksync", Name: "chunk_dedup_hits_total",
			Help: "Chunk uploads skipped because the digest was already stored.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chunksync", Name: "chunk_bytes_written_total",
			Help: "Raw bytes written to the blob store.",
		}),
		FilesFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chunksync", Name: "files_finalized_total",
			Help: "Successful file finalizations.",
		}),
		SyncRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chunksync", Name: "sync_requests_total",
			Help: "Sync probes served.",
		}),
		UploadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chunksync", Name: "chunk_upload_seconds",
			Help:    "Latency of single-chunk uploads.",
			Buckets: prometheus.DefBuckets,
		}),
		FinalizeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chunksync", Name: "file_finalize_seconds",
			Help:    "Latency of file finalization.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.ChunksStored, m.DedupHits, m.BytesWritten,
		m.FilesFinalized, m.SyncRequests,
		m.UploadSeconds, m.FinalizeSeconds,
	)
	return m
}

// NewUnregistered returns a Metrics whose collectors are registered only on
// a fresh private registry that nothing scrapes. Useful for tests and for
// embedders that do not scrape.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
