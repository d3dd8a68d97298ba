// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the ingestion pipeline.
//
// The package is intentionally minimal:
//
//   - It exposes a narrow Backend interface focused on counters and duration
//     observations.
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metric calls are always safe even when no real
//     backend is configured.
//   - Concrete metric systems are isolated in subpackages (see prompush),
//     keeping the pipeline itself decoupled from any one of them.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveDuration records a duration-style value in seconds.
	ObserveDuration(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics stay optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)      {}
func (nopBackend) ObserveDuration(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                              { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordPhase measures one pipeline phase: latency plus a success/failure
// counter. Phases are "extract", "dimensions", "partition", "chunks",
// "archive".
func RecordPhase(phase string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"phase": phase, "status": status}
	backend.IncCounter("sepa_phase_total", 1, lbls)
	backend.ObserveDuration("sepa_phase_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given kind. Typical kinds
// mirror the run summary: "validated", "dropped_required", "orphaned",
// "fact_loaded", "archived".
func RecordRows(kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("sepa_rows_total", float64(delta), Labels{"kind": kind})
}

// RecordChunk counts one processed archive chunk with its outcome.
func RecordChunk(err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	backend.IncCounter("sepa_chunks_total", 1, Labels{"status": status})
}
