// Package metrics collects Prometheus instrumentation for the session
// orchestrator. All counters here are advisory, per-process diagnostics.
package metrics
