// Package metrics provides lock-free counters and the validate latency
// histogram for the token engine.
//
// Counters sit on their own cache lines and are updated with atomic adds.
// The histogram has fixed microsecond-to-millisecond buckets ([LatencyBounds])
// plus an overflow bucket, and keeps a running sum of observed durations.
// Nothing on the write path allocates.
//
// Export lives in metrics/export and reads [Snapshot] values; this package
// performs no I/O and holds no global registry.
package metrics
