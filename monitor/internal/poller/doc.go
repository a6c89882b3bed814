// Package poller drives the monitor. On every tick it fetches a snapshot
// from each configured source concurrently, runs compute.Analyze on it and
// publishes the report to the store, the Prometheus gauges and the
// notifier.
//
// When a fetch fails or the snapshot is rejected, the last valid snapshot
// of that source is analyzed instead as long as it is younger than the
// store TTL, and the report is published as stale. Stale reports never
// trigger notifications.
package poller
