// Package store keeps the last known state of every monitored source in
// memory: the last snapshot that passed validation and the last report
// published for it. The snapshot doubles as the fallback the poller
// analyzes when a fresh fetch fails, for as long as it is younger than the
// configured TTL.
package store
