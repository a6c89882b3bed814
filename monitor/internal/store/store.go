package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pulsewatch/pulsewatch/monitor/internal/compute"
)

// Entry is the state held for one source.
type Entry struct {
	SourceID string

	// Snapshot is the last snapshot that passed validation, fetched at
	// SnapshotAt. Zero until the first valid fetch.
	Snapshot   compute.Snapshot
	SnapshotAt time.Time

	// Report is the last published report. Stale is set when it was
	// computed from a reused snapshot after a failed fetch.
	Report    compute.Report
	ReportAt  time.Time
	Stale     bool
	HasReport bool
}

// Store is a thread-safe in-memory store, keyed by source ID.
// A background goroutine (Run) periodically evicts entries that have not
// been updated within the configured TTL.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL. A TTL <= 0 disables snapshot
// reuse and eviction.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *Store) entry(id string) *Entry {
	e, ok := s.data[id]
	if !ok {
		e = &Entry{SourceID: id}
		s.data[id] = e
	}
	return e
}

// PutSnapshot records snap as the last valid snapshot of source id.
// Callers must not modify snap's endpoint map after calling PutSnapshot.
func (s *Store) PutSnapshot(id string, snap compute.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(id)
	e.Snapshot = snap
	e.SnapshotAt = s.now()
}

// PutReport records the report published for source id.
func (s *Store) PutReport(id string, r compute.Report, stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(id)
	e.Report = r
	e.ReportAt = s.now()
	e.Stale = stale
	e.HasReport = true
}

// Get returns a copy of the Entry for the given source ID and a boolean
// indicating whether an entry was found.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Fallback returns the last valid snapshot of source id and the time it
// was fetched, provided it is younger than the TTL.
func (s *Store) Fallback(id string) (compute.Snapshot, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	if !ok || e.SnapshotAt.IsZero() || s.ttl <= 0 {
		return compute.Snapshot{}, time.Time{}, false
	}
	if !e.SnapshotAt.After(s.now().Add(-s.ttl)) {
		return compute.Snapshot{}, time.Time{}, false
	}
	return e.Snapshot, e.SnapshotAt, true
}

// List returns copies of all entries that have a published report,
// ordered by source ID.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.data))
	for _, e := range s.data {
		if e.HasReport {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

// Count returns the total number of entries currently held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Retain drops every entry whose source ID is not in ids. It is called
// after a config reload removes sources. It returns the number removed.
func (s *Store) Retain(ids []string) int {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id := range s.data {
		if !keep[id] {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// lastUpdate is the most recent of the snapshot and report times.
func (e *Entry) lastUpdate() time.Time {
	if e.ReportAt.After(e.SnapshotAt) {
		return e.ReportAt
	}
	return e.SnapshotAt
}

// Evict removes entries with no snapshot and no report within the TTL of
// now. It returns the number of entries removed. A no-op when TTL <= 0.
func (s *Store) Evict(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.data {
		if !e.lastUpdate().After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL interval
// (minimum 1 second) and blocks until ctx is cancelled. Returns immediately
// when TTL <= 0.
func (s *Store) Run(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted idle sources", "count", n)
			}
		}
	}
}
