package index

import (
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
)

// StatusIndex is the authoritative in-memory map of relay statuses, keyed by
// identity. It is the only long-lived shared mutable state in the engine.
//
// Every write is an atomic per-key upsert: readers see either the previous
// entry or the new one, never a partially written status. Concurrent writers
// to the same key resolve as last-writer-wins.
type StatusIndex struct {
	mu         sync.RWMutex
	statuses   map[string]domain.RelayStatus // identity -> status
	lastUpdate time.Time
}

// NewStatusIndex creates an empty index.
func NewStatusIndex() *StatusIndex {
	return &StatusIndex{
		statuses: make(map[string]domain.RelayStatus),
	}
}

// Upsert stores status under its identity, replacing any previous entry.
func (idx *StatusIndex) Upsert(status domain.RelayStatus) {
	if status.Identity == "" {
		status.Identity = domain.Canonicalize(status.URL)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.statuses[status.Identity] = cloneStatus(status)
	idx.lastUpdate = time.Now()
}

// MarkTesting moves the entry for raw into the Testing state, keeping the
// previous latency and info so readers still have something to show.
func (idx *StatusIndex) MarkTesting(raw string) domain.RelayStatus {
	id := domain.Canonicalize(raw)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	status, ok := idx.statuses[id]
	if !ok {
		status = domain.NewRelayStatus(raw)
	}
	status.State = domain.StateTesting
	idx.statuses[id] = status
	idx.lastUpdate = time.Now()
	return cloneStatus(status)
}

// Ensure adds Unknown entries for relays not yet in the index.
func (idx *StatusIndex) Ensure(urls []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, raw := range urls {
		id := domain.Canonicalize(raw)
		if id == "" {
			continue
		}
		if _, ok := idx.statuses[id]; !ok {
			idx.statuses[id] = domain.NewRelayStatus(raw)
		}
	}
}

// Get returns a copy of the status for raw (any URL form).
func (idx *StatusIndex) Get(raw string) (domain.RelayStatus, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	status, ok := idx.statuses[domain.Canonicalize(raw)]
	return cloneStatus(status), ok
}

// Snapshot returns a copy of every status keyed by identity.
func (idx *StatusIndex) Snapshot() map[string]domain.RelayStatus {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[string]domain.RelayStatus, len(idx.statuses))
	for id, status := range idx.statuses {
		out[id] = cloneStatus(status)
	}
	return out
}

// List returns every status sorted by identity.
func (idx *StatusIndex) List() []domain.RelayStatus {
	idx.mu.RLock()
	list := make([]domain.RelayStatus, 0, len(idx.statuses))
	for _, status := range idx.statuses {
		list = append(list, cloneStatus(status))
	}
	idx.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Identity < list[j].Identity })
	return list
}

// Replace swaps in a full set of statuses (used when restoring from Redis).
func (idx *StatusIndex) Replace(statuses []domain.RelayStatus) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.statuses = make(map[string]domain.RelayStatus, len(statuses))
	for _, status := range statuses {
		if status.Identity == "" {
			status.Identity = domain.Canonicalize(status.URL)
		}
		idx.statuses[status.Identity] = cloneStatus(status)
	}
	idx.lastUpdate = time.Now()
}

// Delete removes the entry for raw.
func (idx *StatusIndex) Delete(raw string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.statuses, domain.Canonicalize(raw))
}

// Count returns the number of entries.
func (idx *StatusIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.statuses)
}

// CountByState returns how many entries sit in each state.
func (idx *StatusIndex) CountByState() map[domain.State]int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	counts := make(map[domain.State]int)
	for _, status := range idx.statuses {
		counts[status.State]++
	}
	return counts
}

// LastUpdate returns when the index was last written.
func (idx *StatusIndex) LastUpdate() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastUpdate
}

// cloneStatus copies the pointer fields so callers cannot mutate index state.
func cloneStatus(s domain.RelayStatus) domain.RelayStatus {
	if s.LatencyMS != nil {
		v := *s.LatencyMS
		s.LatencyMS = &v
	}
	if s.Info != nil {
		info := *s.Info
		s.Info = &info
	}
	return s
}
