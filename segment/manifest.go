package segment

import (
	"sync"

	"github.com/google/btree"
)

// runEntry is one row of the manifest: a run's identity plus the
// record count Smallest orders by when picking the next merge group.
type runEntry struct {
	ID      RunID
	Records int64
}

// runEntryLess orders entries by record count so the btree can answer
// "smallest N runs" in O(N log R) instead of a full sort every pass.
func runEntryLess(a, b runEntry) bool {
	if a.Records != b.Records {
		return a.Records < b.Records
	}
	return a.ID < b.ID
}

// Manifest is the registry of runs currently live for a pass, ordered
// by record count (spec.md §4.6's pass planner repeatedly needs the
// smallest runs first to pick the cheapest K-way merge group).
// Grounded on DOMAIN STACK: github.com/google/btree's generic
// BTreeG, in the role it fills across the example pack as an
// in-memory ordered index (wal/reader.go, wal/writer.go's
// btree.NewG[partition.Record]) — the run-manifest equivalent of an
// LSM tree's level index.
type Manifest struct {
	mu   sync.Mutex
	tree *btree.BTreeG[runEntry]
	byID map[RunID]int64
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{tree: btree.NewG(32, runEntryLess), byID: make(map[RunID]int64)}
}

// Add registers a newly sealed run with its record count.
func (m *Manifest) Add(id RunID, records int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.ReplaceOrInsert(runEntry{ID: id, Records: records})
	m.byID[id] = records
}

// Remove drops a run from the manifest once it has been consumed by a
// merge pass.
func (m *Manifest) Remove(id RunID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if records, ok := m.byID[id]; ok {
		m.tree.Delete(runEntry{ID: id, Records: records})
		delete(m.byID, id)
	}
}

// Len returns the number of live runs.
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree.Len()
}

// Smallest returns up to n run IDs with the lowest record counts, the
// cheapest group to merge next in the smallest-K pass plan.
func (m *Manifest) Smallest(n int) []RunID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 {
		return nil
	}
	out := make([]RunID, 0, n)
	m.tree.Ascend(func(item runEntry) bool {
		out = append(out, item.ID)
		return len(out) < n
	})
	return out
}

// TotalRecords sums the record counts of every live run.
func (m *Manifest) TotalRecords() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, n := range m.byID {
		total += n
	}
	return total
}
