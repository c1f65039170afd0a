// Package keyindex implements the process-wide KeyIndex described in spec
// §3/§9: an engine-owned, lock-protected structure, constructed once during
// engine setup, with no implicit singleton (spec §9 "Process-wide
// KeyIndex"). It is the only component-wide mutable structure in the
// engine (spec §5 "Shared state & locking").
package keyindex

import (
	"sync"

	"github.com/deploymenttheory/ps3disc/internal/types"
)

// Index groups KeyRecords by decrypted_key_id. All insertions happen under
// a single exclusive lock taken around the entire batch of records from
// one provider call; readers take the same lock (spec §5).
type Index struct {
	mu      sync.RWMutex
	records map[string][]types.KeyRecord // decrypted_key_id -> group
	order   []string                     // first-seen order, for deterministic enumeration
}

// New returns an empty Index.
func New() *Index {
	return &Index{records: make(map[string][]types.KeyRecord)}
}

// AddBatch inserts every record from one provider call under a single
// exclusive lock, preserving enumeration order within and across batches.
func (idx *Index) AddBatch(batch []types.KeyRecord) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, rec := range batch {
		id := rec.DecryptedKeyID()
		if _, exists := idx.records[id]; !exists {
			idx.order = append(idx.order, id)
		}
		idx.records[id] = append(idx.records[id], rec)
	}
}

// KeyIDs returns every distinct decrypted_key_id currently indexed, in
// first-seen (enumeration) order. The slice is a copy; callers may not
// observe subsequent mutation.
func (idx *Index) KeyIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]string, len(idx.order))
	copy(out, idx.order)
	return out
}

// Records returns the KeyRecord group for a decrypted_key_id. Within a
// group all DecryptedKey values are identical (spec §3 KeyIndex
// invariant).
func (idx *Index) Records(keyID string) []types.KeyRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	group := idx.records[keyID]
	out := make([]types.KeyRecord, len(group))
	copy(out, group)
	return out
}

// Len returns the number of distinct key groups.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.order)
}
