package validator

import (
	"sync"

	"github.com/atlas-desktop/strategy-validator/pkg/types"
)

// History retains the most recent validation records in a fixed-size
// ring. The oldest record is evicted when the ring is full.
type History struct {
	mu      sync.RWMutex
	records []*types.ValidationRecord
	byID    map[string]*types.ValidationRecord
	head    int
	count   int
}

// NewHistory creates a history ring holding up to size records.
func NewHistory(size int) *History {
	if size <= 0 {
		size = 1000
	}
	return &History{
		records: make([]*types.ValidationRecord, size),
		byID:    make(map[string]*types.ValidationRecord, size),
	}
}

// Add stores a record, evicting the oldest when full.
func (h *History) Add(record *types.ValidationRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old := h.records[h.head]; old != nil {
		delete(h.byID, old.ID)
	}
	h.records[h.head] = record
	h.byID[record.ID] = record
	h.head = (h.head + 1) % len(h.records)
	if h.count < len(h.records) {
		h.count++
	}
}

// Get returns the record with the given ID, or nil.
func (h *History) Get(id string) *types.ValidationRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byID[id]
}

// Recent returns up to limit records, newest first. limit <= 0 returns
// everything retained.
func (h *History) Recent(limit int) []*types.ValidationRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.count
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]*types.ValidationRecord, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.head - 1 - i + len(h.records)*2) % len(h.records)
		out = append(out, h.records[idx])
	}
	return out
}

// Len returns the number of retained records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}
