package domain

import (
	"fmt"
	"sort"
)

// HopKey addresses one cell of a hop-history matrix.
type HopKey struct {
	From, To int
}

// HistoryEntry is one non-zero cell of a hop-history matrix.
type HistoryEntry struct {
	From, To int
	Count    uint64
}

// HistoryMatrix is a sparse size×size count of hops between chromophores,
// stored as a coordinate map.
type HistoryMatrix struct {
	size  int
	cells map[HopKey]uint64
}

// NewHistoryMatrix creates an empty matrix for size chromophores.
func NewHistoryMatrix(size int) *HistoryMatrix {
	return &HistoryMatrix{size: size, cells: make(map[HopKey]uint64)}
}

// HistoryFromEntries rebuilds a matrix from its non-zero cells.
func HistoryFromEntries(size int, entries []HistoryEntry) (*HistoryMatrix, error) {
	h := NewHistoryMatrix(size)
	for _, entry := range entries {
		if !h.inBounds(entry.From, entry.To) {
			return nil, fmt.Errorf("history cell (%d, %d) outside %dx%d", entry.From, entry.To, size, size)
		}
		if entry.Count == 0 {
			continue
		}
		h.cells[HopKey{From: entry.From, To: entry.To}] += entry.Count
	}
	return h, nil
}

// Size returns the matrix dimension.
func (h *HistoryMatrix) Size() int {
	if h == nil {
		return 0
	}
	return h.size
}

// Increment adds one hop from -> to.
func (h *HistoryMatrix) Increment(from, to int) {
	if h == nil {
		return
	}
	if !h.inBounds(from, to) {
		panic(fmt.Sprintf("history cell (%d, %d) outside %dx%d", from, to, h.size, h.size))
	}
	h.cells[HopKey{From: from, To: to}]++
}

// At returns the count stored at (from, to).
func (h *HistoryMatrix) At(from, to int) uint64 {
	if h == nil {
		return 0
	}
	return h.cells[HopKey{From: from, To: to}]
}

// RowSum returns the number of hops that started at from.
func (h *HistoryMatrix) RowSum(from int) uint64 {
	if h == nil {
		return 0
	}
	var total uint64
	for key, count := range h.cells {
		if key.From == from {
			total += count
		}
	}
	return total
}

// Total returns the number of recorded hops.
func (h *HistoryMatrix) Total() uint64 {
	if h == nil {
		return 0
	}
	var total uint64
	for _, count := range h.cells {
		total += count
	}
	return total
}

// NonZero returns the number of populated cells.
func (h *HistoryMatrix) NonZero() int {
	if h == nil {
		return 0
	}
	return len(h.cells)
}

// Add folds other into h elementwise.
func (h *HistoryMatrix) Add(other *HistoryMatrix) error {
	if h == nil || other == nil {
		return nil
	}
	if h.size != other.size {
		return fmt.Errorf("history size mismatch: %d != %d", h.size, other.size)
	}
	for key, count := range other.cells {
		h.cells[key] += count
	}
	return nil
}

// Subtract removes other from h elementwise. It fails without modifying h
// when any cell of other exceeds the matching cell of h.
func (h *HistoryMatrix) Subtract(other *HistoryMatrix) error {
	if other.NonZero() == 0 {
		return nil
	}
	if h == nil {
		return fmt.Errorf("cannot subtract %d hops from an absent history", other.Total())
	}
	if h.size != other.size {
		return fmt.Errorf("history size mismatch: %d != %d", h.size, other.size)
	}
	for key, count := range other.cells {
		if h.cells[key] < count {
			return fmt.Errorf("history cell (%d, %d) holds %d hops, cannot remove %d", key.From, key.To, h.cells[key], count)
		}
	}
	for key, count := range other.cells {
		if h.cells[key] -= count; h.cells[key] == 0 {
			delete(h.cells, key)
		}
	}
	return nil
}

// Clone returns an independent copy.
func (h *HistoryMatrix) Clone() *HistoryMatrix {
	if h == nil {
		return nil
	}
	clone := &HistoryMatrix{size: h.size, cells: make(map[HopKey]uint64, len(h.cells))}
	for key, count := range h.cells {
		clone.cells[key] = count
	}
	return clone
}

// Equal reports whether both matrices have the same size and cells.
func (h *HistoryMatrix) Equal(other *HistoryMatrix) bool {
	if h == nil || other == nil {
		return h.NonZero() == 0 && other.NonZero() == 0 && h.Size() == other.Size()
	}
	if h.size != other.size || len(h.cells) != len(other.cells) {
		return false
	}
	for key, count := range h.cells {
		if other.cells[key] != count {
			return false
		}
	}
	return true
}

// Entries returns the non-zero cells ordered by row, then column.
func (h *HistoryMatrix) Entries() []HistoryEntry {
	if h == nil {
		return nil
	}
	entries := make([]HistoryEntry, 0, len(h.cells))
	for key, count := range h.cells {
		entries = append(entries, HistoryEntry{From: key.From, To: key.To, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].From != entries[j].From {
			return entries[i].From < entries[j].From
		}
		return entries[i].To < entries[j].To
	})
	return entries
}

func (h *HistoryMatrix) inBounds(from, to int) bool {
	return from >= 0 && from < h.size && to >= 0 && to < h.size
}
