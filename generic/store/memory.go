// Package store provides in-process LedgerStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory ledger (for testing/dev)
// =============================================================================

// Memory is a single-process LedgerStore. The SQL store is the production
// implementation; Memory gives generic tests a store without a database.
type Memory struct {
	mu          sync.RWMutex
	entries     map[generic.WorkerID][]generic.LedgerEntry
	idempotency map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		entries:     make(map[generic.WorkerID][]generic.LedgerEntry),
		idempotency: make(map[string]bool),
	}
}

// Append adds a single entry. Append-only.
func (m *Memory) Append(_ context.Context, e generic.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.IdempotencyKey != "" && m.idempotency[e.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	m.appendLocked(e)
	return nil
}

// AppendBatch adds multiple entries atomically: either all or none.
func (m *Memory) AppendBatch(_ context.Context, entries []generic.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[e.IdempotencyKey] || seen[e.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		seen[e.IdempotencyKey] = true
	}
	for _, e := range entries {
		m.appendLocked(e)
	}
	return nil
}

// appendLocked keeps each worker's entries sorted by EffectiveAt.
func (m *Memory) appendLocked(e generic.LedgerEntry) {
	list := m.entries[e.WorkerID]
	i := sort.Search(len(list), func(i int) bool {
		return list[i].EffectiveAt.After(e.EffectiveAt)
	})
	list = append(list, generic.LedgerEntry{})
	copy(list[i+1:], list[i:])
	list[i] = e
	m.entries[e.WorkerID] = list

	if e.IdempotencyKey != "" {
		m.idempotency[e.IdempotencyKey] = true
	}
}

func (m *Memory) LoadRange(_ context.Context, workerID generic.WorkerID, p generic.Period) ([]generic.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.LedgerEntry
	for _, e := range m.entries[workerID] {
		if p.Contains(e.EffectiveAt) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) LoadByShift(_ context.Context, shiftID generic.ShiftID) ([]generic.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.LedgerEntry
	for _, list := range m.entries {
		for _, e := range list {
			if e.ShiftID == shiftID {
				result = append(result, e)
			}
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].EffectiveAt.Before(result[j].EffectiveAt)
	})
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}
