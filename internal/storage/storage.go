// Package storage provides the persistence collaborators for the ledger.
// Each backend loads and saves whole snapshots; none of them interpret
// the records.
package storage

import (
	"context"
	"sync"

	"mess/internal/core"
)

// Persister loads and saves ledger snapshots. Load reports found=false
// on first run, when nothing has been saved yet.
type Persister interface {
	Load(ctx context.Context) (snap core.Snapshot, found bool, err error)
	Save(ctx context.Context, snap core.Snapshot) error
}

// MemoryStore keeps the last saved snapshot in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	snap  core.Snapshot
	saved bool
	saves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (core.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return core.Snapshot{}, false, nil
	}
	return m.snap.Clone(), true, nil
}

func (m *MemoryStore) Save(_ context.Context, snap core.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap.Clone()
	m.saved = true
	m.saves++
	return nil
}

// Saves reports how many times Save has been called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
