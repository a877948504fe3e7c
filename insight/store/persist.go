package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/theimaginaryfoundation/ask-scriptures/insight"
)

// SnapshotVersion is written into every saved snapshot.
const SnapshotVersion = 1

// Snapshot is the complete persisted state.
type Snapshot struct {
	Version         int                 `json:"version"`
	Profile         insight.UserProfile `json:"profile"`
	Sessions        []ChatSession       `json:"sessions"`
	ActiveSessionID string              `json:"active_session_id,omitempty"`
}

// Persister loads and saves snapshots. Load reports found=false when nothing was saved yet.
type Persister interface {
	Load(ctx context.Context) (snap Snapshot, found bool, err error)
	Save(ctx context.Context, snap Snapshot) error
}

// NopPersister keeps nothing.
type NopPersister struct{}

func (NopPersister) Load(context.Context) (Snapshot, bool, error) { return Snapshot{}, false, nil }
func (NopPersister) Save(context.Context, Snapshot) error         { return nil }

// MemoryPersister keeps the last saved snapshot in memory as JSON.
type MemoryPersister struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

func (m *MemoryPersister) Load(context.Context) (Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return Snapshot{}, false, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(m.data, &snap); err != nil {
		return Snapshot{}, true, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

func (m *MemoryPersister) Save(_ context.Context, snap Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = b
	m.saves++
	return nil
}

// Saves reports how many snapshots were saved.
func (m *MemoryPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
