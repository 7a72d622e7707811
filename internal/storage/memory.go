package storage

import (
	"context"
	"sync"
)

// MemoryMetadata keeps run records in memory.
type MemoryMetadata struct {
	mu   sync.Mutex
	runs []RunRecord
}

var _ MetadataStore = (*MemoryMetadata)(nil)

func (m *MemoryMetadata) WriteRun(_ context.Context, run RunRecord) error {
	m.mu.Lock()
	m.runs = append(m.runs, run)
	m.mu.Unlock()
	return nil
}

// Runs returns the recorded runs in write order.
func (m *MemoryMetadata) Runs() []RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RunRecord(nil), m.runs...)
}
