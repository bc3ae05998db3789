package kdp

import "sync"

// Checkpointer stores the id of the last record read from each dataset so a
// sequential read can resume after it. Checkpoint returns "" for a dataset
// with no saved position.
type Checkpointer interface {
	Checkpoint(datasetID string) (string, error)
	SetCheckpoint(datasetID, recordID string) error
	Close() error
}

// MapCheckpointer is an in-memory Checkpointer.
type MapCheckpointer struct {
	mu  sync.RWMutex
	ids map[string]string
}

// NewMapCheckpointer returns an empty MapCheckpointer.
func NewMapCheckpointer() *MapCheckpointer {
	return &MapCheckpointer{ids: make(map[string]string)}
}

// Checkpoint implements Checkpointer.
func (m *MapCheckpointer) Checkpoint(datasetID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ids[datasetID], nil
}

// SetCheckpoint implements Checkpointer.
func (m *MapCheckpointer) SetCheckpoint(datasetID, recordID string) error {
	m.mu.Lock()
	m.ids[datasetID] = recordID
	m.mu.Unlock()
	return nil
}

// Close implements Checkpointer.
func (m *MapCheckpointer) Close() error { return nil }
