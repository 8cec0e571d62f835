package gate

import "sync"

// Manager holds one Gate per model, created on first reference. Gates are
// never removed automatically — the worker supervisor drops a model's gate
// explicitly when it stops that worker.
type Manager struct {
	mu    sync.Mutex
	gates map[string]*Gate
}

// NewManager creates an empty gate registry.
func NewManager() *Manager {
	return &Manager{gates: make(map[string]*Gate)}
}

// GetOrCreate returns the Gate for modelID, creating it with maxSlots if it
// does not exist yet. maxSlots is ignored on subsequent calls — the slot
// ceiling is stable for the worker's lifetime per the worker-secret row.
func (m *Manager) GetOrCreate(modelID string, maxSlots int) *Gate {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.gates[modelID]; ok {
		return g
	}
	g := New(modelID, maxSlots)
	m.gates[modelID] = g
	return g
}

// Get returns the Gate for modelID, if one has been created.
func (m *Manager) Get(modelID string) (*Gate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gates[modelID]
	return g, ok
}

// Drop removes modelID's gate, called when its worker is stopped.
func (m *Manager) Drop(modelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.gates, modelID)
}

// Snapshots returns every currently tracked model's occupancy, used by the
// metrics broadcaster.
func (m *Manager) Snapshots() map[string]Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Snapshot, len(m.gates))
	for id, g := range m.gates {
		out[id] = g.Snapshot()
	}
	return out
}
