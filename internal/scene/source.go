package scene

import "sync"

// Source hands scenes to the renderer and tells it when the scene changed
type Source interface {
	HasChanged() bool
	Current() *Snapshot
	AcknowledgeRenderingQueued()
}

// Manager is a Source that holds the latest snapshot in memory. SetScene may be
// called from a loader goroutine; the renderer observes the change on its next tick.
type Manager struct {
	mu      sync.Mutex
	current *Snapshot
	changed bool

	// generation of current and of the last snapshot handed out by Current
	gen    uint64
	served uint64
}

// NewManager creates a manager holding an empty scene
func NewManager() *Manager {
	return &Manager{current: New()}
}

// SetScene replaces the current snapshot and raises the change flag
func (m *Manager) SetScene(s *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = s
	m.changed = true
	m.gen++
}

func (m *Manager) HasChanged() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

func (m *Manager) Current() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.served = m.gen
	return m.current
}

// AcknowledgeRenderingQueued clears the change flag. A scene set after the last
// Current call stays pending.
func (m *Manager) AcknowledgeRenderingQueued() {
	m.mu.Lock()
	if m.served == m.gen {
		m.changed = false
	}
	m.mu.Unlock()
}
