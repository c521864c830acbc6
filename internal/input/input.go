package input

import (
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// Action is a logical viewer command, not a physical key
type Action int

const (
	ActionQuit Action = iota
	ActionToggleStats
	ActionReloadScene
	ActionCount // Sentinel value for array sizing
)

// Manager maps physical keys to actions and tracks press edges per frame.
// Key events arrive on the GLFW callback; the render loop polls.
type Manager struct {
	mu sync.RWMutex

	// one key can trigger several actions
	keyToActions map[glfw.Key][]Action

	currentState [ActionCount]bool
	justPressed  [ActionCount]bool
}

// NewManager creates a manager with the default bindings
func NewManager() *Manager {
	m := &Manager{keyToActions: make(map[glfw.Key][]Action)}
	m.BindKey(glfw.KeyEscape, ActionQuit)
	m.BindKey(glfw.KeyV, ActionToggleStats)
	m.BindKey(glfw.KeyR, ActionReloadScene)
	return m
}

// BindKey adds action to the actions triggered by key
func (m *Manager) BindKey(key glfw.Key, action Action) {
	if action < 0 || action >= ActionCount {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyToActions[key] = append(m.keyToActions[key], action)
}

// UnbindKey removes all action bindings for a key
func (m *Manager) UnbindKey(key glfw.Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keyToActions, key)
}

// HandleKeyEvent updates the state of the actions bound to key
func (m *Manager) HandleKeyEvent(key glfw.Key, action glfw.Action) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pressed := action == glfw.Press || action == glfw.Repeat
	for _, act := range m.keyToActions[key] {
		// Detect edges immediately when event arrives
		if pressed && !m.currentState[act] {
			m.justPressed[act] = true
		}
		m.currentState[act] = pressed
	}
}

// SetKeyCallback routes the window's key events into m
func (m *Manager) SetKeyCallback(window *glfw.Window) {
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		m.HandleKeyEvent(key, action)
	})
}

// PostUpdate clears the press edges; call once at the end of each frame
func (m *Manager) PostUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.justPressed = [ActionCount]bool{}
}

// IsActive reports whether the action is held down
func (m *Manager) IsActive(action Action) bool {
	if action < 0 || action >= ActionCount {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentState[action]
}

// JustPressed reports whether the action was pressed during the current frame
func (m *Manager) JustPressed(action Action) bool {
	if action < 0 || action >= ActionCount {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.justPressed[action]
}
