package physics

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// RigidBody is an opaque handle to a simulated body. NoBody means the node is
// not simulated and keeps its scene-graph transform.
type RigidBody uint64

const NoBody RigidBody = 0

// Physics exposes simulation results to the renderer
type Physics interface {
	// RigidBodyTransform returns the current world transform of the body
	RigidBodyTransform(body RigidBody) mgl32.Mat4
}

// Table is a Physics backed by a transform table that the simulation step
// writes into. Unknown bodies report identity.
type Table struct {
	mu     sync.RWMutex
	bodies map[RigidBody]mgl32.Mat4
	next   RigidBody
}

// NewTable creates an empty transform table
func NewTable() *Table {
	return &Table{bodies: make(map[RigidBody]mgl32.Mat4)}
}

// Create registers a new body with an initial transform
func (t *Table) Create(initial mgl32.Mat4) RigidBody {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.bodies[t.next] = initial
	return t.next
}

// Set stores the latest simulated transform for body
func (t *Table) Set(body RigidBody, m mgl32.Mat4) {
	t.mu.Lock()
	t.bodies[body] = m
	t.mu.Unlock()
}

// Remove forgets a body
func (t *Table) Remove(body RigidBody) {
	t.mu.Lock()
	delete(t.bodies, body)
	t.mu.Unlock()
}

func (t *Table) RigidBodyTransform(body RigidBody) mgl32.Mat4 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if m, ok := t.bodies[body]; ok {
		return m
	}
	return mgl32.Ident4()
}
