package main

import (
	"sync"

	"mini-gfx/internal/physics"

	"github.com/go-gl/mathgl/mgl32"
)

// spinner stands in for a simulation: every body created by the scene loader
// turns about its own Z axis.
type spinner struct {
	*physics.Table

	mu      sync.Mutex
	initial map[physics.RigidBody]mgl32.Mat4
}

func newSpinner() *spinner {
	return &spinner{Table: physics.NewTable(), initial: make(map[physics.RigidBody]mgl32.Mat4)}
}

// Create is called from the scene watcher goroutine
func (s *spinner) Create(initial mgl32.Mat4) physics.RigidBody {
	body := s.Table.Create(initial)
	s.mu.Lock()
	s.initial[body] = initial
	s.mu.Unlock()
	return body
}

// step writes the transforms for time t in seconds
func (s *spinner) step(t float64) {
	rot := mgl32.HomogRotate3DZ(float32(t) * 0.8)
	s.mu.Lock()
	defer s.mu.Unlock()
	for body, m := range s.initial {
		s.Table.Set(body, m.Mul4(rot))
	}
}
