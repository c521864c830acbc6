package scene

import (
	"fmt"

	"mini-gfx/internal/physics"

	"github.com/go-gl/mathgl/mgl32"
)

// NodeID addresses a node inside a Snapshot's node arena. IDs are only valid
// for the snapshot that issued them.
type NodeID int

const NoNode NodeID = -1

// NodeKind tells which object table a node's Object key refers to
type NodeKind int

const (
	NodeEmpty NodeKind = iota
	NodeGeometry
	NodeLight
	NodeCamera
)

// Node is one entry of the scene graph
type Node struct {
	Name   string
	Kind   NodeKind
	Parent NodeID
	// Transform is relative to Parent
	Transform mgl32.Mat4
	Visible   bool
	// Object is the key of the geometry, light or camera object
	Object string
	// Materials maps an index group's material index to a material key
	Materials []string
	RigidBody physics.RigidBody

	world mgl32.Mat4
}

// CalculatedTransform returns the world transform computed by UpdateTransforms
func (n *Node) CalculatedTransform() mgl32.Mat4 {
	return n.world
}

// MaterialRef returns the material key bound to a material index, or "" if none
func (n *Node) MaterialRef(index int) string {
	if index < 0 || index >= len(n.Materials) {
		return ""
	}
	return n.Materials[index]
}

// Snapshot is a read-only view of a scene handed to the renderer
type Snapshot struct {
	Nodes []Node

	GeometryNodes []NodeID
	LightNodes    []NodeID
	CameraNodes   []NodeID

	Geometries map[string]*Geometry
	Lights     map[string]*Light
	Cameras    map[string]*Camera
	Materials  map[string]*Material

	SkyBox  *SkyBox
	Terrain *Terrain
}

// New creates an empty snapshot
func New() *Snapshot {
	return &Snapshot{
		Geometries: make(map[string]*Geometry),
		Lights:     make(map[string]*Light),
		Cameras:    make(map[string]*Camera),
		Materials:  make(map[string]*Material),
	}
}

// AddNode appends a node to the arena and indexes it by kind
func (s *Snapshot) AddNode(n Node) NodeID {
	id := NodeID(len(s.Nodes))
	if n.Transform == (mgl32.Mat4{}) {
		n.Transform = mgl32.Ident4()
	}
	n.world = n.Transform
	s.Nodes = append(s.Nodes, n)
	switch n.Kind {
	case NodeGeometry:
		s.GeometryNodes = append(s.GeometryNodes, id)
	case NodeLight:
		s.LightNodes = append(s.LightNodes, id)
	case NodeCamera:
		s.CameraNodes = append(s.CameraNodes, id)
	}
	return id
}

// Node resolves an ID
func (s *Snapshot) Node(id NodeID) (*Node, bool) {
	if id < 0 || int(id) >= len(s.Nodes) {
		return nil, false
	}
	return &s.Nodes[id], true
}

// FirstCameraNode returns the active camera node, if any
func (s *Snapshot) FirstCameraNode() (*Node, bool) {
	for _, id := range s.CameraNodes {
		if n, ok := s.Node(id); ok {
			return n, true
		}
	}
	return nil, false
}

func (s *Snapshot) Geometry(key string) (*Geometry, bool) {
	g, ok := s.Geometries[key]
	return g, ok && g != nil
}

func (s *Snapshot) Light(key string) (*Light, bool) {
	l, ok := s.Lights[key]
	return l, ok && l != nil
}

func (s *Snapshot) Camera(key string) (*Camera, bool) {
	c, ok := s.Cameras[key]
	return c, ok && c != nil
}

func (s *Snapshot) Material(key string) (*Material, bool) {
	m, ok := s.Materials[key]
	return m, ok && m != nil
}

// UpdateTransforms computes every node's world transform from its parent chain
func (s *Snapshot) UpdateTransforms() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]uint8, len(s.Nodes))

	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("scene graph cycle at node %q", s.Nodes[id].Name)
		}
		state[id] = visiting
		n := &s.Nodes[id]
		n.world = n.Transform
		if n.Parent != NoNode {
			if _, ok := s.Node(n.Parent); !ok {
				return fmt.Errorf("node %q has unknown parent %d", n.Name, n.Parent)
			}
			if err := visit(n.Parent); err != nil {
				return err
			}
			n.world = s.Nodes[n.Parent].world.Mul4(n.Transform)
		}
		state[id] = done
		return nil
	}

	for i := range s.Nodes {
		if err := visit(NodeID(i)); err != nil {
			return err
		}
	}
	return nil
}
