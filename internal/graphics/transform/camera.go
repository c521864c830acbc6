// Package transform builds the view, projection and shadow matrices of a frame.
// Matrices follow mgl32's column-vector convention: VP = Projection * View and
// translations live in column 3.
package transform

import (
	"math"

	"mini-gfx/internal/scene"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultFOV  = float32(math.Pi / 3)
	DefaultNear = float32(1)
	DefaultFar  = float32(100)
)

var (
	DefaultEye    = mgl32.Vec3{0, -5, 0}
	DefaultTarget = mgl32.Vec3{0, 0, 0}
	DefaultUp     = mgl32.Vec3{0, 0, 1}
)

// Camera holds the camera constants of one tick
type Camera struct {
	Position   mgl32.Vec4
	View       mgl32.Mat4
	Projection mgl32.Mat4
	// World is the camera-to-world transform
	World mgl32.Mat4
	// HasNode is false when the default camera is in use
	HasNode bool

	AspectRatio float32
	FOV         float32
	Near        float32
	Far         float32
	// FallbackFOV is set when a non-perspective camera was rendered with DefaultFOV
	FallbackFOV bool
}

// CameraMatrices resolves the active camera of s. aspect is the current output
// width/height, read at call time so resizes apply on the next frame.
func CameraMatrices(s *scene.Snapshot, aspect float32) Camera {
	c := Camera{
		AspectRatio: aspect,
		FOV:         DefaultFOV,
		Near:        DefaultNear,
		Far:         DefaultFar,
	}

	var node *scene.Node
	if s != nil {
		node, c.HasNode = s.FirstCameraNode()
	}

	if c.HasNode {
		c.World = node.CalculatedTransform()
		c.View = c.World.Inv()
		c.Position = c.World.Col(3)
		if obj, ok := s.Camera(node.Object); ok {
			c.Near, c.Far = obj.Near, obj.Far
			if obj.Type == scene.CameraPerspective {
				c.FOV = obj.FOV
			} else {
				c.FallbackFOV = true
			}
		}
	} else {
		c.View = LookAt(DefaultEye, DefaultTarget, DefaultUp)
		c.World = c.View.Inv()
		c.Position = DefaultEye.Vec4(1)
	}

	c.Projection = mgl32.Perspective(c.FOV, c.AspectRatio, c.Near, c.Far)
	return c
}

// LookAt builds a right-handed view matrix
func LookAt(eye, target, up mgl32.Vec3) mgl32.Mat4 {
	return mgl32.LookAtV(eye, target, up)
}
