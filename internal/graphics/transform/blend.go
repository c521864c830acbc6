package transform

import (
	"math"

	"mini-gfx/internal/physics"

	"github.com/go-gl/mathgl/mgl32"
)

// BlendModelMatrix returns the model matrix of a drawable. Simulated bodies take
// rotation and translation from physics and drop any scene-graph scale; other
// nodes keep their scene-graph world transform.
func BlendModelMatrix(sceneWorld mgl32.Mat4, body physics.RigidBody, p physics.Physics) mgl32.Mat4 {
	if body == physics.NoBody || p == nil {
		return sceneWorld
	}
	sim := p.RigidBodyTransform(body)
	m := mgl32.Ident4()
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			m.Set(row, col, sim.At(row, col))
		}
	}
	m.SetCol(3, sim.Col(3))
	return m
}

// cube face look directions and up vectors, in +X -X +Y -Y +Z -Z order
var omniFaces = [6]struct{ dir, up mgl32.Vec3 }{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 0, -1}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, -1, 0}},
}

// OmniShadowMatrices returns the view-projection matrix of each cube face seen
// from pos. All faces share one 90 degree projection.
func OmniShadowMatrices(pos mgl32.Vec3, width, height int, near, far float32) [6]mgl32.Mat4 {
	proj := mgl32.Perspective(math.Pi/2, float32(width)/float32(height), near, far)
	var out [6]mgl32.Mat4
	for i, f := range omniFaces {
		out[i] = proj.Mul4(LookAt(pos, pos.Add(f.dir), f.up))
	}
	return out
}
