package transform

import (
	"fmt"
	"math"

	"mini-gfx/internal/scene"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// NoShadowMap marks a light that has no shadow map layer this frame
const NoShadowMap int32 = -1

// Light is one active light of a frame
type Light struct {
	Type scene.LightType
	ID   uint64
	// Position w is 0 for infinity lights
	Position   mgl32.Vec4
	Direction  mgl32.Vec4
	Color      mgl32.Vec4
	Intensity  float32
	CastShadow bool

	DistanceAttenuation scene.AttenCurve
	AngleAttenuation    scene.AttenCurve
	Size                mgl32.Vec2

	View       mgl32.Mat4
	Projection mgl32.Mat4
	VP         mgl32.Mat4

	// ShadowMapIndex is the layer assigned by the shadow pass
	ShadowMapIndex int32
}

// up vector substitutes used when the light looks almost straight up or down
var (
	directionalTiltedUp = mgl32.Vec3{0.1, 0.1, 1}
	localTiltedUp       = mgl32.Vec3{0, 0.707, 0.707}
)

const (
	directionalVerticalThreshold = 0.2
	localVerticalThreshold       = 0.1

	maxOrthoHalfExtent = 800
)

// LightMatrices computes the world-space parameters and shadow matrices of the
// light object obj placed by the node transform world.
func LightMatrices(world mgl32.Mat4, obj *scene.Light, cam Camera) (Light, error) {
	if obj == nil {
		return Light{}, fmt.Errorf("no light object")
	}

	l := Light{
		Type:                obj.Type,
		ID:                  obj.ID,
		Position:            world.Mul4x1(mgl32.Vec4{0, 0, 0, 1}),
		Color:               obj.Color,
		Intensity:           obj.Intensity,
		CastShadow:          obj.CastShadow,
		DistanceAttenuation: obj.DistanceAttenuation,
		Projection:          mgl32.Ident4(),
		ShadowMapIndex:      NoShadowMap,
	}
	dir := world.Mul4x1(mgl32.Vec4{0, 0, -1, 0}).Vec3()
	if dir.Len() == 0 {
		return Light{}, fmt.Errorf("light %d: degenerate direction", obj.ID)
	}
	dir = dir.Normalize()
	l.Direction = dir.Vec4(0)

	switch obj.Type {
	case scene.LightInfinity:
		up := upVector(dir, directionalVerticalThreshold, directionalTiltedUp)
		target := mgl32.Vec4{0, 0, 0, 1}
		if cam.HasNode {
			target = cam.World.Mul4x1(mgl32.Vec4{0, 0, -(0.75*cam.Near + 0.25*cam.Far), 1})
		}
		pos := target.Vec3().Sub(dir.Mul(cam.Far))
		l.View = LookAt(pos, target.Vec3(), up)
		h := math32.Min(0.25*cam.Far, maxOrthoHalfExtent)
		l.Projection = mgl32.Ortho(-h, h, -h, h, cam.Near, cam.Far+h)
		l.Position = pos.Vec4(0)

	case scene.LightSpot:
		half := obj.AngleAttenuation.Params[0]
		if half <= 0 || half >= math.Pi/2 {
			return Light{}, fmt.Errorf("light %d: spot cone half-angle %v out of range", obj.ID, half)
		}
		l.AngleAttenuation = obj.AngleAttenuation
		l.View = localView(l.Position.Vec3(), dir)
		l.Projection = mgl32.Perspective(2*half, 1, cam.Near, cam.Far)

	case scene.LightArea:
		l.Size = obj.Dimension
		l.View = localView(l.Position.Vec3(), dir)

	case scene.LightOmni:
		l.View = localView(l.Position.Vec3(), dir)
		l.Projection = mgl32.Perspective(math.Pi/2, 1, cam.Near, cam.Far)

	default:
		return Light{}, fmt.Errorf("light %d: unknown type %d", obj.ID, obj.Type)
	}

	l.VP = l.Projection.Mul4(l.View)
	return l, nil
}

func localView(pos, dir mgl32.Vec3) mgl32.Mat4 {
	up := upVector(dir, localVerticalThreshold, localTiltedUp)
	return LookAt(pos, pos.Add(dir), up)
}

// upVector picks +Z unless dir is nearly parallel to it
func upVector(dir mgl32.Vec3, threshold float32, tilted mgl32.Vec3) mgl32.Vec3 {
	if math32.Abs(dir.X()) <= threshold && math32.Abs(dir.Y()) <= threshold {
		return tilted
	}
	return mgl32.Vec3{0, 0, 1}
}
