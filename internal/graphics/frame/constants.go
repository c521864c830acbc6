package frame

import (
	"encoding/binary"
	"math"

	"mini-gfx/internal/graphics/transform"

	"github.com/go-gl/mathgl/mgl32"
)

// std140 block sizes in bytes
const (
	PerFrameSize = 160
	PerBatchSize = 64
	LightSize    = 192
	ShadowSize   = 96
)

// PerFrameConstants layout:
//
//	0   mat4  view
//	64  mat4  projection
//	128 vec4  camPos
//	144 int   numLights (+12 pad)
func PerFrameConstants(c *Context) []byte {
	w := newWriter(PerFrameSize)
	w.mat4(c.View)
	w.mat4(c.Projection)
	w.vec4(c.CamPos)
	w.i32(int32(c.NumLights))
	return w.buf
}

// PerBatchConstants holds the model matrix of one batch
func PerBatchConstants(b *DrawBatch) []byte {
	w := newWriter(PerBatchSize)
	w.mat4(b.Model)
	return w.buf
}

// LightConstants encodes the active lights back to back. Layout of one light:
//
//	0   vec4  position
//	16  vec4  direction
//	32  vec4  color
//	48  mat4  lightVP
//	112 float intensity, int type, int castShadow, int shadowMapIndex
//	128 int   distance curve type, int angle curve type, vec2 size
//	144 vec4  distance params 0-3
//	160 vec4  angle params 0-3
//	176 float distance param 4, float angle param 4 (+8 pad)
func LightConstants(lights []transform.Light) []byte {
	w := newWriter(LightSize * len(lights))
	for i := range lights {
		l := &lights[i]
		w.vec4(l.Position)
		w.vec4(l.Direction)
		w.vec4(l.Color)
		w.mat4(l.VP)
		w.f32(l.Intensity)
		w.i32(int32(l.Type))
		w.bool(l.CastShadow)
		w.i32(l.ShadowMapIndex)
		w.i32(int32(l.DistanceAttenuation.Type))
		w.i32(int32(l.AngleAttenuation.Type))
		w.f32(l.Size.X())
		w.f32(l.Size.Y())
		w.params(l.DistanceAttenuation.Params[:4])
		w.params(l.AngleAttenuation.Params[:4])
		w.f32(l.DistanceAttenuation.Params[4])
		w.f32(l.AngleAttenuation.Params[4])
		w.pad(8)
	}
	return w.buf
}

// ShadowConstants layout:
//
//	0  mat4  lightVP
//	64 vec4  light position
//	80 float near, float far, int layer (+4 pad)
func ShadowConstants(vp mgl32.Mat4, pos mgl32.Vec4, near, far float32, layer int) []byte {
	w := newWriter(ShadowSize)
	w.mat4(vp)
	w.vec4(pos)
	w.f32(near)
	w.f32(far)
	w.i32(int32(layer))
	return w.buf
}

type writer struct {
	buf []byte
	off int
}

func newWriter(size int) *writer {
	return &writer{buf: make([]byte, size)}
}

func (w *writer) f32(v float32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], math.Float32bits(v))
	w.off += 4
}

func (w *writer) i32(v int32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], uint32(v))
	w.off += 4
}

func (w *writer) bool(v bool) {
	if v {
		w.i32(1)
		return
	}
	w.i32(0)
}

func (w *writer) params(p []float32) {
	for _, v := range p {
		w.f32(v)
	}
}

func (w *writer) vec4(v mgl32.Vec4) {
	w.params(v[:])
}

// mat4 writes column-major, which is both mgl32's and std140's order
func (w *writer) mat4(m mgl32.Mat4) {
	w.params(m[:])
}

func (w *writer) pad(n int) { w.off += n }
