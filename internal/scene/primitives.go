package scene

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"
)

// Cube builds a unit-normal cube mesh with the given half extent. Vertex
// streams are position (float3), normal (float3) and uv (float2); a single
// uint16 index group uses material index 0.
func Cube(half float32) *Mesh {
	type face struct {
		n    [3]float32
		u, v [3]float32
	}
	faces := []face{
		{n: [3]float32{1, 0, 0}, u: [3]float32{0, 1, 0}, v: [3]float32{0, 0, 1}},
		{n: [3]float32{-1, 0, 0}, u: [3]float32{0, -1, 0}, v: [3]float32{0, 0, 1}},
		{n: [3]float32{0, 1, 0}, u: [3]float32{-1, 0, 0}, v: [3]float32{0, 0, 1}},
		{n: [3]float32{0, -1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, 1}},
		{n: [3]float32{0, 0, 1}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 1, 0}},
		{n: [3]float32{0, 0, -1}, u: [3]float32{-1, 0, 0}, v: [3]float32{0, 1, 0}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	var pos, nrm, uv []float32
	var idx []uint16
	for fi, f := range faces {
		for _, c := range corners {
			for k := 0; k < 3; k++ {
				pos = append(pos, (f.n[k]+c[0]*f.u[k]+c[1]*f.v[k])*half)
			}
			nrm = append(nrm, f.n[:]...)
			uv = append(uv, (c[0]+1)/2, (c[1]+1)/2)
		}
		base := uint16(fi * 4)
		idx = append(idx, base, base+1, base+2, base+2, base+3, base)
	}
	return newIndexedMesh(pos, nrm, uv, idx)
}

// Plane builds a square in the XY plane facing +Z
func Plane(half float32) *Mesh {
	pos := []float32{
		-half, -half, 0,
		half, -half, 0,
		half, half, 0,
		-half, half, 0,
	}
	nrm := []float32{0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1}
	uv := []float32{0, 0, 1, 0, 1, 1, 0, 1}
	return newIndexedMesh(pos, nrm, uv, []uint16{0, 1, 2, 2, 3, 0})
}

// Grid builds a divisions x divisions patch grid in the XY plane facing +Z,
// used for terrain.
func Grid(half float32, divisions int) *Mesh {
	if divisions < 1 {
		divisions = 1
	}
	step := 2 * half / float32(divisions)
	var pos, nrm, uv []float32
	for y := 0; y <= divisions; y++ {
		for x := 0; x <= divisions; x++ {
			pos = append(pos, -half+float32(x)*step, -half+float32(y)*step, 0)
			nrm = append(nrm, 0, 0, 1)
			uv = append(uv, float32(x)/float32(divisions), float32(y)/float32(divisions))
		}
	}
	row := uint16(divisions + 1)
	var idx []uint16
	for y := uint16(0); y < uint16(divisions); y++ {
		for x := uint16(0); x < uint16(divisions); x++ {
			i := y*row + x
			idx = append(idx, i, i+1, i+row+1, i+row+1, i+row, i)
		}
	}
	return newIndexedMesh(pos, nrm, uv, idx)
}

func newIndexedMesh(pos, nrm, uv []float32, idx []uint16) *Mesh {
	indexData := make([]byte, 2*len(idx))
	for i, v := range idx {
		binary.LittleEndian.PutUint16(indexData[2*i:], v)
	}
	return &Mesh{
		Vertices: []VertexArray{
			{Attribute: "position", Format: VertexFloat3, Data: Float32Bytes(pos)},
			{Attribute: "normal", Format: VertexFloat3, Data: Float32Bytes(nrm)},
			{Attribute: "uv", Format: VertexFloat2, Data: Float32Bytes(uv)},
		},
		Indices: []IndexArray{
			{MaterialIndex: 0, Type: IndexInt16, Data: indexData, Count: len(idx)},
		},
		Primitive: PrimitiveTriangles,
	}
}

// Float32Bytes encodes floats little-endian
func Float32Bytes(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// SolidTexture creates a size x size texture filled with c
func SolidTexture(name string, c color.RGBA, size int) *Texture {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return &Texture{Name: name, Image: img}
}
