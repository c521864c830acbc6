package scene

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"
)

// LightType is the kind of a light object
type LightType int

const (
	LightInfinity LightType = iota
	LightSpot
	LightArea
	LightOmni
)

func (t LightType) String() string {
	switch t {
	case LightInfinity:
		return "infinity"
	case LightSpot:
		return "spot"
	case LightArea:
		return "area"
	case LightOmni:
		return "omni"
	}
	return "unknown"
}

// AttenCurveType selects the falloff function evaluated by the shader
type AttenCurveType int32

const (
	AttenNone AttenCurveType = iota
	AttenLinear
	AttenSmooth
	AttenInverse
	AttenInverseSquare
	AttenExp
)

// AttenCurve is an attenuation curve. Params are interpreted per Type; for the
// angle curve of a spot light Params[0] is the cone half-angle in radians.
type AttenCurve struct {
	Type   AttenCurveType
	Params [5]float32
}

// Light is a light object referenced by light nodes
type Light struct {
	Type       LightType
	ID         uint64
	Color      mgl32.Vec4
	Intensity  float32
	CastShadow bool

	DistanceAttenuation AttenCurve
	// AngleAttenuation is only meaningful for spot lights. Params[0] is the
	// cone half-angle in radians and must lie in (0, pi/2).
	AngleAttenuation AttenCurve
	// Dimension is only meaningful for area lights
	Dimension mgl32.Vec2
}

// CameraType is the projection model of a camera object
type CameraType int

const (
	CameraPerspective CameraType = iota
	CameraOrthographic
)

// Camera is a camera object referenced by camera nodes
type Camera struct {
	Type CameraType
	// FOV is the vertical field of view in radians, perspective cameras only
	FOV  float32
	Near float32
	Far  float32
}

// Primitive is the topology of a mesh
type Primitive int

const (
	PrimitivePoints Primitive = iota
	PrimitiveLines
	PrimitiveLineStrip
	PrimitiveTriangles
	PrimitiveTriangleStrip
	PrimitiveTriangleFan
	PrimitiveQuads
)

// VertexFormat is the element layout of one vertex attribute
type VertexFormat int

const (
	VertexFloat1 VertexFormat = iota + 1
	VertexFloat2
	VertexFloat3
	VertexFloat4
	VertexDouble1
	VertexDouble2
	VertexDouble3
	VertexDouble4
)

// Components returns the number of scalars per vertex
func (f VertexFormat) Components() int {
	switch f {
	case VertexFloat1, VertexDouble1:
		return 1
	case VertexFloat2, VertexDouble2:
		return 2
	case VertexFloat3, VertexDouble3:
		return 3
	case VertexFloat4, VertexDouble4:
		return 4
	}
	return 0
}

// IsDouble reports a 64-bit component type
func (f VertexFormat) IsDouble() bool {
	return f >= VertexDouble1 && f <= VertexDouble4
}

// IndexType is the element type of an index array
type IndexType int

const (
	IndexInt8 IndexType = iota
	IndexInt16
	IndexInt32
	IndexInt64
)

// VertexArray is one attribute stream, raw little-endian data
type VertexArray struct {
	Attribute string
	Format    VertexFormat
	Data      []byte
}

// IndexArray is one index group drawn with a single material
type IndexArray struct {
	MaterialIndex int
	Type          IndexType
	Data          []byte
	Count         int
}

// Mesh holds the vertex streams and index groups of a geometry
type Mesh struct {
	Vertices  []VertexArray
	Indices   []IndexArray
	Primitive Primitive
}

// Geometry is a geometry object; a nil Mesh is skipped by the renderer
type Geometry struct {
	Mesh *Mesh
}

// Texture is a named image. Textures sharing a name are uploaded once.
type Texture struct {
	Name  string
	Image image.Image
}

// Material holds the optional texture slots of a surface
type Material struct {
	Name      string
	BaseColor *Texture
	Normal    *Texture
	Metallic  *Texture
	Roughness *Texture
	AO        *Texture
	Height    *Texture
}

// SkyBoxFaceCount is skybox + irradiance cube faces, followed by six radiance faces
const SkyBoxFaceCount = 18

// SkyBox holds the environment cube maps. Faces 0-5 are the skybox, 6-11 the
// irradiance map and 12-17 the radiance map (mipmapped by the backend side).
type SkyBox struct {
	Faces [SkyBoxFaceCount]*Texture
}

// Terrain holds the terrain height map
type Terrain struct {
	HeightMap *Texture
}
