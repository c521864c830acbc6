// Package backend defines the boundary between the frame pipeline and a native
// graphics API. Everything crossing it is an opaque Handle.
package backend

import (
	"errors"
	"image"

	"mini-gfx/internal/scene"
)

var (
	ErrUnsupported   = errors.New("unsupported by backend")
	ErrUnknownHandle = errors.New("unknown handle")
)

// Handle identifies a backend-owned GPU object. Zero is never a valid handle.
type Handle uint64

const NoHandle Handle = 0

// PerBatchStride is the byte distance between two batches' slices of a per-batch
// constant buffer. It satisfies the common 256 byte uniform offset alignment.
const PerBatchStride = 256

type TextureKind int

const (
	Texture2D TextureKind = iota
	Texture2DArray
	TextureCube
	TextureCubeArray
)

type TextureFormat int

const (
	FormatRGBA8 TextureFormat = iota
	FormatRG32F
	FormatDepth32F
)

// TextureDesc describes a texture to create. Layers counts array layers; for cube
// arrays it counts cubes. Data is indexed [layer][mip level] where a cube array
// layer is cube*6+face. Render targets leave Data nil.
type TextureDesc struct {
	Name   string
	Kind   TextureKind
	Format TextureFormat
	Width  int
	Height int
	Layers int
	Data   [][]*image.RGBA
	// Storage marks textures written by compute or render passes
	Storage bool
}

type BufferKind int

const (
	BufferUniform BufferKind = iota
	BufferStorage
)

type BufferDesc struct {
	Name string
	Kind BufferKind
	Size int
}

// GeometryDesc is one drawable index group and the vertex streams it indexes
type GeometryDesc struct {
	Name      string
	Primitive scene.Primitive
	Vertices  []scene.VertexArray
	Indices   scene.IndexArray
}

// Pipeline selects the shader program used by following submissions
type Pipeline int

const (
	PipelineForward Pipeline = iota
	PipelineShadow
	PipelineShadowCube
	PipelineSkyBox
	PipelineTerrain
	PipelineBRDF
)

func (p Pipeline) String() string {
	switch p {
	case PipelineForward:
		return "forward"
	case PipelineShadow:
		return "shadow"
	case PipelineShadowCube:
		return "shadow_cube"
	case PipelineSkyBox:
		return "skybox"
	case PipelineTerrain:
		return "terrain"
	case PipelineBRDF:
		return "brdf"
	}
	return "unknown"
}

// FrameBindings are the per-frame resources bound before batches are submitted.
// Absent resources are NoHandle and fall back to backend defaults.
type FrameBindings struct {
	Frame  Handle
	Lights Handle

	ShadowMap       Handle
	GlobalShadowMap Handle
	CubeShadowMap   Handle
	SkyBox          Handle
	TerrainHeight   Handle
	BRDFLUT         Handle
}

// MaterialBindings holds the optional texture slots of a batch
type MaterialBindings struct {
	Diffuse   Handle
	Normal    Handle
	Metallic  Handle
	Roughness Handle
	AO        Handle
	Height    Handle
}

// Draw submits one geometry. Constants is the per-batch buffer of the current
// frame slot; the batch's slice starts at BatchIndex*PerBatchStride.
type Draw struct {
	Geometry   Handle
	Constants  Handle
	BatchIndex int
	Material   MaterialBindings
}

// ShadowTarget addresses one layer of a shadow map array. For cube arrays the
// layer is cube*6+face. Clear wipes the whole array before rendering.
type ShadowTarget struct {
	Map       Handle
	Layer     int
	Size      int
	Constants Handle
	Clear     bool
}

// Backend owns GPU objects and turns requests into GPU work. Calls are made from
// the render thread only.
type Backend interface {
	CreateTexture(desc TextureDesc) (Handle, error)
	CreateBuffer(desc BufferDesc) (Handle, error)
	CreateGeometry(desc GeometryDesc) (Handle, error)
	WriteBuffer(h Handle, offset int, data []byte) error
	Release(h Handle) error

	BeginFrame(slot int) error
	EndFrame(slot int) error
	Present() error

	BeginPass(name string) error
	EndPass(name string) error
	BeginCompute(name string) error
	EndCompute(name string) error

	UsePipeline(p Pipeline) error
	BindFrame(b FrameBindings) error
	SubmitDrawBatch(d Draw) error
	DispatchCompute(target Handle, x, y, z int) error

	BeginShadowMap(t ShadowTarget) error
	EndShadowMap(t ShadowTarget) error

	SetViewport(width, height int)
}

// SupportedIndex reports whether an index element type can be drawn
func SupportedIndex(t scene.IndexType) bool {
	switch t {
	case scene.IndexInt8, scene.IndexInt16, scene.IndexInt32:
		return true
	}
	return false
}

// SupportedPrimitive reports whether a topology can be drawn
func SupportedPrimitive(p scene.Primitive) bool {
	switch p {
	case scene.PrimitivePoints, scene.PrimitiveLines, scene.PrimitiveLineStrip,
		scene.PrimitiveTriangles, scene.PrimitiveTriangleStrip, scene.PrimitiveTriangleFan:
		return true
	}
	return false
}
