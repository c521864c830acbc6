package opengl

import (
	"fmt"

	"mini-gfx/internal/graphics/backend"
	"mini-gfx/internal/scene"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// attribute locations used by every vertex shader
var attributeLocations = map[string]uint32{
	"position": 0,
	"normal":   1,
	"uv":       2,
}

// attributeLocation returns the shader location of a named stream. Unknown
// streams take the locations after the known ones in stream order.
func attributeLocation(name string, stream int) uint32 {
	if loc, ok := attributeLocations[name]; ok {
		return loc
	}
	return uint32(len(attributeLocations) + stream)
}

func drawMode(p scene.Primitive) (uint32, error) {
	switch p {
	case scene.PrimitivePoints:
		return gl.POINTS, nil
	case scene.PrimitiveLines:
		return gl.LINES, nil
	case scene.PrimitiveLineStrip:
		return gl.LINE_STRIP, nil
	case scene.PrimitiveTriangles:
		return gl.TRIANGLES, nil
	case scene.PrimitiveTriangleStrip:
		return gl.TRIANGLE_STRIP, nil
	case scene.PrimitiveTriangleFan:
		return gl.TRIANGLE_FAN, nil
	}
	return 0, fmt.Errorf("primitive %d: %w", p, backend.ErrUnsupported)
}

// indexType returns the GL element type and its size in bytes
func indexType(t scene.IndexType) (uint32, int, error) {
	switch t {
	case scene.IndexInt8:
		return gl.UNSIGNED_BYTE, 1, nil
	case scene.IndexInt16:
		return gl.UNSIGNED_SHORT, 2, nil
	case scene.IndexInt32:
		return gl.UNSIGNED_INT, 4, nil
	}
	return 0, 0, fmt.Errorf("index type %d: %w", t, backend.ErrUnsupported)
}

// textureFormat holds the internal format, pixel format and pixel type of a
// backend format
type textureFormat struct {
	internal int32
	format   uint32
	xtype    uint32
}

func formatOf(f backend.TextureFormat) (textureFormat, error) {
	switch f {
	case backend.FormatRGBA8:
		return textureFormat{gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE}, nil
	case backend.FormatRG32F:
		return textureFormat{gl.RG32F, gl.RG, gl.FLOAT}, nil
	case backend.FormatDepth32F:
		return textureFormat{gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT}, nil
	}
	return textureFormat{}, fmt.Errorf("texture format %d: %w", f, backend.ErrUnsupported)
}

func textureTarget(k backend.TextureKind) (uint32, error) {
	switch k {
	case backend.Texture2D:
		return gl.TEXTURE_2D, nil
	case backend.Texture2DArray:
		return gl.TEXTURE_2D_ARRAY, nil
	case backend.TextureCube:
		return gl.TEXTURE_CUBE_MAP, nil
	case backend.TextureCubeArray:
		return gl.TEXTURE_CUBE_MAP_ARRAY, nil
	}
	return 0, fmt.Errorf("texture kind %d: %w", k, backend.ErrUnsupported)
}

// layerCount is the number of 2D images of a texture: cubes count six faces
func layerCount(desc backend.TextureDesc) int {
	layers := max(desc.Layers, 1)
	switch desc.Kind {
	case backend.Texture2D:
		return 1
	case backend.TextureCube:
		return 6
	case backend.TextureCubeArray:
		return layers * 6
	}
	return layers
}

// levelCount is the number of mip levels carried by desc's data
func levelCount(desc backend.TextureDesc) int {
	n := 1
	for _, layer := range desc.Data {
		n = max(n, len(layer))
	}
	return n
}
