// Package opengl implements the render backend on OpenGL 4.1 core. All methods
// must be called on the thread that owns the GL context.
package opengl

import (
	"fmt"
	"image"
	"image/color"

	"mini-gfx/internal/graphics/backend"

	"github.com/go-gl/gl/v4.1-core/gl"
)

type objectKind int

const (
	objTexture objectKind = iota
	objBuffer
	objGeometry
)

// object is the GL state behind one handle
type object struct {
	kind objectKind
	name string

	// texture
	tex    uint32
	target uint32
	levels int

	// buffer
	buf  uint32
	size int

	// geometry
	vao       uint32
	vbos      []uint32
	ebo       uint32
	mode      uint32
	count     int32
	indexType uint32
}

// Backend is a backend.Backend drawing with OpenGL
type Backend struct {
	present    func()
	maxLights  int
	clearColor [4]float32

	objects map[backend.Handle]*object
	next    backend.Handle

	programs map[backend.Pipeline]*program
	current  *program

	width, height int
	fbo           uint32
	emptyVAO      uint32

	// 1x1 textures bound for absent material slots
	defaults map[int32]uint32
	// depth and color stand-ins for absent frame resources
	emptyArray     uint32
	emptyCubeArray uint32
}

// New creates a backend. present swaps the window's buffers.
func New(present func(), maxLights int, clearColor [4]float32) *Backend {
	return &Backend{
		present:    present,
		maxLights:  maxLights,
		clearColor: clearColor,
		objects:    make(map[backend.Handle]*object),
		programs:   make(map[backend.Pipeline]*program),
	}
}

// Init compiles the pipelines and creates fallback resources. The GL context
// must be current and gl.Init done.
func (b *Backend) Init() error {
	for p := range programSources {
		prog, err := loadProgram(p, b.maxLights)
		if err != nil {
			b.Dispose()
			return err
		}
		b.programs[p] = prog
	}

	gl.GenFramebuffers(1, &b.fbo)
	gl.GenVertexArrays(1, &b.emptyVAO)

	b.defaults = map[int32]uint32{
		unitDiffuse:   solidTexture(color.RGBA{255, 255, 255, 255}),
		unitNormal:    solidTexture(color.RGBA{128, 128, 255, 255}),
		unitMetallic:  solidTexture(color.RGBA{0, 0, 0, 255}),
		unitRoughness: solidTexture(color.RGBA{200, 200, 200, 255}),
		unitAO:        solidTexture(color.RGBA{255, 255, 255, 255}),
		unitHeight:    solidTexture(color.RGBA{0, 0, 0, 255}),
		unitBRDFLUT:   solidTexture(color.RGBA{255, 0, 0, 255}),
	}
	b.emptyArray = emptyTexture(gl.TEXTURE_2D_ARRAY, 1)
	b.emptyCubeArray = emptyTexture(gl.TEXTURE_CUBE_MAP_ARRAY, 6)

	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.BACK)
	gl.FrontFace(gl.CCW)
	gl.Enable(gl.TEXTURE_CUBE_MAP_SEAMLESS)
	return nil
}

// Dispose deletes every live object and the backend's own resources
func (b *Backend) Dispose() {
	for h := range b.objects {
		_ = b.Release(h)
	}
	for p, prog := range b.programs {
		prog.delete()
		delete(b.programs, p)
	}
	for unit, tex := range b.defaults {
		gl.DeleteTextures(1, &tex)
		delete(b.defaults, unit)
	}
	if b.emptyArray != 0 {
		gl.DeleteTextures(1, &b.emptyArray)
		gl.DeleteTextures(1, &b.emptyCubeArray)
		b.emptyArray, b.emptyCubeArray = 0, 0
	}
	if b.fbo != 0 {
		gl.DeleteFramebuffers(1, &b.fbo)
		gl.DeleteVertexArrays(1, &b.emptyVAO)
		b.fbo, b.emptyVAO = 0, 0
	}
}

func (b *Backend) add(o *object) backend.Handle {
	b.next++
	b.objects[b.next] = o
	return b.next
}

func (b *Backend) lookup(h backend.Handle, kind objectKind) (*object, error) {
	o, ok := b.objects[h]
	if !ok || o.kind != kind {
		return nil, fmt.Errorf("handle %d: %w", h, backend.ErrUnknownHandle)
	}
	return o, nil
}

func (b *Backend) CreateTexture(desc backend.TextureDesc) (backend.Handle, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return backend.NoHandle, fmt.Errorf("texture %q: invalid size %dx%d", desc.Name, desc.Width, desc.Height)
	}
	target, err := textureTarget(desc.Kind)
	if err != nil {
		return backend.NoHandle, err
	}
	f, err := formatOf(desc.Format)
	if err != nil {
		return backend.NoHandle, err
	}

	levels := levelCount(desc)
	layers := layerCount(desc)

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(target, tex)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)

	// Storage
	for level := 0; level < levels; level++ {
		w, h := int32(max(desc.Width>>level, 1)), int32(max(desc.Height>>level, 1))
		switch target {
		case gl.TEXTURE_2D:
			gl.TexImage2D(target, int32(level), f.internal, w, h, 0, f.format, f.xtype, nil)
		case gl.TEXTURE_CUBE_MAP:
			for face := 0; face < 6; face++ {
				gl.TexImage2D(gl.TEXTURE_CUBE_MAP_POSITIVE_X+uint32(face), int32(level), f.internal, w, h, 0, f.format, f.xtype, nil)
			}
		default:
			gl.TexImage3D(target, int32(level), f.internal, w, h, int32(layers), 0, f.format, f.xtype, nil)
		}
	}

	// Upload layers
	for layer, chain := range desc.Data {
		for level, img := range chain {
			if img == nil {
				continue
			}
			uploadImage(target, layer, level, img)
		}
	}

	// Parameters
	minFilter := int32(gl.LINEAR)
	if levels > 1 {
		minFilter = gl.LINEAR_MIPMAP_LINEAR
	}
	gl.TexParameteri(target, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(target, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(target, gl.TEXTURE_MAX_LEVEL, int32(levels-1))
	gl.TexParameteri(target, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_R, gl.CLAMP_TO_EDGE)
	if desc.Kind == backend.Texture2D && desc.Format == backend.FormatRGBA8 && !desc.Storage {
		gl.TexParameteri(target, gl.TEXTURE_WRAP_S, gl.REPEAT)
		gl.TexParameteri(target, gl.TEXTURE_WRAP_T, gl.REPEAT)
	}
	gl.BindTexture(target, 0)

	return b.add(&object{kind: objTexture, name: desc.Name, tex: tex, target: target, levels: levels}), nil
}

func uploadImage(target uint32, layer, level int, img *image.RGBA) {
	w, h := int32(img.Rect.Dx()), int32(img.Rect.Dy())
	switch target {
	case gl.TEXTURE_2D:
		gl.TexSubImage2D(target, int32(level), 0, 0, w, h, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	case gl.TEXTURE_CUBE_MAP:
		gl.TexSubImage2D(gl.TEXTURE_CUBE_MAP_POSITIVE_X+uint32(layer), int32(level), 0, 0, w, h, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	default:
		gl.TexSubImage3D(target, int32(level), 0, 0, int32(layer), w, h, 1, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	}
}

func (b *Backend) CreateBuffer(desc backend.BufferDesc) (backend.Handle, error) {
	if desc.Size <= 0 {
		return backend.NoHandle, fmt.Errorf("buffer %q: invalid size %d", desc.Name, desc.Size)
	}
	if desc.Kind == backend.BufferStorage {
		// no shader storage buffers before 4.3
		return backend.NoHandle, fmt.Errorf("storage buffer %q: %w", desc.Name, backend.ErrUnsupported)
	}
	target := uint32(gl.UNIFORM_BUFFER)
	var buf uint32
	gl.GenBuffers(1, &buf)
	gl.BindBuffer(target, buf)
	gl.BufferData(target, desc.Size, nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(target, 0)
	return b.add(&object{kind: objBuffer, name: desc.Name, buf: buf, size: desc.Size}), nil
}

func (b *Backend) CreateGeometry(desc backend.GeometryDesc) (backend.Handle, error) {
	mode, err := drawMode(desc.Primitive)
	if err != nil {
		return backend.NoHandle, err
	}
	xtype, _, err := indexType(desc.Indices.Type)
	if err != nil {
		return backend.NoHandle, err
	}

	o := &object{kind: objGeometry, name: desc.Name, mode: mode, count: int32(desc.Indices.Count), indexType: xtype}
	gl.GenVertexArrays(1, &o.vao)
	gl.BindVertexArray(o.vao)

	for i, va := range desc.Vertices {
		n := va.Format.Components()
		if n == 0 || len(va.Data) == 0 {
			continue
		}
		var vbo uint32
		gl.GenBuffers(1, &vbo)
		gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
		gl.BufferData(gl.ARRAY_BUFFER, len(va.Data), gl.Ptr(va.Data), gl.STATIC_DRAW)
		loc := attributeLocation(va.Attribute, i)
		gl.EnableVertexAttribArray(loc)
		if va.Format.IsDouble() {
			gl.VertexAttribLPointer(loc, int32(n), gl.DOUBLE, 0, nil)
		} else {
			gl.VertexAttribPointerWithOffset(loc, int32(n), gl.FLOAT, false, 0, 0)
		}
		o.vbos = append(o.vbos, vbo)
	}

	if len(desc.Indices.Data) > 0 {
		gl.GenBuffers(1, &o.ebo)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, o.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(desc.Indices.Data), gl.Ptr(desc.Indices.Data), gl.STATIC_DRAW)
	}
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	return b.add(o), nil
}

func (b *Backend) WriteBuffer(h backend.Handle, offset int, data []byte) error {
	o, err := b.lookup(h, objBuffer)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > o.size {
		return fmt.Errorf("write buffer %q: range [%d,%d) exceeds %d bytes", o.name, offset, offset+len(data), o.size)
	}
	if len(data) == 0 {
		return nil
	}
	gl.BindBuffer(gl.UNIFORM_BUFFER, o.buf)
	gl.BufferSubData(gl.UNIFORM_BUFFER, offset, len(data), gl.Ptr(data))
	gl.BindBuffer(gl.UNIFORM_BUFFER, 0)
	return nil
}

func (b *Backend) Release(h backend.Handle) error {
	o, ok := b.objects[h]
	if !ok {
		return fmt.Errorf("release %d: %w", h, backend.ErrUnknownHandle)
	}
	switch o.kind {
	case objTexture:
		gl.DeleteTextures(1, &o.tex)
	case objBuffer:
		gl.DeleteBuffers(1, &o.buf)
	case objGeometry:
		if len(o.vbos) > 0 {
			gl.DeleteBuffers(int32(len(o.vbos)), &o.vbos[0])
		}
		if o.ebo != 0 {
			gl.DeleteBuffers(1, &o.ebo)
		}
		gl.DeleteVertexArrays(1, &o.vao)
	}
	delete(b.objects, h)
	return nil
}

func (b *Backend) BeginFrame(slot int) error {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(b.width), int32(b.height))
	c := b.clearColor
	gl.ClearColor(c[0], c[1], c[2], c[3])
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	return nil
}

func (b *Backend) EndFrame(slot int) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("frame %d: gl error 0x%x", slot, code)
	}
	return nil
}

func (b *Backend) Present() error {
	if b.present != nil {
		b.present()
	}
	return nil
}

// Passes need no explicit scope on GL
func (b *Backend) BeginPass(name string) error { return nil }
func (b *Backend) EndPass(name string) error   { return nil }

func (b *Backend) BeginCompute(name string) error {
	gl.BindFramebuffer(gl.FRAMEBUFFER, b.fbo)
	gl.Disable(gl.DEPTH_TEST)
	return nil
}

func (b *Backend) EndCompute(name string) error {
	gl.FramebufferTexture(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, 0, 0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Enable(gl.DEPTH_TEST)
	gl.Viewport(0, 0, int32(b.width), int32(b.height))
	return nil
}

func (b *Backend) UsePipeline(p backend.Pipeline) error {
	prog, ok := b.programs[p]
	if !ok {
		return fmt.Errorf("pipeline %v: %w", p, backend.ErrUnsupported)
	}
	prog.use()
	b.current = prog

	// skybox is drawn at the far plane from inside the cube
	if p == backend.PipelineSkyBox {
		gl.DepthFunc(gl.LEQUAL)
		gl.Disable(gl.CULL_FACE)
	} else {
		gl.DepthFunc(gl.LESS)
		gl.Enable(gl.CULL_FACE)
	}
	return nil
}

func (b *Backend) bindTexture(unit int32, h backend.Handle, fallback, fallbackTarget uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	if o, ok := b.objects[h]; ok && o.kind == objTexture {
		gl.BindTexture(o.target, o.tex)
		return
	}
	gl.BindTexture(fallbackTarget, fallback)
}

func (b *Backend) BindFrame(fb backend.FrameBindings) error {
	for _, ub := range []struct {
		binding uint32
		h       backend.Handle
	}{{bindingFrame, fb.Frame}, {bindingLights, fb.Lights}} {
		o, err := b.lookup(ub.h, objBuffer)
		if err != nil {
			return err
		}
		gl.BindBufferBase(gl.UNIFORM_BUFFER, ub.binding, o.buf)
	}

	b.bindTexture(unitShadowMap, fb.ShadowMap, b.emptyArray, gl.TEXTURE_2D_ARRAY)
	b.bindTexture(unitGlobalShadowMap, fb.GlobalShadowMap, b.emptyArray, gl.TEXTURE_2D_ARRAY)
	b.bindTexture(unitCubeShadowMap, fb.CubeShadowMap, b.emptyCubeArray, gl.TEXTURE_CUBE_MAP_ARRAY)
	b.bindTexture(unitSkyBox, fb.SkyBox, b.emptyCubeArray, gl.TEXTURE_CUBE_MAP_ARRAY)
	b.bindTexture(unitBRDFLUT, fb.BRDFLUT, b.defaults[unitBRDFLUT], gl.TEXTURE_2D)
	b.bindTexture(unitHeight, fb.TerrainHeight, b.defaults[unitHeight], gl.TEXTURE_2D)

	if sky, ok := b.objects[fb.SkyBox]; ok && b.current != nil {
		for _, p := range []backend.Pipeline{backend.PipelineForward, backend.PipelineTerrain} {
			b.programs[p].use()
			b.programs[p].setFloat("radianceMaxLod", float32(sky.levels-1))
		}
		b.current.use()
	}
	return nil
}

func (b *Backend) SubmitDrawBatch(d backend.Draw) error {
	g, err := b.lookup(d.Geometry, objGeometry)
	if err != nil {
		return err
	}
	if d.Constants != backend.NoHandle {
		c, err := b.lookup(d.Constants, objBuffer)
		if err != nil {
			return err
		}
		offset := d.BatchIndex * backend.PerBatchStride
		gl.BindBufferRange(gl.UNIFORM_BUFFER, bindingBatch, c.buf, offset, backend.PerBatchStride)
	}

	m := d.Material
	for _, slot := range []struct {
		unit int32
		h    backend.Handle
	}{
		{unitDiffuse, m.Diffuse},
		{unitNormal, m.Normal},
		{unitMetallic, m.Metallic},
		{unitRoughness, m.Roughness},
		{unitAO, m.AO},
	} {
		b.bindTexture(slot.unit, slot.h, b.defaults[slot.unit], gl.TEXTURE_2D)
	}
	if m.Height != backend.NoHandle {
		b.bindTexture(unitHeight, m.Height, b.defaults[unitHeight], gl.TEXTURE_2D)
	}

	gl.BindVertexArray(g.vao)
	if g.ebo != 0 {
		gl.DrawElementsWithOffset(g.mode, g.count, g.indexType, 0)
	}
	gl.BindVertexArray(0)
	return nil
}

// DispatchCompute renders the current pipeline over target. GL 4.1 has no
// compute stage, so the work runs as a fullscreen fragment pass.
func (b *Backend) DispatchCompute(target backend.Handle, x, y, z int) error {
	o, err := b.lookup(target, objTexture)
	if err != nil {
		return err
	}
	gl.FramebufferTexture(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, o.tex, 0)
	if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		return fmt.Errorf("dispatch into %q: framebuffer status 0x%x", o.name, status)
	}
	gl.Viewport(0, 0, int32(x), int32(y))
	gl.BindVertexArray(b.emptyVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
	gl.BindVertexArray(0)
	return nil
}

func (b *Backend) BeginShadowMap(t backend.ShadowTarget) error {
	o, err := b.lookup(t.Map, objTexture)
	if err != nil {
		return err
	}
	c, err := b.lookup(t.Constants, objBuffer)
	if err != nil {
		return err
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, b.fbo)
	gl.DrawBuffer(gl.NONE)
	gl.ReadBuffer(gl.NONE)
	if t.Clear {
		// layered attachment clears every layer
		gl.FramebufferTexture(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, o.tex, 0)
		gl.Clear(gl.DEPTH_BUFFER_BIT)
	}
	gl.FramebufferTextureLayer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, o.tex, 0, int32(t.Layer))
	if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		return fmt.Errorf("shadow map %q layer %d: framebuffer status 0x%x", o.name, t.Layer, status)
	}
	gl.Viewport(0, 0, int32(t.Size), int32(t.Size))
	gl.BindBufferBase(gl.UNIFORM_BUFFER, bindingShadow, c.buf)
	gl.CullFace(gl.FRONT)
	return nil
}

func (b *Backend) EndShadowMap(t backend.ShadowTarget) error {
	gl.CullFace(gl.BACK)
	gl.FramebufferTexture(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, 0, 0)
	gl.DrawBuffer(gl.COLOR_ATTACHMENT0)
	gl.ReadBuffer(gl.COLOR_ATTACHMENT0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(b.width), int32(b.height))
	return nil
}

func (b *Backend) SetViewport(width, height int) {
	b.width, b.height = width, height
	gl.Viewport(0, 0, int32(width), int32(height))
}

// Live returns the number of objects not yet released
func (b *Backend) Live() int { return len(b.objects) }

func solidTexture(c color.RGBA) uint32 {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	pix := []uint8{c.R, c.G, c.B, c.A}
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, 1, 1, 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return tex
}

// emptyTexture is a 1x1 white color array standing in for absent shadow maps
// and skyboxes
func emptyTexture(target uint32, layers int32) uint32 {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(target, tex)
	pix := make([]uint8, 4*layers)
	for i := range pix {
		pix[i] = 255
	}
	gl.TexImage3D(target, 0, gl.RGBA8, 1, 1, layers, 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix))
	gl.TexParameteri(target, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(target, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.BindTexture(target, 0)
	return tex
}

var _ backend.Backend = (*Backend)(nil)
