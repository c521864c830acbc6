package frame

import (
	"fmt"
	"image"
	"math"

	"mini-gfx/internal/graphics/backend"
	"mini-gfx/internal/graphics/texture"
	"mini-gfx/internal/scene"

	"github.com/go-gl/mathgl/mgl32"
)

// terrain is drawn as a grid of flat patches displaced by the height map
const (
	TerrainPatchSize      = 32
	TerrainPatchRows      = 10
	TerrainPatchCount     = TerrainPatchRows * TerrainPatchRows
	terrainPatchDivisions = 8
)

// Builder turns a scene snapshot into backend resources for every frame slot
type Builder struct {
	backend   backend.Backend
	slots     int
	maxLights int
}

func NewBuilder(b backend.Backend, slots, maxLights int) *Builder {
	return &Builder{backend: b, slots: slots, maxLights: maxLights}
}

// Build allocates everything the snapshot needs. init hooks run first, against
// the new ledger, before any geometry is uploaded. On any failure the partial
// build is released and the error returned; data problems are *DataFaultError.
func (b *Builder) Build(s *scene.Snapshot, init ...func(res *SceneResources) error) (*SceneResources, error) {
	res := newSceneResources(b.slots)
	if err := b.build(res, s, init); err != nil {
		if rerr := res.Release(b.backend); rerr != nil {
			err = fmt.Errorf("%w (release: %v)", err, rerr)
		}
		return nil, err
	}
	return res, nil
}

func (b *Builder) build(res *SceneResources, s *scene.Snapshot, init []func(*SceneResources) error) error {
	for _, fn := range init {
		if err := fn(res); err != nil {
			return err
		}
	}
	if s == nil {
		s = scene.New()
	}
	if err := validateLights(s); err != nil {
		return err
	}
	if err := b.geometries(res, s); err != nil {
		return err
	}
	if err := b.terrain(res, s); err != nil {
		return err
	}
	if err := b.skyBox(res, s); err != nil {
		return err
	}
	return b.uniforms(res)
}

func validateLights(s *scene.Snapshot) error {
	for _, id := range s.LightNodes {
		n, _ := s.Node(id)
		l, ok := s.Light(n.Object)
		if !ok {
			return Fault(FaultMissingObject, n.Name, fmt.Sprintf("light object %q not found", n.Object), nil)
		}
		if l.Type == scene.LightSpot {
			half := l.AngleAttenuation.Params[0]
			if half <= 0 || half >= math.Pi/2 {
				return Fault(FaultInvalidLight, n.Name, fmt.Sprintf("spot cone half-angle %v out of range", half), nil)
			}
		}
	}
	return nil
}

func (b *Builder) geometries(res *SceneResources, s *scene.Snapshot) error {
	index := 0
	for _, id := range s.GeometryNodes {
		n, _ := s.Node(id)
		if !n.Visible {
			continue
		}
		geom, ok := s.Geometry(n.Object)
		if !ok {
			return Fault(FaultMissingObject, n.Name, fmt.Sprintf("geometry object %q not found", n.Object), nil)
		}
		mesh := geom.Mesh
		if mesh == nil {
			continue
		}
		if !backend.SupportedPrimitive(mesh.Primitive) {
			return Fault(FaultUnsupportedPrimitive, n.Name, fmt.Sprintf("primitive %d", mesh.Primitive), nil)
		}

		for gi, group := range mesh.Indices {
			subject := fmt.Sprintf("%s#%d", n.Name, gi)
			if !backend.SupportedIndex(group.Type) {
				return Fault(FaultUnsupportedIndex, subject, fmt.Sprintf("index type %d", group.Type), nil)
			}
			h, err := b.backend.CreateGeometry(backend.GeometryDesc{
				Name:      subject,
				Primitive: mesh.Primitive,
				Vertices:  mesh.Vertices,
				Indices:   group,
			})
			if err != nil {
				return Fault(FaultBackend, subject, "create geometry", err)
			}
			res.Track(h)

			var mat backend.MaterialBindings
			if m, ok := s.Material(n.MaterialRef(group.MaterialIndex)); ok {
				if mat, err = b.material(res, m); err != nil {
					return Fault(FaultBackend, subject, "upload material "+m.Name, err)
				}
			}

			for slot := range res.Batches {
				res.Batches[slot] = append(res.Batches[slot], &DrawBatch{
					Model:      n.CalculatedTransform(),
					Node:       id,
					RigidBody:  n.RigidBody,
					Material:   mat,
					Geometry:   h,
					BatchIndex: index,
				})
			}
			index++
		}
	}
	return nil
}

func (b *Builder) material(res *SceneResources, m *scene.Material) (backend.MaterialBindings, error) {
	var out backend.MaterialBindings
	slots := []struct {
		tex *scene.Texture
		dst *backend.Handle
	}{
		{m.BaseColor, &out.Diffuse},
		{m.Normal, &out.Normal},
		{m.Metallic, &out.Metallic},
		{m.Roughness, &out.Roughness},
		{m.AO, &out.AO},
		{m.Height, &out.Height},
	}
	for _, sl := range slots {
		h, err := b.texture2D(res, sl.tex, texture.MaxMipLevels)
		if err != nil {
			return out, err
		}
		*sl.dst = h
	}
	return out, nil
}

// texture2D uploads t once per name; textures without an image bind nothing
func (b *Builder) texture2D(res *SceneResources, t *scene.Texture, levels int) (backend.Handle, error) {
	if t == nil || t.Image == nil {
		return backend.NoHandle, nil
	}
	if h, ok := res.textures[t.Name]; ok {
		return h, nil
	}
	chain := texture.MipChain(t.Image, levels)
	h, err := b.backend.CreateTexture(backend.TextureDesc{
		Name:   t.Name,
		Kind:   backend.Texture2D,
		Format: backend.FormatRGBA8,
		Width:  chain[0].Rect.Dx(),
		Height: chain[0].Rect.Dy(),
		Layers: 1,
		Data:   [][]*image.RGBA{chain},
	})
	if err != nil {
		return backend.NoHandle, err
	}
	res.Track(h)
	res.textures[t.Name] = h
	return h, nil
}

func (b *Builder) terrain(res *SceneResources, s *scene.Snapshot) error {
	if s.Terrain == nil || s.Terrain.HeightMap == nil || s.Terrain.HeightMap.Image == nil {
		return nil
	}
	h, err := b.texture2D(res, s.Terrain.HeightMap, 1)
	if err != nil {
		return Fault(FaultBackend, "terrain", "upload height map", err)
	}
	res.TerrainHeightMap = h

	mesh := scene.Grid(TerrainPatchSize/2, terrainPatchDivisions)
	g, err := b.backend.CreateGeometry(backend.GeometryDesc{
		Name:      "terrain",
		Primitive: mesh.Primitive,
		Vertices:  mesh.Vertices,
		Indices:   mesh.Indices[0],
	})
	if err != nil {
		return Fault(FaultBackend, "terrain", "create patch geometry", err)
	}
	res.Track(g)
	res.TerrainMesh = g
	return nil
}

// TerrainPatchModel places patch i of the terrain grid centered on the origin
func TerrainPatchModel(i int) mgl32.Mat4 {
	row, col := i/TerrainPatchRows-TerrainPatchRows/2, i%TerrainPatchRows-TerrainPatchRows/2
	return mgl32.Translate3D(
		float32(row)*TerrainPatchSize+TerrainPatchSize/2,
		float32(col)*TerrainPatchSize+TerrainPatchSize/2,
		0)
}

var skyBoxVertices = []float32{
	1, 1, 1,
	-1, 1, 1,
	1, -1, 1,
	1, 1, -1,
	-1, 1, -1,
	1, -1, -1,
	-1, -1, 1,
	-1, -1, -1,
}

var skyBoxIndices = []byte{
	4, 7, 5, 5, 3, 4,
	6, 7, 4, 4, 1, 6,
	5, 2, 0, 0, 3, 5,
	6, 1, 0, 0, 2, 6,
	4, 3, 0, 0, 1, 4,
	7, 6, 5, 5, 6, 2,
}

func (b *Builder) skyBox(res *SceneResources, s *scene.Snapshot) error {
	if s.SkyBox == nil {
		return nil
	}
	faces := make([]image.Image, scene.SkyBoxFaceCount)
	for i, f := range s.SkyBox.Faces {
		if f == nil || f.Image == nil {
			return Fault(FaultMissingSkyBox, fmt.Sprintf("skybox face %d", i), "no image", nil)
		}
		faces[i] = f.Image
	}
	data, size, err := texture.CubeFaces(faces, texture.MaxMipLevels)
	if err != nil {
		return Fault(FaultMissingSkyBox, "skybox", err.Error(), nil)
	}
	h, err := b.backend.CreateTexture(backend.TextureDesc{
		Name:   "SkyBox",
		Kind:   backend.TextureCubeArray,
		Format: backend.FormatRGBA8,
		Width:  size,
		Height: size,
		Layers: scene.SkyBoxFaceCount / 6,
		Data:   data,
	})
	if err != nil {
		return Fault(FaultBackend, "skybox", "create cube map", err)
	}
	res.Track(h)
	res.SkyBox = h

	g, err := b.backend.CreateGeometry(backend.GeometryDesc{
		Name:      "skybox",
		Primitive: scene.PrimitiveTriangles,
		Vertices: []scene.VertexArray{
			{Attribute: "position", Format: scene.VertexFloat3, Data: scene.Float32Bytes(skyBoxVertices)},
		},
		Indices: scene.IndexArray{Type: scene.IndexInt8, Data: skyBoxIndices, Count: len(skyBoxIndices)},
	})
	if err != nil {
		return Fault(FaultBackend, "skybox", "create geometry", err)
	}
	res.Track(g)
	res.SkyBoxMesh = g
	return nil
}

// uniforms creates each slot's constant buffers. The batch buffer also holds
// the terrain patch models after the scene's batches.
func (b *Builder) uniforms(res *SceneResources) error {
	batches := res.BatchCount()
	if res.TerrainMesh != backend.NoHandle {
		batches += TerrainPatchCount
	}
	lights := b.maxLights
	if lights < 1 {
		lights = 1
	}

	for slot := range res.Uniforms {
		u := &res.Uniforms[slot]
		bufs := []struct {
			dst  *backend.Handle
			name string
			size int
		}{
			{&u.Frame, "frame", PerFrameSize},
			{&u.Batch, "batch", max(batches, 1) * backend.PerBatchStride},
			{&u.Lights, "lights", LightSize * lights},
			{&u.Shadow, "shadow", ShadowSize},
		}
		for _, buf := range bufs {
			h, err := b.backend.CreateBuffer(backend.BufferDesc{
				Name: fmt.Sprintf("%s[%d]", buf.name, slot),
				Kind: backend.BufferUniform,
				Size: buf.size,
			})
			if err != nil {
				return Fault(FaultBackend, buf.name, "create uniform buffer", err)
			}
			res.Track(h)
			*buf.dst = h
		}

		if res.TerrainMesh != backend.NoHandle {
			base := res.BatchCount()
			for i := 0; i < TerrainPatchCount; i++ {
				data := PerBatchConstants(&DrawBatch{Model: TerrainPatchModel(i)})
				if err := b.backend.WriteBuffer(u.Batch, (base+i)*backend.PerBatchStride, data); err != nil {
					return Fault(FaultBackend, "terrain", "write patch constants", err)
				}
			}
		}
	}
	return nil
}
