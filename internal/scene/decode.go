package scene

import (
	"fmt"
	"image/color"
	"os"

	"mini-gfx/internal/physics"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// BodyAllocator creates rigid bodies for nodes flagged as simulated
type BodyAllocator interface {
	Create(initial mgl32.Mat4) physics.RigidBody
}

// Description is the on-disk form of a scene. It only references procedural
// primitives and solid colors; it is not an asset format.
type Description struct {
	Camera    *cameraDesc             `yaml:"camera"`
	Materials map[string]materialDesc `yaml:"materials"`
	Nodes     []nodeDesc              `yaml:"nodes"`
	Lights    []lightDesc             `yaml:"lights"`
	SkyBox    *skyBoxDesc             `yaml:"skybox"`
	Terrain   *terrainDesc            `yaml:"terrain"`
}

type transformDesc struct {
	Translate [3]float32  `yaml:"translate"`
	Rotate    [3]float32  `yaml:"rotate"` // euler degrees, applied Z*Y*X
	Scale     *[3]float32 `yaml:"scale"`
}

func (t transformDesc) matrix() mgl32.Mat4 {
	scale := mgl32.Vec3{1, 1, 1}
	if t.Scale != nil {
		scale = mgl32.Vec3(*t.Scale)
	}
	rot := mgl32.HomogRotate3DZ(mgl32.DegToRad(t.Rotate[2])).
		Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(t.Rotate[1]))).
		Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(t.Rotate[0])))
	return mgl32.Translate3D(t.Translate[0], t.Translate[1], t.Translate[2]).
		Mul4(rot).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}

type cameraDesc struct {
	Position [3]float32  `yaml:"position"`
	Target   [3]float32  `yaml:"target"`
	Up       *[3]float32 `yaml:"up"`
	Type     string      `yaml:"type"`
	FOV      float32     `yaml:"fov"` // degrees
	Near     float32     `yaml:"near"`
	Far      float32     `yaml:"far"`
}

type materialDesc struct {
	BaseColor *[4]float32 `yaml:"base_color"`
	Metallic  *float32    `yaml:"metallic"`
	Roughness *float32    `yaml:"roughness"`
}

type nodeDesc struct {
	Name          string  `yaml:"name"`
	Parent        string  `yaml:"parent"`
	Geometry      string  `yaml:"geometry"` // cube | plane | empty
	Size          float32 `yaml:"size"`
	Material      string  `yaml:"material"`
	Hidden        bool    `yaml:"hidden"`
	RigidBody     bool    `yaml:"rigid_body"`
	transformDesc `yaml:",inline"`
}

type curveDesc struct {
	Type   string    `yaml:"type"`
	Params []float32 `yaml:"params"` // up to 5, missing ones are 0
}

// cone used by spot lights that do not describe their angle attenuation
var defaultSpotCone = curveDesc{Type: "smooth", Params: []float32{45, 30}}

type lightDesc struct {
	Name          string     `yaml:"name"`
	Parent        string     `yaml:"parent"`
	Type          string     `yaml:"type"`
	Color         [3]float32 `yaml:"color"`
	Intensity     float32    `yaml:"intensity"`
	CastShadow    bool       `yaml:"cast_shadow"`
	Distance      curveDesc  `yaml:"distance_attenuation"`
	Angle         curveDesc  `yaml:"angle_attenuation"` // degrees
	Size          [2]float32 `yaml:"size"`
	transformDesc `yaml:",inline"`
}

type skyBoxDesc struct {
	Color      [4]float32 `yaml:"color"`
	Irradiance [4]float32 `yaml:"irradiance"`
	Size       int        `yaml:"size"`
}

type terrainDesc struct {
	Height float32 `yaml:"height"`
	Size   int     `yaml:"size"`
}

// LoadFile reads and decodes a scene description file
func LoadFile(path string, bodies BodyAllocator) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read scene file: %w", err)
	}
	s, err := Decode(data, bodies)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return s, nil
}

// Decode builds a snapshot from a YAML description. bodies may be nil, in which
// case rigid_body flags are ignored.
func Decode(data []byte, bodies BodyAllocator) (*Snapshot, error) {
	var d Description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("could not parse scene: %w", err)
	}

	s := New()
	for name, m := range d.Materials {
		mat := &Material{Name: name}
		if m.BaseColor != nil {
			mat.BaseColor = SolidTexture(name+".base_color", toRGBA(*m.BaseColor), 1)
		}
		if m.Metallic != nil {
			mat.Metallic = SolidTexture(name+".metallic", gray(*m.Metallic), 1)
		}
		if m.Roughness != nil {
			mat.Roughness = SolidTexture(name+".roughness", gray(*m.Roughness), 1)
		}
		s.Materials[name] = mat
	}

	byName := make(map[string]NodeID)
	parentOf := make(map[NodeID]string)

	if c := d.Camera; c != nil {
		up := mgl32.Vec3{0, 0, 1}
		if c.Up != nil {
			up = mgl32.Vec3(*c.Up)
		}
		view := mgl32.LookAtV(mgl32.Vec3(c.Position), mgl32.Vec3(c.Target), up)
		cam := &Camera{Type: CameraPerspective, FOV: mgl32.DegToRad(orDefault(c.FOV, 60)), Near: orDefault(c.Near, 1), Far: orDefault(c.Far, 100)}
		if c.Type == "orthographic" {
			cam.Type = CameraOrthographic
		}
		s.Cameras["camera"] = cam
		byName["camera"] = s.AddNode(Node{Name: "camera", Kind: NodeCamera, Parent: NoNode, Transform: view.Inv(), Visible: true, Object: "camera"})
	}

	for i, n := range d.Nodes {
		if n.Name == "" {
			n.Name = fmt.Sprintf("node%d", i)
		}
		if _, dup := byName[n.Name]; dup {
			return nil, fmt.Errorf("duplicate node name %q", n.Name)
		}
		node := Node{Name: n.Name, Kind: NodeEmpty, Parent: NoNode, Transform: n.matrix(), Visible: !n.Hidden}
		if n.Geometry != "" && n.Geometry != "empty" {
			mesh, err := primitive(n.Geometry, orDefault(n.Size, 1))
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", n.Name, err)
			}
			s.Geometries[n.Name] = &Geometry{Mesh: mesh}
			node.Kind = NodeGeometry
			node.Object = n.Name
			if n.Material != "" {
				if _, ok := s.Materials[n.Material]; !ok {
					return nil, fmt.Errorf("node %q: unknown material %q", n.Name, n.Material)
				}
				node.Materials = []string{n.Material}
			}
		}
		if n.RigidBody && bodies != nil {
			node.RigidBody = bodies.Create(node.Transform)
		}
		id := s.AddNode(node)
		byName[n.Name] = id
		if n.Parent != "" {
			parentOf[id] = n.Parent
		}
	}

	for i, l := range d.Lights {
		if l.Name == "" {
			l.Name = fmt.Sprintf("light%d", i)
		}
		if _, dup := byName[l.Name]; dup {
			return nil, fmt.Errorf("duplicate node name %q", l.Name)
		}
		light, err := l.object(uint64(i + 1))
		if err != nil {
			return nil, fmt.Errorf("light %q: %w", l.Name, err)
		}
		s.Lights[l.Name] = light
		id := s.AddNode(Node{Name: l.Name, Kind: NodeLight, Parent: NoNode, Transform: l.matrix(), Visible: true, Object: l.Name})
		byName[l.Name] = id
		if l.Parent != "" {
			parentOf[id] = l.Parent
		}
	}

	for id, parent := range parentOf {
		pid, ok := byName[parent]
		if !ok {
			return nil, fmt.Errorf("node %q: unknown parent %q", s.Nodes[id].Name, parent)
		}
		s.Nodes[id].Parent = pid
	}

	if sb := d.SkyBox; sb != nil {
		size := sb.Size
		if size <= 0 {
			size = 16
		}
		box := &SkyBox{}
		for i := range box.Faces {
			c := sb.Color
			if i >= 6 && i < 12 && sb.Irradiance != ([4]float32{}) {
				c = sb.Irradiance
			}
			box.Faces[i] = SolidTexture(fmt.Sprintf("skybox.%d", i), toRGBA(c), size)
		}
		s.SkyBox = box
	}
	if t := d.Terrain; t != nil {
		size := t.Size
		if size <= 0 {
			size = 64
		}
		s.Terrain = &Terrain{HeightMap: SolidTexture("terrain.height", gray(t.Height), size)}
	}

	if err := s.UpdateTransforms(); err != nil {
		return nil, err
	}
	return s, nil
}

func (l lightDesc) object(id uint64) (*Light, error) {
	light := &Light{
		ID:         id,
		Color:      mgl32.Vec4{l.Color[0], l.Color[1], l.Color[2], 1},
		Intensity:  orDefault(l.Intensity, 1),
		CastShadow: l.CastShadow,
		Dimension:  mgl32.Vec2(l.Size),
	}
	switch l.Type {
	case "infinity", "directional", "sun":
		light.Type = LightInfinity
	case "spot":
		light.Type = LightSpot
	case "area":
		light.Type = LightArea
	case "omni", "point", "":
		light.Type = LightOmni
	default:
		return nil, fmt.Errorf("unknown light type %q", l.Type)
	}

	var err error
	if light.DistanceAttenuation, err = l.Distance.curve(false); err != nil {
		return nil, err
	}
	angle := l.Angle
	if light.Type == LightSpot && (angle.Type == "" || angle.Type == "none") {
		angle = defaultSpotCone
	}
	if light.AngleAttenuation, err = angle.curve(true); err != nil {
		return nil, err
	}
	return light, nil
}

func (c curveDesc) curve(angles bool) (AttenCurve, error) {
	var out AttenCurve
	if len(c.Params) > len(out.Params) {
		return out, fmt.Errorf("attenuation curve takes at most %d params, got %d", len(out.Params), len(c.Params))
	}
	copy(out.Params[:], c.Params)
	switch c.Type {
	case "", "none":
		out.Type = AttenNone
	case "linear":
		out.Type = AttenLinear
	case "smooth":
		out.Type = AttenSmooth
	case "inverse":
		out.Type = AttenInverse
	case "inverse_square":
		out.Type = AttenInverseSquare
	case "exp":
		out.Type = AttenExp
	default:
		return out, fmt.Errorf("unknown attenuation curve %q", c.Type)
	}
	if angles && (out.Type == AttenLinear || out.Type == AttenSmooth) {
		out.Params[0] = mgl32.DegToRad(out.Params[0])
		out.Params[1] = mgl32.DegToRad(out.Params[1])
	}
	return out, nil
}

func primitive(kind string, size float32) (*Mesh, error) {
	switch kind {
	case "cube":
		return Cube(size / 2), nil
	case "plane":
		return Plane(size / 2), nil
	}
	return nil, fmt.Errorf("unknown geometry %q", kind)
}

func orDefault(v, def float32) float32 {
	if v == 0 {
		return def
	}
	return v
}

func toRGBA(c [4]float32) color.RGBA {
	if c[3] == 0 {
		c[3] = 1
	}
	return color.RGBA{unit(c[0]), unit(c[1]), unit(c[2]), unit(c[3])}
}

func gray(v float32) color.RGBA {
	g := unit(v)
	return color.RGBA{g, g, g, 255}
}

func unit(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
