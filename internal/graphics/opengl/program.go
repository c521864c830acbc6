package opengl

import (
	"embed"
	"fmt"
	"strings"

	"mini-gfx/internal/graphics/backend"

	"github.com/go-gl/gl/v4.1-core/gl"
)

//go:embed shaders/*
var shaderFS embed.FS

// uniform block binding points
const (
	bindingFrame  = 0
	bindingBatch  = 1
	bindingLights = 2
	bindingShadow = 3
)

// texture units
const (
	unitDiffuse = iota
	unitNormal
	unitMetallic
	unitRoughness
	unitAO
	unitHeight
	unitShadowMap
	unitGlobalShadowMap
	unitCubeShadowMap
	unitSkyBox
	unitBRDFLUT
)

var samplerUnits = map[string]int32{
	"diffuseMap":      unitDiffuse,
	"normalMap":       unitNormal,
	"metallicMap":     unitMetallic,
	"roughnessMap":    unitRoughness,
	"aoMap":           unitAO,
	"heightMap":       unitHeight,
	"shadowMap":       unitShadowMap,
	"globalShadowMap": unitGlobalShadowMap,
	"cubeShadowMap":   unitCubeShadowMap,
	"skyBox":          unitSkyBox,
	"brdfLUT":         unitBRDFLUT,
}

var uniformBlocks = map[string]uint32{
	"FrameBlock":  bindingFrame,
	"BatchBlock":  bindingBatch,
	"LightBlock":  bindingLights,
	"ShadowBlock": bindingShadow,
}

// programSources lists the vertex and fragment shader files of each pipeline
var programSources = map[backend.Pipeline][2]string{
	backend.PipelineForward:    {"forward.vert", "forward.frag"},
	backend.PipelineTerrain:    {"terrain.vert", "forward.frag"},
	backend.PipelineShadow:     {"shadow.vert", "shadow.frag"},
	backend.PipelineShadowCube: {"shadow.vert", "shadow_cube.frag"},
	backend.PipelineSkyBox:     {"skybox.vert", "skybox.frag"},
	backend.PipelineBRDF:       {"fullscreen.vert", "brdf.frag"},
}

// program is a linked shader program with its sampler and block bindings applied
type program struct {
	id uint32
}

// shaderSource prefixes body with the version line, the light capacity and
// the shared uniform blocks
func shaderSource(body string, maxLights int) (string, error) {
	common, err := shaderFS.ReadFile("shaders/common.glsl")
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("#version 410 core\n")
	fmt.Fprintf(&sb, "#define MAX_LIGHTS %d\n", maxLights)
	sb.Write(common)
	sb.WriteString("\n")
	sb.WriteString(body)
	return sb.String(), nil
}

func loadProgram(p backend.Pipeline, maxLights int) (*program, error) {
	files, ok := programSources[p]
	if !ok {
		return nil, fmt.Errorf("pipeline %v: %w", p, backend.ErrUnsupported)
	}
	var srcs [2]string
	for i, name := range files {
		body, err := shaderFS.ReadFile("shaders/" + name)
		if err != nil {
			return nil, fmt.Errorf("could not read shader %s: %v", name, err)
		}
		if srcs[i], err = shaderSource(string(body), maxLights); err != nil {
			return nil, err
		}
	}
	id, err := compileProgram(srcs[0], srcs[1])
	if err != nil {
		return nil, fmt.Errorf("pipeline %v: %w", p, err)
	}

	gl.UseProgram(id)
	for name, unit := range samplerUnits {
		if loc := gl.GetUniformLocation(id, gl.Str(name+"\x00")); loc >= 0 {
			gl.Uniform1i(loc, unit)
		}
	}
	for name, binding := range uniformBlocks {
		if idx := gl.GetUniformBlockIndex(id, gl.Str(name+"\x00")); idx != gl.INVALID_INDEX {
			gl.UniformBlockBinding(id, idx, binding)
		}
	}
	gl.UseProgram(0)
	return &program{id: id}, nil
}

func (p *program) use() {
	gl.UseProgram(p.id)
}

func (p *program) setFloat(name string, value float32) {
	if loc := gl.GetUniformLocation(p.id, gl.Str(name+"\x00")); loc >= 0 {
		gl.Uniform1f(loc, value)
	}
}

func (p *program) delete() {
	gl.DeleteProgram(p.id)
}

func compileProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	vertexShader, err := compileShader(vertexSrc, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	fragmentShader, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vertexShader)
		return 0, err
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)
	gl.DeleteShader(vertexShader)
	gl.DeleteShader(fragmentShader)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)

		return 0, fmt.Errorf("failed to link program: %v", log)
	}
	return program, nil
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)

		return 0, fmt.Errorf("failed to compile shader: %v", log)
	}
	return shader, nil
}
