package glsl

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace"
	"github.com/soypat/sdftrace/march"
	"github.com/soypat/sdftrace/render"
	"github.com/soypat/sdftrace/shade"
)

//go:embed sdflib.glsl
var sdfLibrary []byte

//go:embed raymarch.frag.tmpl
var raymarchFooter []byte

// VertexSource is the vertex shader of a full screen quad with attribute aPos in [-1,1]².
// It is meant to be paired with the fragment shaders written by [Programmer]. It is not null terminated.
//
//go:embed quad.vert
var VertexSource string

// Uniform names used by the fragment shader.
const (
	// UniformTime is the float scene time.
	UniformTime = "uTime"
	// UniformResolution is the vec2 viewport size in pixels.
	UniformResolution = "uResolution"
)

// Programmer generates GLSL fragment shaders that march and shade a scene on the GPU.
type Programmer struct {
	version string
	scratch []byte
}

// NewDefaultProgrammer returns a Programmer targeting GLSL 4.60 core.
func NewDefaultProgrammer() *Programmer {
	return &Programmer{
		version: "460 core",
		scratch: make([]byte, 0, 4096),
	}
}

// WriteFragment writes a complete fragment shader that renders scene with the marching and
// shading parameters of cfg. The scene time is read from the [UniformTime] uniform so a single
// compiled program renders the whole animation. It returns the number of bytes written.
func (p *Programmer) WriteFragment(w io.Writer, scene *sdftrace.Scene, cfg render.Config) (int, error) {
	if scene == nil {
		return 0, errors.New("nil scene")
	}
	err := cfg.March.Validate()
	if err != nil {
		return 0, fmt.Errorf("march config: %w", err)
	}
	err = cfg.Shader.Validate()
	if err != nil {
		return 0, fmt.Errorf("shader config: %w", err)
	}
	b := p.scratch[:0]
	b = append(b, "#version "...)
	b = append(b, p.version...)
	b = append(b, '\n')
	b = append(b, "uniform float "+UniformTime+";\nuniform vec2 "+UniformResolution+";\nout vec4 fragColor;\n\n"...)
	b = appendMarchDefines(b, cfg.March)
	b = appendCameraDecl(b, scene.Camera())
	b = appendShaderDecl(b, &cfg.Shader, cfg.Background, cfg.Failure)
	b = append(b, '\n')
	b = append(b, sdfLibrary...)
	b = append(b, '\n')
	b = AppendSceneSDF(b, scene)
	b = append(b, raymarchFooter...)
	p.scratch = b
	return w.Write(b)
}

// FragmentSource is a convenience wrapper around [Programmer.WriteFragment] that returns the
// shader as a null terminated string ready for compilation.
func FragmentSource(scene *sdftrace.Scene, cfg render.Config) (string, error) {
	var buf bytes.Buffer
	_, err := NewDefaultProgrammer().WriteFragment(&buf, scene, cfg)
	if err != nil {
		return "", err
	}
	buf.WriteByte(0)
	return buf.String(), nil
}

// AppendSceneSDF appends the declaration of the scene distance function
//
//	float sdf(vec3 p)
//
// which folds the smooth union of all primitives at time uTime.
func AppendSceneSDF(b []byte, scene *sdftrace.Scene) []byte {
	b = append(b, "float sdf(vec3 p) {\n\tfloat t = "+UniformTime+";\n"...)
	period := scene.Period()
	repeat := period != (ms3.Vec{})
	b = append(b, "\tvec3 q = "...)
	if repeat {
		b = append(b, "repeatCell(p, "...)
		b = appendVec3(b, period)
		b = append(b, ");\n"...)
	} else {
		b = append(b, "p;\n"...)
	}
	b = append(b, "\tfloat k = "...)
	b = AppendFloat(b, '-', '.', scene.K())
	b = append(b, ";\n\tfloat d = 3.4e38;\n"...)
	for _, prim := range scene.Primitives() {
		b = append(b, "\td = smin(d, "...)
		b = appendPrimitive(b, prim)
		b = append(b, ", k);\n"...)
	}
	b = append(b, "\treturn d;\n}\n"...)
	return b
}

func appendPrimitive(b []byte, prim sdftrace.Primitive) []byte {
	switch prim.Kind() {
	case sdftrace.KindPlane:
		b = append(b, "sdPlane(p, "...)
		b = appendVec3(b, prim.Normal())
		b = append(b, ", "...)
		b = AppendFloat(b, '-', '.', prim.Offset())
		return append(b, ')')
	case sdftrace.KindSphere:
		b = append(b, "sdSphere("...)
		b = appendCentered(b, prim)
		b = AppendFloat(b, '-', '.', prim.Radius())
		return append(b, ')')
	case sdftrace.KindBox:
		b = append(b, "sdBox("...)
		b = appendCentered(b, prim)
		b = appendVec3(b, prim.HalfExtents())
		return append(b, ')')
	}
	panic("undefined primitive " + prim.Kind().String())
}

// appendCentered appends the query point relative to the primitive's center followed by a comma.
func appendCentered(b []byte, prim sdftrace.Primitive) []byte {
	b = append(b, "q - "...)
	orbit := prim.Orbiting()
	if orbit.IsZero() {
		b = appendVec3(b, prim.Center(0))
		return append(b, ", "...)
	}
	b = append(b, '(')
	b = appendVec3(b, prim.Base())
	b = append(b, " + orbit(t, "...)
	b = AppendFloat(b, '-', '.', orbit.Phase)
	b = append(b, ", "...)
	b = appendVec3(b, orbit.Freq)
	b = append(b, ", "...)
	b = appendVec3(b, orbit.Amp)
	return append(b, ")), "...)
}

func appendMarchDefines(b []byte, cfg march.Config) []byte {
	b = AppendDefineDecl(b, "MARCH_MIN", string(AppendFloat(nil, '-', '.', cfg.Min)))
	b = AppendDefineDecl(b, "MARCH_MAX", string(AppendFloat(nil, '-', '.', cfg.Max)))
	b = AppendDefineDecl(b, "MARCH_ITERATIONS", strconv.Itoa(cfg.Iterations))
	b = AppendDefineDecl(b, "NORMAL_EPS", string(AppendFloat(nil, '-', '.', cfg.NormalEpsilon)))
	if cfg.Quality == march.QualityTravel {
		b = AppendDefineDecl(b, "QUALITY_TRAVEL", "1")
	}
	return b
}

func appendCameraDecl(b []byte, cam sdftrace.Camera) []byte {
	fwd, right, up, focal := cam.Basis()
	b = AppendConstVec3Decl(b, "CAM_ORIGIN", cam.Origin())
	b = AppendConstVec3Decl(b, "CAM_FWD", fwd)
	b = AppendConstVec3Decl(b, "CAM_RIGHT", right)
	b = AppendConstVec3Decl(b, "CAM_UP", up)
	b = AppendConstFloatDecl(b, "CAM_FOCAL", focal)
	b = AppendConstFloatDecl(b, "CAM_ASPECT", cam.Aspect())
	return b
}

func appendShaderDecl(b []byte, sh *shade.Shader, bg, fail shade.Color) []byte {
	b = AppendConstVec3Decl(b, "LIGHT_R", sh.Lights[0].Dir)
	b = AppendConstVec3Decl(b, "LIGHT_G", sh.Lights[1].Dir)
	b = AppendConstVec3Decl(b, "LIGHT_B", sh.Lights[2].Dir)
	b = AppendConstVec3Decl(b, "LIGHT_EXPONENTS", ms3.Vec{X: sh.Lights[0].Exponent, Y: sh.Lights[1].Exponent, Z: sh.Lights[2].Exponent})
	b = AppendConstFloatDecl(b, "AMBIENT", sh.Ambient)
	b = AppendConstFloatDecl(b, "CHANNEL_MAX", sh.ChannelMax)
	b = AppendConstVec3Decl(b, "EYE", sh.Eye)
	b = AppendConstFloatDecl(b, "EYE_EXPONENT", sh.EyeExponent)
	b = AppendConstFloatDecl(b, "CHECKER_SCALE", sh.CheckerScale)
	b = AppendConstFloatDecl(b, "CHECKER_BRIGHT", sh.Bright)
	b = AppendConstFloatDecl(b, "CHECKER_DIM", sh.Dim)
	b = AppendConstFloatDecl(b, "QUALITY_POWER", sh.QualityPower)
	b = AppendConstVec3Decl(b, "BACKGROUND", colorVec(bg))
	b = AppendConstVec3Decl(b, "FAILURE", colorVec(fail))
	return b
}

func colorVec(c shade.Color) ms3.Vec {
	r, g, b := c.RGB()
	return ms3.Vec{X: float32(r) / 255, Y: float32(g) / 255, Z: float32(b) / 255}
}

func AppendDefineDecl(b []byte, aliasToDefine, aliasReplace string) []byte {
	b = append(b, "#define "...)
	b = append(b, aliasToDefine...)
	b = append(b, ' ')
	b = append(b, aliasReplace...)
	b = append(b, '\n')
	return b
}

func AppendConstVec3Decl(b []byte, vec3Varname string, v ms3.Vec) []byte {
	b = append(b, "const vec3 "...)
	b = append(b, vec3Varname...)
	b = append(b, '=')
	b = appendVec3(b, v)
	b = append(b, ';', '\n')
	return b
}

func AppendConstFloatDecl(b []byte, floatVarname string, v float32) []byte {
	b = append(b, "const float "...)
	b = append(b, floatVarname...)
	b = append(b, '=')
	b = AppendFloat(b, '-', '.', v)
	b = append(b, ';', '\n')
	return b
}

func appendVec3(b []byte, v ms3.Vec) []byte {
	b = append(b, "vec3("...)
	b = AppendFloats(b, ',', '-', '.', v.X, v.Y, v.Z)
	return append(b, ')')
}

const decimalDigits = 9

// AppendFloat appends v in fixed point notation with trailing zeros removed.
// neg and decimal replace the minus sign and decimal point, respectively.
func AppendFloat(b []byte, neg, decimal byte, v float32) []byte {
	start := len(b)
	b = strconv.AppendFloat(b, float64(v), 'f', decimalDigits, 32)
	idx := bytes.IndexByte(b[start:], '.')
	if decimal != '.' && idx >= 0 {
		b[start+idx] = decimal
	}
	if b[start] == '-' {
		b[start] = neg
	}
	end := len(b)
	for i := len(b) - 1; idx >= 0 && i > idx+start && b[i] == '0'; i-- {
		end--
	}
	return b[:end]
}

func AppendFloats(b []byte, sep, neg, decimal byte, s ...float32) []byte {
	for i, v := range s {
		b = AppendFloat(b, neg, decimal, v)
		if sep != 0 && i != len(s)-1 {
			b = append(b, sep)
		}
	}
	return b
}
