package shade

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	math "github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/math/ms1"
)

// Color is a packed 24 bit RGB color 0x00RRGGBB. It implements [color.Color] and is always opaque.
type Color uint32

var _ color.Color = Color(0)

// Named colors used by the renderer for rays that did not hit a surface.
const (
	Black   Color = 0x000000
	White   Color = 0xffffff
	Magenta Color = 0xff00ff
)

// Pack returns the color with the given 8 bit channels.
func Pack(r, g, b uint8) Color {
	return Color(r)<<16 | Color(g)<<8 | Color(b)
}

// RGB returns the 8 bit channels of c.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// RGBA implements [color.Color].
func (c Color) RGBA() (r, g, b, a uint32) {
	r8, g8, b8 := c.RGB()
	r = uint32(r8)
	r |= r << 8
	g = uint32(g8)
	g |= g << 8
	b = uint32(b8)
	b |= b << 8
	return r, g, b, 0xffff
}

// String returns the color in #rrggbb notation.
func (c Color) String() string {
	return fmt.Sprintf("#%06x", uint32(c)&0xffffff)
}

// FromColor converts any color to a packed Color discarding alpha.
func FromColor(c color.Color) Color {
	if pc, ok := c.(Color); ok {
		return pc
	}
	r, g, b, _ := c.RGBA()
	return Pack(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

// ParseHex parses a color in #rrggbb or rrggbb notation.
func ParseHex(s string) (Color, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 {
		return 0, fmt.Errorf("color %q not in #rrggbb notation", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("color %q: %w", s, err)
	}
	return Color(v), nil
}

// Light is a directional light driving a single color channel.
type Light struct {
	// Dir is the unit direction the light is compared against the surface normal.
	Dir ms3.Vec
	// Exponent sharpens the falloff of the lit area.
	Exponent float32
}

// NewLight returns a light with the direction normalized. dir must not be the zero vector.
func NewLight(dir ms3.Vec, exponent float32) Light {
	return Light{Dir: ms3.Unit(dir), Exponent: exponent}
}

// Shader converts a hit into a color. The zero value is not useful; start from [DefaultShader].
// A Shader holds no mutable state and is safe for concurrent use.
type Shader struct {
	// Lights for the red, green and blue channels, in that order.
	Lights [3]Light
	// Ambient is added to every channel's light term.
	Ambient float32
	// ChannelMax is the upper clamp of a channel's light term.
	ChannelMax float32
	// Eye is the position of the highlight shared by all channels.
	Eye         ms3.Vec
	EyeExponent float32
	// CheckerScale is the number of checker cells per world unit.
	CheckerScale float32
	// Bright and Dim are the channel scales of even and odd checker cells, in [0, 255].
	Bright, Dim float32
	// QualityPower is the exponent applied to hit quality. Low quality hits darken.
	QualityPower float32
}

// DefaultShader returns the shader of the demo scene.
func DefaultShader() Shader {
	return Shader{
		Lights: [3]Light{
			NewLight(ms3.Vec{X: -0.25, Y: -0.5, Z: -1}, 8),
			NewLight(ms3.Vec{X: -0.55, Y: -0.3, Z: -1}, 6),
			NewLight(ms3.Vec{X: 0.25, Y: 0.2, Z: 0.2}, 3),
		},
		Ambient:      0.15,
		ChannelMax:   0.9,
		Eye:          ms3.Vec{X: 5, Y: 2, Z: -8},
		EyeExponent:  80,
		CheckerScale: 2,
		Bright:       255,
		Dim:          192,
		QualityPower: 2,
	}
}

// Validate checks the shader for parameters outside their valid ranges.
func (sh *Shader) Validate() error {
	var errs []error
	for i, l := range sh.Lights {
		if math.Abs(ms3.Norm(l.Dir)-1) > 1e-3 {
			errs = append(errs, fmt.Errorf("light %d direction %v not unit length", i, l.Dir))
		}
	}
	if !(sh.ChannelMax >= 0 && sh.ChannelMax <= 1) {
		errs = append(errs, fmt.Errorf("channel max %v outside [0,1]", sh.ChannelMax))
	}
	if !(sh.CheckerScale > 0) {
		errs = append(errs, errors.New("checker scale must be positive"))
	}
	if !(sh.Bright >= 0 && sh.Bright <= 255) || !(sh.Dim >= 0 && sh.Dim <= 255) {
		errs = append(errs, fmt.Errorf("checker scales %v,%v outside [0,255]", sh.Bright, sh.Dim))
	}
	if sh.QualityPower < 0 {
		errs = append(errs, errors.New("negative quality power"))
	}
	return errors.Join(errs...)
}

// Shade returns the color of a surface at point with unit outward normal and hit quality in [0,1].
func (sh *Shader) Shade(point, normal ms3.Vec, quality float32) Color {
	// Even exponents also light faces turned away from Eye.
	toEye := ms3.Unit(ms3.Sub(point, sh.Eye))
	eye := ms1.Clamp(powf(ms3.Dot(normal, toEye), sh.EyeExponent), 0, 1)
	checker := sh.Checker(point)
	q := math.Pow(quality, sh.QualityPower)
	var ch [3]uint8
	for i, l := range sh.Lights {
		light := ms1.Clamp(powf(ms3.Dot(normal, l.Dir), l.Exponent)+sh.Ambient, 0, sh.ChannelMax)
		v := ms1.Clamp(eye+light, 0, 1) * q * checker
		ch[i] = uint8(ms1.Clamp(v, 0, 255))
	}
	return Pack(ch[0], ch[1], ch[2])
}

// Checker returns the channel scale of the checkerboard cell containing point.
func (sh *Shader) Checker(point ms3.Vec) float32 {
	s := sh.CheckerScale
	cell := int(math.Floor(point.X*s)) + int(math.Floor(point.Y*s)) + int(math.Floor(point.Z*s))
	if cell%2 == 0 {
		return sh.Bright
	}
	return sh.Dim
}

// powf is x**y with NaN results from negative bases and fractional exponents mapped to zero.
func powf(x, y float32) float32 {
	v := math.Pow(x, y)
	if math.IsNaN(v) {
		return 0
	}
	return v
}
