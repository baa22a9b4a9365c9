package glsl_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace"
	"github.com/soypat/sdftrace/glsl"
	"github.com/soypat/sdftrace/march"
	"github.com/soypat/sdftrace/render"
)

func TestWriteFragment(t *testing.T) {
	var bld sdftrace.Builder
	scene := bld.NewDemoScene(1.6)
	if err := bld.Err(); err != nil {
		t.Fatal(err)
	}
	cfg := render.DefaultConfig()
	programmer := glsl.NewDefaultProgrammer()
	var source bytes.Buffer
	n, err := programmer.WriteFragment(&source, scene, cfg)
	if err != nil {
		t.Fatal(err)
	} else if n != source.Len() {
		t.Fatalf("wrote %d bytes but counted %d", source.Len(), n)
	}
	src := source.String()
	if !strings.HasPrefix(src, "#version 460 core\n") {
		t.Error("missing version directive")
	}
	for _, want := range []string{
		"uniform float " + glsl.UniformTime + ";",
		"uniform vec2 " + glsl.UniformResolution + ";",
		"float sdf(vec3 p) {",
		"void main() {",
		"#define MARCH_ITERATIONS 1024\n",
		"#define MARCH_MIN 0.01\n",
		"#define MARCH_MAX 30.\n",
		"const vec3 EYE=vec3(5.,2.,-8.);",
		"const float EYE_EXPONENT=80.;",
		"const vec3 FAILURE=vec3(1.,0.,1.);",
		"const vec3 CAM_ORIGIN=vec3(0.,0.,-5.);",
		"sdPlane(p, vec3(0.,-1.,0.), 3.)",
		"+ orbit(t, ",
		"vec3 q = p;",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("generated source missing %q", want)
		}
	}
	if got := strings.Count(src, "d = smin(d, "); got != len(scene.Primitives()) {
		t.Errorf("want %d smooth unions, got %d", len(scene.Primitives()), got)
	}
	if strings.Count(src, "sdSphere(q") != 4 || strings.Count(src, "sdBox(q") != 4 {
		t.Error("expected four spheres and four boxes")
	}
	if strings.Contains(src, "#define QUALITY_TRAVEL") {
		t.Error("travel quality defined for default config")
	}

	// Reusing the programmer yields identical output.
	var again bytes.Buffer
	_, err = programmer.WriteFragment(&again, scene, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if again.String() != src {
		t.Error("programmer output not reproducible")
	}
}

func TestWriteFragmentOptions(t *testing.T) {
	var bld sdftrace.Builder
	cam := bld.NewCamera(ms3.Vec{Z: -5}, ms3.Vec{}, 45, 0)
	scene := bld.NewScene(0.5, cam, bld.NewSphere(ms3.Vec{X: 1}, 0.25), bld.NewCube(ms3.Vec{}, 0.5))
	scene = bld.Repeat(scene, ms3.Vec{X: 4, Y: 4, Z: 4})
	if err := bld.Err(); err != nil {
		t.Fatal(err)
	}
	cfg := render.DefaultConfig()
	cfg.March.Quality = march.QualityTravel
	src, err := glsl.FragmentSource(scene, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(src, "\x00") {
		t.Error("fragment source not null terminated")
	}
	for _, want := range []string{
		"#define QUALITY_TRAVEL 1\n",
		"vec3 q = repeatCell(p, vec3(4.,4.,4.));",
		"float k = 0.5;",
		"sdSphere(q - vec3(1.,0.,0.), 0.25)",
		"sdBox(q - vec3(0.,0.,0.), vec3(0.5,0.5,0.5))",
		"const float CAM_ASPECT=0.;",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("generated source missing %q", want)
		}
	}
	if strings.Contains(src, "+ orbit(") {
		t.Error("static scene should not reference orbits")
	}

	cfg.March.Iterations = 0
	if _, err := glsl.FragmentSource(scene, cfg); err == nil {
		t.Error("expected error for invalid march config")
	}
	if _, err := glsl.FragmentSource(nil, render.DefaultConfig()); err == nil {
		t.Error("expected error for nil scene")
	}
}

func TestAppendFloat(t *testing.T) {
	var tests = []struct {
		v    float32
		want string
	}{
		{v: 0.5, want: "0.5"},
		{v: -2, want: "-2."},
		{v: 0, want: "0."},
		{v: 0.01, want: "0.01"},
		{v: 0.125, want: "0.125"},
		{v: 3.5, want: "3.5"},
		{v: -0.25, want: "-0.25"},
	}
	for _, test := range tests {
		got := string(glsl.AppendFloat(nil, '-', '.', test.v))
		if got != test.want {
			t.Errorf("AppendFloat(%v): want %q, got %q", test.v, test.want, got)
		}
	}
	if got := string(glsl.AppendFloat(nil, 'n', 'p', -1.5)); got != "n1p5" {
		t.Error("bad replaced sign and decimal point", got)
	}
}
