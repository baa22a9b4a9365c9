package sdfaux

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace"
	"github.com/soypat/sdftrace/march"
	"github.com/soypat/sdftrace/render"
	"github.com/soypat/sdftrace/shade"
)

// SceneConfig is the JSON description of a scene and how to render it.
// When Demo is set the demo scene is used and the primitive lists must be empty.
type SceneConfig struct {
	Demo    bool         `json:"demo,omitempty"`
	Camera  CameraCfg    `json:"camera"`
	Blend   float32      `json:"blend"`
	Repeat  *[3]float32  `json:"repeat,omitempty"`
	Spheres []SphereCfg  `json:"spheres,omitempty"`
	Boxes   []BoxCfg     `json:"boxes,omitempty"`
	Planes  []PlaneCfg   `json:"planes,omitempty"`
	Render  RenderCfg    `json:"render"`
	Image   ImageSizeCfg `json:"image"`
}

type CameraCfg struct {
	Origin [3]float32 `json:"origin"`
	Target [3]float32 `json:"target"`
	// FOV is the vertical field of view in degrees.
	FOV float32 `json:"fov"`
	// Aspect of zero is derived from the image size.
	Aspect float32 `json:"aspect,omitempty"`
}

type OrbitCfg struct {
	Phase float32    `json:"phase"`
	Freq  [3]float32 `json:"freq"`
	Amp   [3]float32 `json:"amp"`
}

type SphereCfg struct {
	Center [3]float32 `json:"center"`
	Radius float32    `json:"radius"`
	Orbit  *OrbitCfg  `json:"orbit,omitempty"`
}

type BoxCfg struct {
	Center      [3]float32 `json:"center"`
	HalfExtents [3]float32 `json:"halfExtents"`
	Orbit       *OrbitCfg  `json:"orbit,omitempty"`
}

type PlaneCfg struct {
	Normal [3]float32 `json:"normal"`
	Offset float32    `json:"offset"`
}

// RenderCfg overrides the defaults of [render.DefaultConfig]. Zero fields keep the default.
type RenderCfg struct {
	Iterations int     `json:"iterations,omitempty"`
	Min        float32 `json:"min,omitempty"`
	Max        float32 `json:"max,omitempty"`
	// Quality is "iterations" (default) or "travel".
	Quality    string `json:"quality,omitempty"`
	Workers    int    `json:"workers,omitempty"`
	Background string `json:"background,omitempty"`
	Failure    string `json:"failure,omitempty"`
}

type ImageSizeCfg struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	Scale  int `json:"scale,omitempty"`
}

// Default image size of a scene config.
const (
	DefaultWidth  = 320
	DefaultHeight = 200
)

// LoadSceneConfig reads and parses the JSON scene config at path.
func LoadSceneConfig(path string) (*SceneConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseSceneConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseSceneConfig parses a JSON scene config. Unknown fields are rejected.
func ParseSceneConfig(data []byte) (*SceneConfig, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var cfg SceneConfig
	err := dec.Decode(&cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Image.Width <= 0 {
		cfg.Image.Width = DefaultWidth
	}
	if cfg.Image.Height <= 0 {
		cfg.Image.Height = DefaultHeight
	}
	if cfg.Image.Scale <= 0 {
		cfg.Image.Scale = 1
	}
	if cfg.Demo {
		if len(cfg.Spheres)+len(cfg.Boxes)+len(cfg.Planes) > 0 {
			return nil, errors.New("demo scene config can not list primitives")
		}
	} else if len(cfg.Spheres)+len(cfg.Boxes)+len(cfg.Planes) == 0 {
		return nil, errors.New("scene config has no primitives")
	}
	return &cfg, nil
}

// Aspect returns the camera aspect ratio, derived from the image size when not set.
func (cfg *SceneConfig) Aspect() float32 {
	if cfg.Camera.Aspect > 0 {
		return cfg.Camera.Aspect
	}
	return float32(cfg.Image.Width) / float32(cfg.Image.Height)
}

// Build creates the scene described by cfg. Construction errors are returned instead of panicking.
// Errors accumulated in bld are cleared.
func (cfg *SceneConfig) Build(bld *sdftrace.Builder) (*sdftrace.Scene, error) {
	flags := bld.Flags()
	bld.SetFlags(flags | sdftrace.FlagNoDimensionPanic)
	defer func() {
		bld.ClearErrors()
		bld.SetFlags(flags)
	}()
	var scene *sdftrace.Scene
	if cfg.Demo {
		scene = bld.NewDemoScene(cfg.Aspect())
		if cfg.Camera.FOV != 0 {
			scene = scene.WithCamera(cfg.camera(bld))
		}
	} else {
		prims := make([]sdftrace.Primitive, 0, len(cfg.Spheres)+len(cfg.Boxes)+len(cfg.Planes))
		for _, s := range cfg.Spheres {
			prims = append(prims, s.Orbit.apply(bld, bld.NewSphere(vec(s.Center), s.Radius)))
		}
		for _, b := range cfg.Boxes {
			prims = append(prims, b.Orbit.apply(bld, bld.NewBox(vec(b.Center), vec(b.HalfExtents))))
		}
		for _, p := range cfg.Planes {
			prims = append(prims, bld.NewPlane(vec(p.Normal), p.Offset))
		}
		scene = bld.NewScene(cfg.Blend, cfg.camera(bld), prims...)
	}
	if cfg.Repeat != nil {
		scene = bld.Repeat(scene, vec(*cfg.Repeat))
	}
	err := bld.Err()
	if err != nil {
		return nil, err
	}
	return scene, nil
}

// RenderConfig returns the render configuration with the overrides of cfg applied.
func (cfg *SceneConfig) RenderConfig() (render.Config, error) {
	rc := render.DefaultConfig()
	r := cfg.Render
	if r.Iterations != 0 {
		rc.March.Iterations = r.Iterations
	}
	if r.Min != 0 {
		rc.March.Min = r.Min
	}
	if r.Max != 0 {
		rc.March.Max = r.Max
	}
	switch r.Quality {
	case "", "iterations":
		rc.March.Quality = march.QualityIterations
	case "travel":
		rc.March.Quality = march.QualityTravel
	default:
		return render.Config{}, fmt.Errorf("unknown quality mode %q", r.Quality)
	}
	rc.Workers = r.Workers
	var err error
	if r.Background != "" {
		rc.Background, err = shade.ParseHex(r.Background)
		if err != nil {
			return render.Config{}, fmt.Errorf("background: %w", err)
		}
	}
	if r.Failure != "" {
		rc.Failure, err = shade.ParseHex(r.Failure)
		if err != nil {
			return render.Config{}, fmt.Errorf("failure: %w", err)
		}
	}
	err = rc.March.Validate()
	if err != nil {
		return render.Config{}, err
	}
	return rc, nil
}

// ImageConfig returns the image configuration for offline rendering of cfg.
func (cfg *SceneConfig) ImageConfig() (ImageConfig, error) {
	rc, err := cfg.RenderConfig()
	if err != nil {
		return ImageConfig{}, err
	}
	return ImageConfig{
		Width:  cfg.Image.Width,
		Height: cfg.Image.Height,
		Scale:  cfg.Image.Scale,
		Render: rc,
	}, nil
}

func (cfg *SceneConfig) camera(bld *sdftrace.Builder) sdftrace.Camera {
	c := cfg.Camera
	return bld.NewCamera(vec(c.Origin), vec(c.Target), c.FOV, c.Aspect)
}

func (o *OrbitCfg) apply(bld *sdftrace.Builder, prim sdftrace.Primitive) sdftrace.Primitive {
	if o == nil {
		return prim
	}
	return bld.Orbit(prim, sdftrace.Orbit{Phase: o.Phase, Freq: vec(o.Freq), Amp: vec(o.Amp)})
}

func vec(v [3]float32) ms3.Vec {
	return ms3.Vec{X: v[0], Y: v[1], Z: v[2]}
}
