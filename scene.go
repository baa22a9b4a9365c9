package sdftrace

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace/march"
)

var _ march.SDF3 = (*Scene)(nil)

// Scene is an ordered set of primitives blended together by [SmoothMin] and
// viewed through a [Camera]. A Scene is not modified after creation and is safe for concurrent use.
type Scene struct {
	prims []Primitive
	k     float32
	// period of domain repetition applied to spheres and boxes. Zero means no repetition.
	period ms3.Vec
	camera Camera
}

// NewScene creates a scene from at least one primitive. k is the smooth union blend radius and must be positive.
func (bld *Builder) NewScene(k float32, cam Camera, prims ...Primitive) *Scene {
	if !(k > 0) || !isFinite(k) {
		bld.shapeErrorf("scene blend radius must be positive and finite, got %v", k)
	}
	if len(prims) == 0 {
		bld.shapeErrorf("scene requires at least one primitive")
	}
	if !cam.valid() {
		bld.shapeErrorf("scene camera not initialized; use Builder.NewCamera")
	}
	for i := range prims {
		if prims[i].kind == kindUndefined {
			bld.shapeErrorf("scene primitive %d undefined", i)
		}
	}
	return &Scene{
		prims:  append([]Primitive(nil), prims...),
		k:      k,
		camera: cam,
	}
}

// Repeat returns a copy of s where spheres and boxes are tiled infinitely with the given period.
// Planes are not repeated. Every period component must be positive.
func (bld *Builder) Repeat(s *Scene, period ms3.Vec) *Scene {
	if !(period.X > 0 && period.Y > 0 && period.Z > 0) {
		bld.shapeErrorf("repeat period must be positive, got %v", period)
	}
	cp := *s
	cp.period = period
	return &cp
}

// WithCamera returns a copy of s viewed through cam.
func (s *Scene) WithCamera(cam Camera) *Scene {
	cp := *s
	cp.camera = cam
	return &cp
}

// Camera returns the scene's camera.
func (s *Scene) Camera() Camera { return s.camera }

// K returns the smooth union blend radius.
func (s *Scene) K() float32 { return s.k }

// Period returns the domain repetition period. The zero vector means no repetition.
func (s *Scene) Period() ms3.Vec { return s.period }

// Primitives returns the scene's primitives. The returned slice must not be modified.
func (s *Scene) Primitives() []Primitive { return s.prims }

// Evaluate implements [march.SDF3]. It returns the smooth union of all primitive distances at p at time t.
func (s *Scene) Evaluate(p ms3.Vec, t float32) float32 {
	q := p
	repeat := s.period != (ms3.Vec{})
	if repeat {
		q = Repeat(p, s.period)
	}
	d := float32(math32.MaxFloat32)
	for i := range s.prims {
		prim := &s.prims[i]
		if prim.kind == KindPlane {
			d = SmoothMin(d, prim.Distance(p, t), s.k)
		} else {
			d = SmoothMin(d, prim.Distance(q, t), s.k)
		}
	}
	return d
}

// Frozen returns a snapshot of the scene at time t where all orbiting primitives are
// placed at their position at t. Evaluating the snapshot at any time is equivalent to evaluating s at t.
func (s *Scene) Frozen(t float32) *Scene {
	cp := *s
	cp.prims = make([]Primitive, len(s.prims))
	for i := range s.prims {
		cp.prims[i] = s.prims[i].At(t)
	}
	return &cp
}

// Animated reports whether any primitive in the scene moves with time.
func (s *Scene) Animated() bool {
	for i := range s.prims {
		if !s.prims[i].orbit.IsZero() {
			return true
		}
	}
	return false
}

// NewDemoScene creates the animated demo scene: eight objects alternating between
// spheres and cubes orbiting between a floor and ceiling plane, viewed from z=-5.
func (bld *Builder) NewDemoScene(aspect float32) *Scene {
	const numObjects = 8
	cam := bld.NewCamera(ms3.Vec{Z: -5}, ms3.Vec{}, 45, aspect)
	prims := make([]Primitive, 0, numObjects+2)
	for i := 0; i < numObjects; i++ {
		orbit := Orbit{
			Phase: float32(i) * 16.37,
			Freq:  ms3.Vec{X: 1.31, Y: 0.31, Z: 0.17},
			Amp:   ms3.Vec{X: 2, Y: 4, Z: 2},
		}
		var prim Primitive
		if i%2 == 0 {
			prim = bld.NewSphere(ms3.Vec{}, 0.5)
		} else {
			prim = bld.NewCube(ms3.Vec{}, 0.5)
		}
		prims = append(prims, bld.Orbit(prim, orbit))
	}
	prims = append(prims,
		bld.NewPlane(ms3.Vec{Y: -1}, 3),
		bld.NewPlane(ms3.Vec{Y: 1}, 3),
	)
	return bld.NewScene(1, cam, prims...)
}
