package sdftrace

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// Kind identifies the shape of a [Primitive].
type Kind uint8

const (
	kindUndefined Kind = iota
	KindSphere
	KindPlane
	KindBox
)

func (k Kind) String() string {
	switch k {
	case KindSphere:
		return "sphere"
	case KindPlane:
		return "plane"
	case KindBox:
		return "box"
	default:
		return "undefined"
	}
}

// Primitive is one of a closed set of shapes: sphere, plane or axis-aligned box.
// Primitives are immutable values created by a [Builder].
type Primitive struct {
	kind Kind
	// pos is the center of spheres and boxes and the unit normal of planes.
	pos ms3.Vec
	// size holds box half-extents. Sphere radius is stored in size.X.
	size ms3.Vec
	// offset is the plane's signed offset along its normal.
	offset float32
	orbit  Orbit
}

// NewSphere creates a sphere centered at center of radius r.
func (bld *Builder) NewSphere(center ms3.Vec, r float32) Primitive {
	if r < 0 || !isFinite(r) {
		bld.shapeErrorf("negative or non-finite sphere radius %v", r)
	}
	return Primitive{kind: KindSphere, pos: center, size: ms3.Vec{X: r}}
}

// NewPlane creates a plane with the given normal and offset such that the distance
// to a point p is dot(p, n) + offset. The normal is normalized and must not be zero.
func (bld *Builder) NewPlane(normal ms3.Vec, offset float32) Primitive {
	n := ms3.Norm(normal)
	if n < epstol || !isFinite(n) {
		bld.shapeErrorf("zero or non-finite plane normal %v", normal)
		n = 1
	}
	return Primitive{kind: KindPlane, pos: ms3.Scale(1/n, normal), offset: offset}
}

// NewBox creates an axis-aligned box centered at center with half-extents
// halfExtents along each axis.
func (bld *Builder) NewBox(center, halfExtents ms3.Vec) Primitive {
	if halfExtents.X < 0 || halfExtents.Y < 0 || halfExtents.Z < 0 {
		bld.shapeErrorf("negative box half-extent %v", halfExtents)
	}
	return Primitive{kind: KindBox, pos: center, size: halfExtents}
}

// NewCube creates an axis-aligned cube of half side length h.
func (bld *Builder) NewCube(center ms3.Vec, h float32) Primitive {
	return bld.NewBox(center, ms3.Vec{X: h, Y: h, Z: h})
}

// Orbit returns p moving along orbit o. Planes have no center and may not orbit.
func (bld *Builder) Orbit(p Primitive, o Orbit) Primitive {
	if p.kind == KindPlane {
		bld.shapeErrorf("plane primitive can not orbit")
		return p
	}
	p.orbit = o
	return p
}

// Kind returns the shape of the primitive.
func (p Primitive) Kind() Kind { return p.kind }

// Radius returns the sphere radius. Zero for other kinds.
func (p Primitive) Radius() float32 {
	if p.kind != KindSphere {
		return 0
	}
	return p.size.X
}

// HalfExtents returns the box half-extents. Zero for other kinds.
func (p Primitive) HalfExtents() ms3.Vec {
	if p.kind != KindBox {
		return ms3.Vec{}
	}
	return p.size
}

// Normal returns the plane's unit normal. Zero for other kinds.
func (p Primitive) Normal() ms3.Vec {
	if p.kind != KindPlane {
		return ms3.Vec{}
	}
	return p.pos
}

// Offset returns the plane offset. Zero for other kinds.
func (p Primitive) Offset() float32 { return p.offset }

// Orbiting returns the primitive's orbit. The zero Orbit means the primitive is static.
func (p Primitive) Orbiting() Orbit { return p.orbit }

// Base returns the center of a sphere or box before the orbit offset is applied. Planes return the zero vector.
func (p Primitive) Base() ms3.Vec {
	if p.kind == KindPlane {
		return ms3.Vec{}
	}
	return p.pos
}

// Center returns the center of a sphere or box at time t. Planes return the zero vector.
func (p Primitive) Center(t float32) ms3.Vec {
	if p.kind == KindPlane {
		return ms3.Vec{}
	}
	if p.orbit.IsZero() {
		return p.pos
	}
	return ms3.Add(p.pos, p.orbit.Offset(t))
}

// At returns the primitive with its orbit evaluated at time t and removed,
// resulting in a static primitive at the position it has at t.
func (p Primitive) At(t float32) Primitive {
	if p.orbit.IsZero() {
		return p
	}
	p.pos = p.Center(t)
	p.orbit = Orbit{}
	return p
}

// Distance evaluates the signed distance from pos to the primitive's surface at time t.
func (p Primitive) Distance(pos ms3.Vec, t float32) float32 {
	switch p.kind {
	case KindSphere:
		return SphereSDF(ms3.Sub(pos, p.Center(t)), p.size.X)
	case KindPlane:
		return PlaneSDF(pos, p.pos, p.offset)
	case KindBox:
		return BoxSDF(ms3.Sub(pos, p.Center(t)), p.size)
	}
	panic("undefined primitive; create primitives with a Builder")
}

// SphereSDF is the exact distance from p to a sphere of radius r centered at the origin.
func SphereSDF(p ms3.Vec, r float32) float32 {
	return ms3.Norm(p) - r
}

// PlaneSDF is the signed distance from p to the half-space of unit normal n and offset d0.
func PlaneSDF(p, n ms3.Vec, d0 float32) float32 {
	return ms3.Dot(p, n) + d0
}

// BoxSDF is the distance from p to an axis-aligned box of half-extents b centered at the origin.
// It is exact outside the box and zero inside it.
func BoxSDF(p, b ms3.Vec) float32 {
	q := ms3.MaxElem(ms3.Sub(ms3.AbsElem(p), b), ms3.Vec{})
	return ms3.Norm(q)
}

// Orbit describes periodic motion of a primitive's center around its resting position:
//
//	offset(t) = (Amp.X*sin((t+Phase)*Freq.X), Amp.Y*cos((t+Phase)*Freq.Y), Amp.Z*sin((t+Phase)*Freq.Z))
type Orbit struct {
	Phase float32
	Freq  ms3.Vec
	Amp   ms3.Vec
}

// IsZero reports whether the orbit produces no motion.
func (o Orbit) IsZero() bool {
	return o.Amp == ms3.Vec{}
}

// Offset returns the displacement of the orbit at time t.
func (o Orbit) Offset(t float32) ms3.Vec {
	t += o.Phase
	return ms3.Vec{
		X: o.Amp.X * math32.Sin(t*o.Freq.X),
		Y: o.Amp.Y * math32.Cos(t*o.Freq.Y),
		Z: o.Amp.Z * math32.Sin(t*o.Freq.Z),
	}
}
