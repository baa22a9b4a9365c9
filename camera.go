package sdftrace

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace/march"
)

// Camera is a pinhole camera looking from an origin towards a target with
// a vertical field of view. The world up direction is +Y.
type Camera struct {
	origin ms3.Vec
	target ms3.Vec
	fov    float32
	aspect float32
	// Orthonormal basis and focal length derived from the fields above.
	fwd, right, up ms3.Vec
	focal          float32
}

// NewCamera creates a camera at origin looking at target. fovDeg is the vertical
// field of view in degrees in the open range (0, 180). aspect is the width/height
// ratio of the image; zero lets the renderer derive it from the viewport.
func (bld *Builder) NewCamera(origin, target ms3.Vec, fovDeg, aspect float32) Camera {
	if !(fovDeg > 0 && fovDeg < 180) {
		bld.shapeErrorf("camera field of view %v outside (0, 180) degrees", fovDeg)
		fovDeg = 45
	}
	if aspect < 0 || !isFinite(aspect) {
		bld.shapeErrorf("invalid camera aspect ratio %v", aspect)
		aspect = 0
	}
	look := ms3.Sub(target, origin)
	if ms3.Norm(look) < epstol {
		bld.shapeErrorf("camera origin and target coincide at %v", origin)
		look = ms3.Vec{Z: 1}
	}
	fwd := ms3.Unit(look)
	worldUp := ms3.Vec{Y: 1}
	if absf(ms3.Dot(fwd, worldUp)) > 1-epstol {
		// Looking straight up or down.
		worldUp = ms3.Vec{Z: 1}
	}
	right := ms3.Unit(ms3.Cross(worldUp, fwd))
	up := ms3.Cross(fwd, right)
	return Camera{
		origin: origin,
		target: target,
		fov:    fovDeg,
		aspect: aspect,
		fwd:    fwd,
		right:  right,
		up:     up,
		focal:  1 / math32.Tan(0.5*fovDeg*deg2rad),
	}
}

func (c Camera) valid() bool { return c.focal > 0 }

// Origin returns the position of the camera.
func (c Camera) Origin() ms3.Vec { return c.origin }

// Target returns the point the camera looks at.
func (c Camera) Target() ms3.Vec { return c.target }

// FOV returns the vertical field of view in degrees.
func (c Camera) FOV() float32 { return c.fov }

// Aspect returns the aspect ratio. Zero means the renderer derives it from the viewport.
func (c Camera) Aspect() float32 { return c.aspect }

// Basis returns the camera's forward, right and up unit vectors and its focal length.
func (c Camera) Basis() (fwd, right, up ms3.Vec, focal float32) {
	return c.fwd, c.right, c.up, c.focal
}

// Ray returns the unit ray leaving the camera through the screen coordinate (fx, fy).
// fy spans [-1, 1] from bottom to top of the image and fx spans [-aspect, aspect] from left to right.
// The screen center (0,0) maps to the ray pointing at the target.
func (c Camera) Ray(fx, fy float32) march.Ray {
	dir := ms3.Scale(c.focal, c.fwd)
	dir = ms3.Add(dir, ms3.Scale(fx, c.right))
	dir = ms3.Add(dir, ms3.Scale(fy, c.up))
	return march.Ray{Origin: c.origin, Dir: ms3.Unit(dir)}
}
