package march

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/math/ms1"
)

// SDF3 implements a time varying 3D signed distance field.
type SDF3 interface {
	// Evaluate returns the signed distance from p to the field's surface at time t.
	// The returned value must never overestimate the distance to the surface.
	Evaluate(p ms3.Vec, t float32) float32
}

// SDFFunc adapts a function into an [SDF3].
type SDFFunc func(p ms3.Vec, t float32) float32

// Evaluate calls f(p, t).
func (f SDFFunc) Evaluate(p ms3.Vec, t float32) float32 { return f(p, t) }

// Ray is a half-line starting at Origin in direction Dir. Dir is expected to be of unit length.
type Ray struct {
	Origin ms3.Vec
	Dir    ms3.Vec
}

// Translate advances the ray's origin by amount along its direction.
func (r *Ray) Translate(amount float32) {
	r.Origin = ms3.Add(r.Origin, ms3.Scale(amount, r.Dir))
}

// Normalize sets the ray's direction to unit length. Dir must not be the zero vector.
func (r *Ray) Normalize() {
	r.Dir = ms3.Unit(r.Dir)
}

// At returns the point at distance d along the ray.
func (r Ray) At(d float32) ms3.Vec {
	return ms3.Add(r.Origin, ms3.Scale(d, r.Dir))
}

// Result is the terminal state of a traced ray.
type Result uint8

const (
	// Marching is the zero value; a returned Outcome never has this result.
	Marching Result = iota
	// Hit means the field value dropped below the convergence threshold.
	Hit
	// Miss means the ray accumulated more than the escape distance.
	Miss
	// Exhausted means the iteration budget ran out before a hit or miss.
	Exhausted
)

func (r Result) String() string {
	switch r {
	case Marching:
		return "marching"
	case Hit:
		return "hit"
	case Miss:
		return "miss"
	case Exhausted:
		return "exhausted"
	default:
		return "Result(" + fmt.Sprint(uint8(r)) + ")"
	}
}

// QualityMode selects how the convergence quality of a hit is computed.
type QualityMode uint8

const (
	// QualityIterations is the fraction of the iteration budget remaining at the time of the hit.
	QualityIterations QualityMode = iota
	// QualityTravel is one minus the accumulated distance over the escape distance.
	QualityTravel
)

// Default marching parameters.
const (
	DefaultMin           = 0.01
	DefaultMax           = 30
	DefaultIterations    = 1024
	DefaultNormalEpsilon = 5e-5
)

// Config holds the parameters of a [Marcher].
type Config struct {
	// Min is the convergence threshold. A ray hits once the field is below Min.
	Min float32
	// Max is the escape distance. A ray misses once its accumulated distance exceeds Max.
	// Must be greater than the scene's bounding radius as seen from the ray origins.
	Max float32
	// Iterations is the fixed iteration budget of a single trace.
	Iterations int
	// NormalEpsilon is the central difference step used for hit normals.
	NormalEpsilon float32
	// Quality selects the meaning of [Outcome.Quality].
	Quality QualityMode
}

// DefaultConfig returns the default marching configuration.
func DefaultConfig() Config {
	return Config{
		Min:           DefaultMin,
		Max:           DefaultMax,
		Iterations:    DefaultIterations,
		NormalEpsilon: DefaultNormalEpsilon,
		Quality:       QualityIterations,
	}
}

// Validate checks the configuration for values that would make marching degenerate.
func (cfg Config) Validate() error {
	switch {
	case !(cfg.Min > 0):
		return fmt.Errorf("convergence threshold must be positive, got %v", cfg.Min)
	case !(cfg.Min < cfg.Max) || math32.IsInf(cfg.Max, 0):
		return fmt.Errorf("convergence threshold %v must be less than finite escape distance %v", cfg.Min, cfg.Max)
	case cfg.Iterations <= 0:
		return errors.New("iteration budget must be positive")
	case !(cfg.NormalEpsilon > 0):
		return fmt.Errorf("normal epsilon must be positive, got %v", cfg.NormalEpsilon)
	case cfg.Quality > QualityTravel:
		return errors.New("unknown quality mode")
	}
	return nil
}

// Outcome is the result of tracing a single ray.
type Outcome struct {
	Result Result
	// Point is the ray origin at termination. For a Hit it is the hit point.
	Point ms3.Vec
	// Normal is the unit outward surface normal at Point. Only set for a Hit.
	Normal ms3.Vec
	// Quality in [0,1] measures how quickly the ray converged. Only set for a Hit.
	Quality float32
	// Distance is the last sampled field value.
	Distance float32
	// Travel is the distance the ray origin advanced.
	Travel float32
	// Steps is the number of iterations consumed advancing the ray.
	Steps int
}

// Marcher sphere-traces rays through an [SDF3].
// A Marcher holds no mutable state and is safe for concurrent use.
type Marcher struct {
	cfg Config
}

// NewMarcher returns a Marcher with a validated configuration.
func NewMarcher(cfg Config) (*Marcher, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	return &Marcher{cfg: cfg}, nil
}

// Config returns the marcher's configuration.
func (m *Marcher) Config() Config { return m.cfg }

// Trace marches ray through s at time t, advancing ray.Origin by the field value on each iteration.
// On return ray.Origin is the last sampled position.
func (m *Marcher) Trace(s SDF3, ray *Ray, t float32) Outcome {
	budget := m.cfg.Iterations
	remaining := budget
	var total, travel, d float32
	for remaining > 0 {
		d = s.Evaluate(ray.Origin, t)
		total += d
		if d < m.cfg.Min {
			return Outcome{
				Result:   Hit,
				Point:    ray.Origin,
				Normal:   NormalCentralDiff(s, ray.Origin, m.cfg.NormalEpsilon, t),
				Quality:  m.quality(remaining, total),
				Distance: d,
				Travel:   travel,
				Steps:    budget - remaining,
			}
		}
		if total > m.cfg.Max {
			return Outcome{Result: Miss, Point: ray.Origin, Distance: d, Travel: travel, Steps: budget - remaining}
		}
		ray.Translate(d)
		travel += d
		remaining--
	}
	return Outcome{Result: Exhausted, Point: ray.Origin, Distance: d, Travel: travel, Steps: budget}
}

func (m *Marcher) quality(remaining int, total float32) float32 {
	switch m.cfg.Quality {
	case QualityTravel:
		return ms1.Clamp(1-total/m.cfg.Max, 0, 1)
	default:
		return float32(remaining) / float32(m.cfg.Iterations)
	}
}

// NormalCentralDiff estimates the unit outward normal of s at p using central differences
// with step eps along each axis. Performs six evaluations of s.
// The result is undefined if the gradient of s vanishes at p.
func NormalCentralDiff(s SDF3, p ms3.Vec, eps, t float32) ms3.Vec {
	var n ms3.Vec
	var vecs = [3]ms3.Vec{{X: eps}, {Y: eps}, {Z: eps}}
	for dim, h := range vecs {
		d := s.Evaluate(ms3.Add(p, h), t) - s.Evaluate(ms3.Sub(p, h), t)
		switch dim {
		case 0:
			n.X = d
		case 1:
			n.Y = d
		case 2:
			n.Z = d
		}
	}
	return ms3.Unit(n)
}
