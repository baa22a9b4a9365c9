package render

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/soypat/sdftrace"
	"github.com/soypat/sdftrace/march"
	"github.com/soypat/sdftrace/shade"
	"golang.org/x/sync/errgroup"
)

// Config holds the parameters of a [Renderer].
type Config struct {
	March  march.Config
	Shader shade.Shader
	// Workers is the maximum number of rows rendered concurrently. Zero or negative uses runtime.NumCPU.
	Workers int
	// Background is the color of rays that escape the scene.
	Background shade.Color
	// Failure is the color of rays that exhaust their iteration budget.
	Failure shade.Color
}

// DefaultConfig returns the configuration used to render the demo scene.
func DefaultConfig() Config {
	return Config{
		March:      march.DefaultConfig(),
		Shader:     shade.DefaultShader(),
		Background: shade.Black,
		Failure:    shade.Magenta,
	}
}

// Stats counts the outcomes of the rays of a frame.
type Stats struct {
	Hits      int
	Misses    int
	Exhausted int
	// Steps is the total number of marching iterations over all rays.
	Steps int64
}

// Pixels returns the number of pixels the stats were gathered over.
func (s Stats) Pixels() int { return s.Hits + s.Misses + s.Exhausted }

// Add accumulates the counts of other into s.
func (s *Stats) Add(other Stats) {
	s.Hits += other.Hits
	s.Misses += other.Misses
	s.Exhausted += other.Exhausted
	s.Steps += other.Steps
}

func (s *Stats) record(out march.Outcome) {
	switch out.Result {
	case march.Hit:
		s.Hits++
	case march.Miss:
		s.Misses++
	case march.Exhausted:
		s.Exhausted++
	}
	s.Steps += int64(out.Steps)
}

// Renderer turns a scene into a frame of packed colors.
// A Renderer is safe for concurrent use; concurrent Render calls must not share a destination buffer.
type Renderer struct {
	marcher *march.Marcher
	shader  shade.Shader
	workers int
	bg      shade.Color
	fail    shade.Color
}

// NewRenderer validates cfg and returns a Renderer.
func NewRenderer(cfg Config) (*Renderer, error) {
	marcher, err := march.NewMarcher(cfg.March)
	if err != nil {
		return nil, fmt.Errorf("march config: %w", err)
	}
	err = cfg.Shader.Validate()
	if err != nil {
		return nil, fmt.Errorf("shader config: %w", err)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Renderer{
		marcher: marcher,
		shader:  cfg.Shader,
		workers: workers,
		bg:      cfg.Background,
		fail:    cfg.Failure,
	}, nil
}

// Marcher returns the renderer's ray marcher.
func (r *Renderer) Marcher() *march.Marcher { return r.marcher }

// Render writes the frame of scene at time t into dst in row-major order, top row first.
// dst must have at least width*height elements. Rows are rendered concurrently and
// cancellation of ctx is observed between rows, in which case dst is partially written.
func (r *Renderer) Render(ctx context.Context, dst []shade.Color, width, height int, scene *sdftrace.Scene, t float32) (Stats, error) {
	if width <= 0 || height <= 0 {
		return Stats{}, fmt.Errorf("invalid frame size %dx%d", width, height)
	} else if len(dst) < width*height {
		return Stats{}, fmt.Errorf("frame buffer of length %d too short for %dx%d frame", len(dst), width, height)
	} else if scene == nil {
		return Stats{}, errors.New("nil scene")
	}
	// Orbits are resolved once per frame instead of once per evaluation.
	frozen := scene
	if scene.Animated() {
		frozen = scene.Frozen(t)
	}
	rowStats := make([]Stats, height)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for y := 0; y < height; y++ {
		if gctx.Err() != nil {
			break
		}
		row := dst[y*width : (y+1)*width]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			stats := &rowStats[y]
			for x := range row {
				c, out := r.Pixel(frozen, x, y, width, height, t)
				row[x] = c
				stats.record(out)
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	var stats Stats
	for i := range rowStats {
		stats.Add(rowStats[i])
	}
	return stats, err
}

// Pixel traces the ray through the center of pixel (x, y) of a width×height frame
// and returns its color along with the trace outcome.
func (r *Renderer) Pixel(scene *sdftrace.Scene, x, y, width, height int, t float32) (shade.Color, march.Outcome) {
	cam := scene.Camera()
	fx, fy := NDC(x, y, width, height, cam.Aspect())
	ray := cam.Ray(fx, fy)
	out := r.marcher.Trace(scene, &ray, t)
	switch out.Result {
	case march.Hit:
		return r.shader.Shade(out.Point, out.Normal, out.Quality), out
	case march.Miss:
		return r.bg, out
	default:
		return r.fail, out
	}
}

// NDC returns the screen coordinates of the center of pixel (x, y). fy is 1 at the top
// edge of the frame and -1 at the bottom; fx spans [-aspect, aspect] from left to right.
// An aspect of zero is replaced by width/height.
func NDC(x, y, width, height int, aspect float32) (fx, fy float32) {
	if aspect == 0 {
		aspect = float32(width) / float32(height)
	}
	fx = (2*(float32(x)+0.5)/float32(width) - 1) * aspect
	fy = 1 - 2*(float32(y)+0.5)/float32(height)
	return fx, fy
}
