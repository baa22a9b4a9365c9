package render_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace"
	"github.com/soypat/sdftrace/march"
	"github.com/soypat/sdftrace/render"
	"github.com/soypat/sdftrace/shade"
)

func newRenderer(t *testing.T, cfg render.Config) *render.Renderer {
	t.Helper()
	r, err := render.NewRenderer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func sphereScene(t *testing.T, center ms3.Vec) *sdftrace.Scene {
	t.Helper()
	var bld sdftrace.Builder
	cam := bld.NewCamera(ms3.Vec{Z: -5}, ms3.Vec{}, 45, 0)
	scene := bld.NewScene(1, cam, bld.NewSphere(center, 1))
	if err := bld.Err(); err != nil {
		t.Fatal(err)
	}
	return scene
}

func demoScene(t *testing.T, w, h int) *sdftrace.Scene {
	t.Helper()
	var bld sdftrace.Builder
	scene := bld.NewDemoScene(float32(w) / float32(h))
	if err := bld.Err(); err != nil {
		t.Fatal(err)
	}
	return scene
}

func TestRenderUnitSphere(t *testing.T) {
	const w, h = 33, 33
	r := newRenderer(t, render.DefaultConfig())
	scene := sphereScene(t, ms3.Vec{})
	dst := make([]shade.Color, w*h)
	stats, err := r.Render(context.Background(), dst, w, h, scene, 0)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pixels() != w*h {
		t.Errorf("expected %d pixels in stats, got %d", w*h, stats.Pixels())
	}
	if stats.Hits == 0 || stats.Misses == 0 || stats.Exhausted != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Steps <= 0 {
		t.Error("expected positive step count")
	}
	center := dst[(h/2)*w+w/2]
	if center == shade.Black || center == shade.Magenta {
		t.Error("expected shaded center pixel, got", center)
	}
	for _, corner := range []int{0, w - 1, (h - 1) * w, w*h - 1} {
		if dst[corner] != shade.Black {
			t.Errorf("expected background at corner %d, got %v", corner, dst[corner])
		}
	}
	_, out := r.Pixel(scene, w/2, h/2, w, h, 0)
	if out.Result != march.Hit {
		t.Fatal("center pixel did not hit", out.Result)
	}
	if out.Point.Z > -1+march.DefaultMin || out.Point.Z < -1-march.DefaultMin {
		t.Error("center hit not near z=-1", out.Point)
	}
	if ms3.Norm(ms3.Sub(out.Normal, ms3.Vec{Z: -1})) > 1e-3 {
		t.Error("center normal not (0,0,-1)", out.Normal)
	}
}

func TestRenderUpright(t *testing.T) {
	const w, h = 40, 40
	r := newRenderer(t, render.DefaultConfig())
	// Sphere above the camera's line of sight.
	scene := sphereScene(t, ms3.Vec{Y: 1.2})
	dst := make([]shade.Color, w*h)
	_, err := r.Render(context.Background(), dst, w, h, scene, 0)
	if err != nil {
		t.Fatal(err)
	}
	if dst[(h/4)*w+w/2] == shade.Black {
		t.Error("expected sphere in top half of frame")
	}
	if dst[(3*h/4)*w+w/2] != shade.Black {
		t.Error("expected background in bottom half of frame")
	}
}

func TestRenderDeterministic(t *testing.T) {
	const w, h = 64, 40
	scene := demoScene(t, w, h)
	cfg := render.DefaultConfig()
	var frames [][]shade.Color
	for _, workers := range []int{1, 3, 0} {
		cfg.Workers = workers
		r := newRenderer(t, cfg)
		dst := make([]shade.Color, w*h)
		_, err := r.Render(context.Background(), dst, w, h, scene, 1.3)
		if err != nil {
			t.Fatal(err)
		}
		frames = append(frames, dst)
	}
	for i := 1; i < len(frames); i++ {
		for j := range frames[0] {
			if frames[i][j] != frames[0][j] {
				t.Fatalf("render %d differs at pixel %d: %v != %v", i, j, frames[i][j], frames[0][j])
			}
		}
	}
	// Pixel agrees with the parallel render.
	r := newRenderer(t, cfg)
	for _, xy := range [][2]int{{0, 0}, {w / 2, h / 2}, {10, 30}, {w - 1, h - 1}} {
		c, _ := r.Pixel(scene, xy[0], xy[1], w, h, 1.3)
		if got := frames[0][xy[1]*w+xy[0]]; got != c {
			t.Errorf("pixel %v: Pixel %v != Render %v", xy, c, got)
		}
	}
}

func TestRenderDemoNoExhausted(t *testing.T) {
	const w, h = 80, 50
	scene := demoScene(t, w, h)
	cfg := render.DefaultConfig()
	cfg.March.Iterations = 128
	r := newRenderer(t, cfg)
	dst := make([]shade.Color, w*h)
	for _, tm := range []float32{0, 2.1, 7.5, 31} {
		stats, err := r.Render(context.Background(), dst, w, h, scene, tm)
		if err != nil {
			t.Fatal(err)
		}
		if stats.Exhausted != 0 {
			t.Errorf("t=%v: %d rays exhausted budget", tm, stats.Exhausted)
		}
		if stats.Hits == 0 {
			t.Errorf("t=%v: demo scene rendered no hits", tm)
		}
		for i, c := range dst {
			if c == shade.Magenta {
				t.Fatalf("t=%v: failure color at pixel %d", tm, i)
			}
		}
	}
}

func TestRenderFailureColor(t *testing.T) {
	const w, h = 8, 6
	cfg := render.DefaultConfig()
	cfg.March.Iterations = 1
	cfg.March.Max = 1000
	cfg.Failure = shade.Pack(1, 2, 3)
	r := newRenderer(t, cfg)
	dst := make([]shade.Color, w*h)
	stats, err := r.Render(context.Background(), dst, w, h, sphereScene(t, ms3.Vec{}), 0)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Exhausted != w*h {
		t.Errorf("expected all %d rays exhausted, got %+v", w*h, stats)
	}
	for i, c := range dst {
		if c != cfg.Failure {
			t.Fatalf("pixel %d: expected failure color, got %v", i, c)
		}
	}
}

func TestRenderErrors(t *testing.T) {
	r := newRenderer(t, render.DefaultConfig())
	scene := sphereScene(t, ms3.Vec{})
	ctx := context.Background()
	if _, err := r.Render(ctx, make([]shade.Color, 10), 4, 4, scene, 0); err == nil {
		t.Error("expected error for short buffer")
	}
	if _, err := r.Render(ctx, make([]shade.Color, 10), 0, 4, scene, 0); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := r.Render(ctx, make([]shade.Color, 16), 4, 4, nil, 0); err == nil {
		t.Error("expected error for nil scene")
	}
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := r.Render(canceled, make([]shade.Color, 16), 4, 4, scene, 0)
	if !errors.Is(err, context.Canceled) {
		t.Error("expected context canceled error, got", err)
	}

	cfg := render.DefaultConfig()
	cfg.March.Min = cfg.March.Max
	if _, err := render.NewRenderer(cfg); err == nil {
		t.Error("expected error for invalid march config")
	}
	cfg = render.DefaultConfig()
	cfg.Shader.CheckerScale = 0
	if _, err := render.NewRenderer(cfg); err == nil {
		t.Error("expected error for invalid shader")
	}
}

func TestNDC(t *testing.T) {
	fx, fy := render.NDC(2, 2, 5, 5, 0)
	if fx != 0 || fy != 0 {
		t.Error("center pixel of odd frame not at origin", fx, fy)
	}
	fx, fy = render.NDC(0, 0, 200, 100, 0)
	if fy <= 0.98 || fx >= -1.98 {
		t.Error("top-left pixel should be near (-aspect, 1)", fx, fy)
	}
	fx, _ = render.NDC(199, 50, 200, 100, 1)
	if fx <= 0.98 || fx >= 1 {
		t.Error("explicit aspect not applied", fx)
	}
}

func TestImageHelpers(t *testing.T) {
	const w, h = 4, 3
	buf := make([]shade.Color, w*h)
	for i := range buf {
		buf[i] = shade.Pack(uint8(i*20), uint8(255-i), 7)
	}
	img, err := render.ToRGBA(buf, w, h)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			want := color.RGBAModel.Convert(buf[y*w+x])
			if got := img.At(x, y); got != want {
				t.Fatalf("(%d,%d): want %v, got %v", x, y, want, got)
			}
		}
	}
	if _, err := render.ToRGBA(buf[:5], w, h); err == nil {
		t.Error("expected error for short buffer")
	}

	const scale = 4
	up, err := render.Upscale(img, scale)
	if err != nil {
		t.Fatal(err)
	}
	if up.Bounds().Dx() != w*scale || up.Bounds().Dy() != h*scale {
		t.Fatal("bad upscaled size", up.Bounds())
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			want := color.RGBAModel.Convert(img.At(x, y))
			got := color.RGBAModel.Convert(up.At(x*scale+scale/2, y*scale+scale/2))
			if got != want {
				t.Errorf("upscaled block (%d,%d): want %v, got %v", x, y, want, got)
			}
		}
	}
	if same, _ := render.Upscale(img, 1); same != image.Image(img) {
		t.Error("scale 1 should return input image")
	}
	if _, err := render.Upscale(img, 0); err == nil {
		t.Error("expected error for zero scale")
	}

	canvas := image.NewRGBA(image.Rect(0, 0, 80, 20))
	before := bytes.Clone(canvas.Pix)
	err = render.DrawLabel(canvas, 2, 15, 12, color.White, "16 ms")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(before, canvas.Pix) {
		t.Error("label not drawn")
	}
}
