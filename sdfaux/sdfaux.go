package sdfaux

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"os"
	"time"

	"github.com/soypat/sdftrace"
	"github.com/soypat/sdftrace/capture"
	"github.com/soypat/sdftrace/render"
	"github.com/soypat/sdftrace/shade"
)

// ImageConfig configures offline rendering of a scene to image files.
type ImageConfig struct {
	// Width and Height are the size of the rendered frame in pixels.
	Width, Height int
	// Scale enlarges the saved images by an integer factor. Zero means no scaling.
	Scale int
	// Render configures marching and shading. The zero value uses [render.DefaultConfig].
	Render render.Config
	// Label draws the frame's render time on the saved images.
	Label  bool
	Silent bool
}

// AnimationConfig sets the scene times rendered by [Animate].
type AnimationConfig struct {
	Frames int
	// Start is the scene time of the first frame.
	Start float32
	// Step is the scene time between consecutive frames.
	Step float32
	// Delay is the GIF frame delay in hundredths of a second. Zero derives it from Step.
	Delay int
}

// FrameFunc receives each frame rendered by [Animate]. pixels and img are reused between calls.
type FrameFunc func(frame int, t float32, pixels []shade.Color, img *image.RGBA, stats render.Stats, elapsed time.Duration) error

func (cfg *ImageConfig) validate() error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", cfg.Width, cfg.Height)
	} else if cfg.Scale < 0 {
		return errors.New("negative image scale")
	}
	if cfg.Render == (render.Config{}) {
		cfg.Render = render.DefaultConfig()
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	return nil
}

// Animate renders the frames of anim in order and calls fn with each of them.
func Animate(ctx context.Context, scene *sdftrace.Scene, cfg ImageConfig, anim AnimationConfig, fn FrameFunc) error {
	if anim.Frames <= 0 {
		return errors.New("animation requires at least one frame")
	}
	err := cfg.validate()
	if err != nil {
		return err
	}
	log := func(args ...any) {
		if !cfg.Silent {
			fmt.Println(args...)
		}
	}
	renderer, err := render.NewRenderer(cfg.Render)
	if err != nil {
		return err
	}
	pixels := make([]shade.Color, cfg.Width*cfg.Height)
	total := stopwatch()
	for i := 0; i < anim.Frames; i++ {
		t := anim.Start + float32(i)*anim.Step
		watch := stopwatch()
		stats, err := renderer.Render(ctx, pixels, cfg.Width, cfg.Height, scene, t)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		elapsed := watch()
		img, err := render.ToRGBA(pixels, cfg.Width, cfg.Height)
		if err != nil {
			return err
		}
		if cfg.Label {
			err = render.DrawLabel(img, 2, 12, 10, color.White, fmt.Sprintf("%.1f ms", float64(elapsed)/float64(time.Millisecond)))
			if err != nil {
				return err
			}
		}
		if stats.Exhausted > 0 {
			log("frame", i, "t", t, ":", stats.Exhausted, "rays exhausted iteration budget")
		}
		err = fn(i, t, pixels, img, stats, elapsed)
		if err != nil {
			return err
		}
	}
	log("rendered", anim.Frames, "frames of", cfg.Width, "x", cfg.Height, "in", total())
	return nil
}

// RenderPNGFile renders scene at time t and saves the result to a PNG file with said filename.
func RenderPNGFile(filename string, scene *sdftrace.Scene, t float32, cfg ImageConfig) (stats render.Stats, err error) {
	err = Animate(context.Background(), scene, cfg, AnimationConfig{Frames: 1, Start: t}, func(_ int, _ float32, _ []shade.Color, img *image.RGBA, s render.Stats, _ time.Duration) error {
		stats = s
		out, err := render.Upscale(img, max(cfg.Scale, 1))
		if err != nil {
			return err
		}
		fp, err := os.Create(filename)
		if err != nil {
			return err
		}
		defer fp.Close()
		err = png.Encode(fp, out)
		if err != nil {
			return fmt.Errorf("encoding PNG: %w", err)
		}
		return fp.Sync()
	})
	return stats, err
}

// RenderGIFFile renders the frames of anim and saves them as a looping animated GIF.
// Colors are quantized to the Plan 9 palette with Floyd-Steinberg dithering.
func RenderGIFFile(filename string, scene *sdftrace.Scene, cfg ImageConfig, anim AnimationConfig) error {
	delay := anim.Delay
	if delay <= 0 {
		delay = max(1, int(anim.Step*100+0.5))
	}
	out := &gif.GIF{
		Image: make([]*image.Paletted, 0, max(anim.Frames, 0)),
		Delay: make([]int, 0, max(anim.Frames, 0)),
	}
	err := Animate(context.Background(), scene, cfg, anim, func(_ int, _ float32, _ []shade.Color, img *image.RGBA, _ render.Stats, _ time.Duration) error {
		src, err := render.Upscale(img, max(cfg.Scale, 1))
		if err != nil {
			return err
		}
		pimg := image.NewPaletted(src.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(pimg, pimg.Bounds(), src, src.Bounds().Min)
		out.Image = append(out.Image, pimg)
		out.Delay = append(out.Delay, delay)
		return nil
	})
	if err != nil {
		return err
	}
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	err = gif.EncodeAll(fp, out)
	if err != nil {
		return fmt.Errorf("encoding GIF: %w", err)
	}
	return fp.Sync()
}

// CaptureBundle renders the frames of anim into a capture bundle in dir. See [capture.Writer].
func CaptureBundle(ctx context.Context, dir string, scene *sdftrace.Scene, cfg ImageConfig, anim AnimationConfig) (err error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", cfg.Width, cfg.Height)
	}
	writer, _, err := capture.NewWriter(dir, cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	defer func() {
		errClose := writer.Close()
		if err == nil {
			err = errClose
		}
	}()
	return Animate(ctx, scene, cfg, anim, func(_ int, t float32, pixels []shade.Color, _ *image.RGBA, stats render.Stats, elapsed time.Duration) error {
		return writer.WriteFrame(t, elapsed, pixels, stats)
	})
}

// UIConfig configures the interactive window opened by [UI].
type UIConfig struct {
	// Width and Height are the size of the rendered frame in pixels.
	Width, Height int
	// Scale is the integer window scale. The window measures Width*Scale by Height*Scale. Zero means 1.
	Scale int
	// Render configures marching and shading. The zero value uses [render.DefaultConfig].
	Render render.Config
	// UseGPU marches the scene in a fragment shader instead of on the CPU.
	UseGPU bool
	// Label draws the frame time on CPU rendered frames.
	Label  bool
	Silent bool
	// Title of the window.
	Title string
	// Context, when set, closes the window on cancellation.
	Context context.Context
}

// UI opens a window and renders the animated scene until the window is closed or Escape is pressed.
// Scene time advances by the wall time each frame took, and the frame time is logged.
// It requires cgo.
func UI(scene *sdftrace.Scene, cfg UIConfig) error {
	if scene == nil {
		return errors.New("nil scene")
	} else if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", cfg.Width, cfg.Height)
	} else if cfg.Scale < 0 {
		return errors.New("negative window scale")
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}
	if cfg.Render == (render.Config{}) {
		cfg.Render = render.DefaultConfig()
	}
	if cfg.Title == "" {
		cfg.Title = "sdftrace"
	}
	return ui(scene, cfg)
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
