//go:build !tinygo && cgo

package sdfaux

import (
	"context"
	"fmt"
	"image/color"
	"log"
	"time"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/sdftrace"
	"github.com/soypat/sdftrace/glsl"
	"github.com/soypat/sdftrace/render"
	"github.com/soypat/sdftrace/shade"
)

const blitFragSource = `#version 460 core
in vec2 vUV;
out vec4 fragColor;
uniform sampler2D uFrame;
void main() {
	// Frame rows are stored top to bottom.
	fragColor = texture(uFrame, vec2(vUV.x, 1.0 - vUV.y));
}
` + "\x00"

func ui(scene *sdftrace.Scene, cfg UIConfig) error {
	logf := func(args ...any) {
		if !cfg.Silent {
			fmt.Println(args...)
		}
	}
	window, term, err := startGLFW(cfg.Width*cfg.Scale, cfg.Height*cfg.Scale, cfg.Title)
	if err != nil {
		return err
	}
	defer term()

	var fragSrc string
	if cfg.UseGPU {
		logf("marching on GPU")
		fragSrc, err = glsl.FragmentSource(scene, cfg.Render)
		if err != nil {
			return err
		}
	} else {
		logf("marching on CPU")
		fragSrc = blitFragSource
	}
	prog, err := glgl.CompileProgram(glgl.ShaderSource{
		Vertex:   glsl.VertexSource + "\x00",
		Fragment: fragSrc,
	})
	if err != nil {
		return fmt.Errorf("%s\n\n%w", fragSrc, err)
	}
	prog.Bind()
	defer prog.Delete()

	// Quad covering the screen.
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)
	var vbo uint32
	gl.GenBuffers(1, &vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	vertices := []float32{
		-1.0, -1.0,
		1.0, -1.0,
		-1.0, 1.0,
		-1.0, 1.0,
		1.0, -1.0,
		1.0, 1.0,
	}
	gl.BufferData(gl.ARRAY_BUFFER, 4*len(vertices), gl.Ptr(vertices), gl.STATIC_DRAW)
	posAttrib, err := prog.AttribLocation("aPos\x00")
	if err != nil {
		return err
	}
	gl.EnableVertexAttribArray(posAttrib)
	gl.VertexAttribPointer(posAttrib, 2, gl.FLOAT, false, 0, gl.PtrOffset(0))

	var frame func(t float32) (render.Stats, error)
	if cfg.UseGPU {
		frame, err = gpuFrame(prog, window)
	} else {
		frame, err = cpuFrame(prog, scene, cfg)
	}
	if err != nil {
		return err
	}

	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	var t float32
	previousTime := glfw.GetTime()
	for !window.ShouldClose() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		fbw, fbh := window.GetFramebufferSize()
		gl.Viewport(0, 0, int32(fbw), int32(fbh))
		gl.ClearColor(0, 0, 0, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT)

		prog.Bind()
		stats, err := frame(t)
		if err != nil {
			return err
		}
		gl.BindVertexArray(vao)
		gl.DrawArrays(gl.TRIANGLES, 0, 6)
		err = glgl.Err()
		if err != nil {
			return err
		}
		window.SwapBuffers()
		glfw.PollEvents()
		if window.GetKey(glfw.KeyEscape) == glfw.Press {
			window.SetShouldClose(true)
		}

		// Scene time advances by the time the frame took.
		currentTime := glfw.GetTime()
		elapsed := currentTime - previousTime
		previousTime = currentTime
		t += float32(elapsed)
		if stats.Exhausted > 0 {
			logf(fmt.Sprintf("%.2fms", elapsed*1000), stats.Exhausted, "rays exhausted")
		} else {
			logf(fmt.Sprintf("%.2fms", elapsed*1000))
		}
	}
	return nil
}

// cpuFrame returns a function that renders the scene on the CPU and uploads it as the blit texture.
func cpuFrame(prog glgl.Program, scene *sdftrace.Scene, cfg UIConfig) (func(t float32) (render.Stats, error), error) {
	renderer, err := render.NewRenderer(cfg.Render)
	if err != nil {
		return nil, err
	}
	w, h := cfg.Width, cfg.Height
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	// Nearest filtering scales the frame up by whole pixels.
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	frameUniform, err := prog.UniformLocation("uFrame\x00")
	if err != nil {
		return nil, err
	}
	gl.Uniform1i(frameUniform, 0)

	pixels := make([]shade.Color, w*h)
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return func(t float32) (render.Stats, error) {
		watch := stopwatch()
		stats, err := renderer.Render(ctx, pixels, w, h, scene, t)
		if err != nil {
			return stats, err
		}
		img, err := render.ToRGBA(pixels, w, h)
		if err != nil {
			return stats, err
		}
		if cfg.Label {
			err = render.DrawLabel(img, 2, 12, 10, color.White, fmt.Sprintf("%.1f ms", float64(watch())/float64(time.Millisecond)))
			if err != nil {
				return stats, err
			}
		}
		gl.BindTexture(gl.TEXTURE_2D, tex)
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
		return stats, nil
	}, nil
}

// gpuFrame returns a function that sets the uniforms of the raymarching fragment shader.
func gpuFrame(prog glgl.Program, window *glfw.Window) (func(t float32) (render.Stats, error), error) {
	timeUniform, err := prog.UniformLocation(glsl.UniformTime + "\x00")
	if err != nil {
		return nil, err
	}
	resUniform, err := prog.UniformLocation(glsl.UniformResolution + "\x00")
	if err != nil {
		return nil, err
	}
	return func(t float32) (render.Stats, error) {
		fbw, fbh := window.GetFramebufferSize()
		gl.Uniform1f(timeUniform, t)
		gl.Uniform2f(resUniform, float32(fbw), float32(fbh))
		return render.Stats{}, nil
	}, nil
}

func startGLFW(width, height int, title string) (window *glfw.Window, term func(), err error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("initializing GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Resizable, glfw.False)

	window, err = glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("creating GLFW window: %w", err)
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		log.Println("Failed to initialize OpenGL:", err)
		glfw.Terminate()
		return nil, nil, err
	}
	return window, glfw.Terminate, nil
}
