package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/nfnt/resize"
	"github.com/soypat/sdftrace/shade"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// ToRGBA converts a row-major frame buffer of width*height colors into an opaque RGBA image.
func ToRGBA(buf []shade.Color, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	} else if len(buf) < width*height {
		return nil, errors.New("frame buffer shorter than frame size")
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		pix := img.Pix[y*img.Stride:]
		for x, c := range buf[y*width : (y+1)*width] {
			r, g, b := c.RGB()
			pix[4*x] = r
			pix[4*x+1] = g
			pix[4*x+2] = b
			pix[4*x+3] = 255
		}
	}
	return img, nil
}

// Upscale returns img enlarged by an integer scale using nearest neighbour sampling
// so that every frame pixel becomes a scale×scale block. A scale of 1 returns img unchanged.
func Upscale(img image.Image, scale int) (image.Image, error) {
	if scale < 1 {
		return nil, fmt.Errorf("invalid upscale factor %d", scale)
	} else if scale == 1 {
		return img, nil
	}
	sz := img.Bounds().Size()
	return resize.Resize(uint(sz.X*scale), uint(sz.Y*scale), img, resize.NearestNeighbor), nil
}

var labelFont = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(goregular.TTF)
})

// DrawLabel draws single line text onto dst with its baseline starting at (x, y) using Go Regular at size points.
func DrawLabel(dst draw.Image, x, y int, size float64, c color.Color, text string) error {
	ttf, err := labelFont()
	if err != nil {
		return fmt.Errorf("parsing label font: %w", err)
	}
	face := truetype.NewFace(ttf, &truetype.Options{Size: size, Hinting: font.HintingFull})
	defer face.Close()
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
	return nil
}
