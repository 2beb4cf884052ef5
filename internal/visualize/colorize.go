package visualize

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/banshee-data/tableseg/internal/segment"
)

// goldenAngle spreads consecutive ids around the hue circle.
const goldenAngle = 137.50776405003785

// DefaultAlpha is the label weight when blending over an RGB frame.
const DefaultAlpha = 0.6

// ColorFor returns the display colour of an object id. The mapping is
// fixed, so the same id has the same colour in every frame.
func ColorFor(id int) colorful.Color {
	hue := math.Mod(float64(id)*goldenAngle, 360)
	return colorful.Hsv(hue, 0.75, 0.95)
}

// Colorize paints every labelled pixel of li with its id colour. When
// background is non-nil it must be li.Width×li.Height; labelled pixels are
// blended over it in Lab space with weight alpha and noise pixels keep the
// background colour. Without a background, noise pixels are black.
func Colorize(li *segment.LabelImage, background image.Image, alpha float64) (*image.RGBA, error) {
	if background != nil {
		b := background.Bounds()
		if b.Dx() != li.Width || b.Dy() != li.Height {
			return nil, fmt.Errorf("background is %dx%d, labels are %dx%d", b.Dx(), b.Dy(), li.Width, li.Height)
		}
	}
	alpha = math.Max(0, math.Min(1, alpha))

	out := image.NewRGBA(image.Rect(0, 0, li.Width, li.Height))
	for row := 0; row < li.Height; row++ {
		for col := 0; col < li.Width; col++ {
			id := int(li.At(row, col))

			var bg colorful.Color
			if background != nil {
				b := background.Bounds()
				bg, _ = colorful.MakeColor(background.At(b.Min.X+col, b.Min.Y+row))
			}

			c := bg
			if id != segment.Noise {
				c = ColorFor(id)
				if background != nil {
					c = bg.BlendLab(c, alpha).Clamped()
				}
			}
			r, g, b := c.RGB255()
			out.SetRGBA(col, row, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return out, nil
}

// WritePNG encodes img as PNG to w.
func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// SavePNG writes img to path, creating parent directories.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WritePNG(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
