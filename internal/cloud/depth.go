package cloud

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/golang/geo/r3"
)

// DefaultDepthScale converts 16-bit millimetre depth to metres.
const DefaultDepthScale = 0.001

// ErrBadIntrinsics is returned when focal lengths are not positive.
var ErrBadIntrinsics = errors.New("camera focal lengths must be positive")

// Intrinsics is a pinhole camera model in pixels.
type Intrinsics struct {
	Fx float64 `json:"fx" yaml:"fx"`
	Fy float64 `json:"fy" yaml:"fy"`
	Cx float64 `json:"cx" yaml:"cx"`
	Cy float64 `json:"cy" yaml:"cy"`
}

// Validate checks the focal lengths.
func (in Intrinsics) Validate() error {
	if !(in.Fx > 0) || !(in.Fy > 0) {
		return fmt.Errorf("%w: fx=%g fy=%g", ErrBadIntrinsics, in.Fx, in.Fy)
	}
	return nil
}

// DepthImage is a row-major depth map in metres. Zero, negative and NaN
// entries mean no return.
type DepthImage struct {
	Width  int
	Height int
	Depth  []float64
}

// FromDepthImage back-projects every pixel through the pinhole model into
// the camera optical frame (X right, Y down, Z forward). Pixels without a
// return become NaN points, so the result is structured and index i is
// pixel (i/Width, i%Width).
func FromDepthImage(d DepthImage, in Intrinsics) (*PointCloud, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if d.Width <= 0 || d.Height <= 0 || len(d.Depth) != d.Width*d.Height {
		return nil, fmt.Errorf("%w: %d depth values for %dx%d", ErrLayoutMismatch, len(d.Depth), d.Height, d.Width)
	}

	points := make([]r3.Vector, len(d.Depth))
	for row := 0; row < d.Height; row++ {
		for col := 0; col < d.Width; col++ {
			i := row*d.Width + col
			z := d.Depth[i]
			if !(z > 0) || math.IsInf(z, 0) {
				points[i] = InvalidPoint()
				continue
			}
			points[i] = r3.Vector{
				X: (float64(col) - in.Cx) * z / in.Fx,
				Y: (float64(row) - in.Cy) * z / in.Fy,
				Z: z,
			}
		}
	}
	return &PointCloud{Height: d.Height, Width: d.Width, points: points, structured: true}, nil
}

// ReadDepthPNG decodes a single-channel 16-bit PNG and scales raw values to
// metres.
func ReadDepthPNG(r io.Reader, scale float64) (DepthImage, error) {
	img, err := png.Decode(r)
	if err != nil {
		return DepthImage{}, fmt.Errorf("decode depth png: %w", err)
	}
	return DepthFromImage(img, scale), nil
}

// DepthFromImage converts any image to depth via its 16-bit gray value.
func DepthFromImage(img image.Image, scale float64) DepthImage {
	b := img.Bounds()
	d := DepthImage{Width: b.Dx(), Height: b.Dy(), Depth: make([]float64, b.Dx()*b.Dy())}
	gray16, isGray16 := img.(*image.Gray16)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var raw uint16
			if isGray16 {
				raw = gray16.Gray16At(x, y).Y
			} else {
				raw = color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y
			}
			d.Depth[(y-b.Min.Y)*d.Width+(x-b.Min.X)] = float64(raw) * scale
		}
	}
	return d
}
