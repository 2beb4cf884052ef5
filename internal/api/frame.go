package api

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/tableseg/internal/cloud"
	"github.com/banshee-data/tableseg/internal/config"
	"github.com/banshee-data/tableseg/internal/geom"
)

// MaxFrameBytes bounds a decoded frame body.
const MaxFrameBytes = 64 << 20

// Frame is the JSON request of POST /api/segment and the -frame file of the
// CLI. Points are in image order, height*width of them, each [x, y, z] in
// metres in the base frame or null for a pixel without a depth return.
type Frame struct {
	Source string               `json:"source,omitempty"`
	Height int                  `json:"height"`
	Width  int                  `json:"width"`
	Points []*[3]float64        `json:"points"`
	Planes []geom.OrientedBox   `json:"planes"`
	Params *config.TuningConfig `json:"params,omitempty"` // per-request overrides
}

// DecodeFrame reads one JSON frame from r.
func DecodeFrame(r io.Reader) (*Frame, error) {
	var f Frame
	dec := json.NewDecoder(io.LimitReader(r, MaxFrameBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &f, nil
}

// Cloud converts the frame's points into a structured cloud.
func (f *Frame) Cloud() (*cloud.PointCloud, error) {
	if f.Height <= 0 || f.Width <= 0 {
		return nil, fmt.Errorf("frame size %dx%d must be positive", f.Height, f.Width)
	}
	pts := make([]r3.Vector, len(f.Points))
	for i, p := range f.Points {
		if p == nil {
			pts[i] = cloud.InvalidPoint()
			continue
		}
		pts[i] = r3.Vector{X: p[0], Y: p[1], Z: p[2]}
	}
	c, err := cloud.NewStructured(f.Height, f.Width, pts)
	if err != nil {
		return nil, fmt.Errorf("frame %dx%d with %d points: %w", f.Height, f.Width, len(f.Points), err)
	}
	return c, nil
}

// FrameFromCloud builds a frame from a cloud, keeping its layout. It is used
// to save frames captured from depth images.
func FrameFromCloud(c *cloud.PointCloud, planes []geom.OrientedBox) *Frame {
	f := &Frame{Height: c.Height, Width: c.Width, Planes: planes, Points: make([]*[3]float64, c.Len())}
	for i := range f.Points {
		if p := c.At(i); cloud.IsValid(p) {
			f.Points[i] = &[3]float64{p.X, p.Y, p.Z}
		}
	}
	return f
}

// DecodePlanes reads a JSON array of table-plane boxes.
func DecodePlanes(r io.Reader) ([]geom.OrientedBox, error) {
	var planes []geom.OrientedBox
	if err := json.NewDecoder(r).Decode(&planes); err != nil {
		return nil, fmt.Errorf("decode planes: %w", err)
	}
	return planes, nil
}
