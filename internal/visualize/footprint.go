package visualize

import (
	"fmt"
	"image/color"
	"io"

	"github.com/golang/geo/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/tableseg/internal/geom"
	"github.com/banshee-data/tableseg/internal/segment"
)

var tableColor = color.RGBA{R: 90, G: 90, B: 90, A: 255}

// Footprint returns the outline of b seen from above: the rectangle spanned
// by its two non-vertical axes, closed, projected onto XY.
func Footprint(b geom.OrientedBox) plotter.XYs {
	k, _ := b.VerticalAxis()
	var axes []r3.Vector
	for i := 0; i < 3; i++ {
		if i != k {
			axes = append(axes, b.Rotation.Axis(i).Mul(geom.Component(b.Extent, i)/2))
		}
	}
	u, v := axes[0], axes[1]
	corners := []r3.Vector{
		b.Center.Add(u).Add(v),
		b.Center.Add(u).Sub(v),
		b.Center.Sub(u).Sub(v),
		b.Center.Sub(u).Add(v),
	}
	xys := make(plotter.XYs, 0, 5)
	for _, c := range corners {
		xys = append(xys, plotter.XY{X: c.X, Y: c.Y})
	}
	return append(xys, xys[0])
}

// FootprintPlot draws the tables and the accepted objects from above, one
// line per box, objects in their label colours.
func FootprintPlot(tables []geom.OrientedBox, objects []segment.ObjectRecord) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Table top - %d object(s)", len(objects))
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	for i, t := range tables {
		line, err := plotter.NewLine(Footprint(t))
		if err != nil {
			return nil, err
		}
		line.Color = tableColor
		line.Width = vg.Points(1)
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("table %d", i), line)
	}

	for _, o := range objects {
		line, err := plotter.NewLine(Footprint(o.Box))
		if err != nil {
			return nil, err
		}
		r, g, b := ColorFor(o.ID).RGB255()
		line.Color = color.RGBA{R: r, G: g, B: b, A: 255}
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("object %d", o.ID), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WriteFootprint renders FootprintPlot to w in format ("png", "svg", "pdf").
func WriteFootprint(w io.Writer, format string, tables []geom.OrientedBox, objects []segment.ObjectRecord) error {
	p, err := FootprintPlot(tables, objects)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("failed to render footprint plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write footprint plot: %w", err)
	}
	return nil
}

// SaveFootprint renders FootprintPlot to path; the format follows the file
// extension (.png, .svg, .pdf).
func SaveFootprint(path string, tables []geom.OrientedBox, objects []segment.ObjectRecord) error {
	p, err := FootprintPlot(tables, objects)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save footprint plot: %w", err)
	}
	return nil
}
