package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/tableseg/internal/httputil"
	"github.com/banshee-data/tableseg/internal/segment"
	"github.com/banshee-data/tableseg/internal/visualize"
)

// handleObjectsChart renders a top-down scatter (HTML) of the objects found
// in the most recent segmentation call, one series per object so each keeps
// its label colour.
func (s *Server) handleObjectsChart(w http.ResponseWriter, r *http.Request) {
	res := s.lastResult()
	if res == nil {
		httputil.NotFound(w, "no segmentation result yet")
		return
	}

	scatter, err := objectsScatter(res)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func objectsScatter(res *segment.Result) (*charts.Scatter, error) {
	if res.Labels == nil {
		return nil, fmt.Errorf("result has no label image")
	}
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Table-top objects", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Objects above table", Subtitle: fmt.Sprintf("status=%s objects=%d", res.Kind, len(res.Objects))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)

	for _, o := range res.Objects {
		c := o.Box.Center
		// x, y, then z, point count and volume (cm³) for the tooltip
		data := []opts.ScatterData{{
			Name:  fmt.Sprintf("object %d", o.ID),
			Value: []interface{}{c.X, c.Y, c.Z, o.Points.Len(), o.Box.Volume() * 1e6},
		}}
		scatter.AddSeries(fmt.Sprintf("object %d", o.ID), data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: visualize.ColorFor(o.ID).Hex()}),
		)
	}
	return scatter, nil
}
