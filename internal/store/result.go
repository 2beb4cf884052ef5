package store

import (
	"encoding/json"
	"time"

	"github.com/banshee-data/tableseg/internal/segment"
)

// paramsRecord is the stored form of segment.Params.
type paramsRecord struct {
	ClusterRadius    float64 `json:"cluster_dbscan_eps"`
	ClusterMinPoints int     `json:"min_points"`
	MinObjectVolume  float64 `json:"min_volume"`
	MaxObjectHeight  float64 `json:"max_obj_height"`
	LateralMargin    float64 `json:"lateral_margin"`
	PlanePolicy      string  `json:"plane_policy"`
}

// RunFromResult converts a segmentation result into a Run ready for
// InsertRun. elapsed may be zero if the call was not timed.
func RunFromResult(res *segment.Result, params segment.Params, source string, elapsed time.Duration) *Run {
	run := &Run{
		Source:      source,
		Status:      res.Kind.String(),
		PlaneCount:  len(res.Planes),
		ObjectCount: len(res.Objects),
	}
	if res.Labels != nil {
		run.Height, run.Width = res.Labels.Height, res.Labels.Width
		run.LabelledPixels = res.Labels.Len() - res.Labels.Count(segment.Noise)
	}
	if elapsed > 0 {
		ns := elapsed.Nanoseconds()
		run.DurationNs = &ns
	}

	// An infinite min volume does not encode; the column is then left empty.
	if data, err := json.Marshal(paramsRecord{
		ClusterRadius:    params.ClusterRadius,
		ClusterMinPoints: params.ClusterMinPoints,
		MinObjectVolume:  params.MinObjectVolume,
		MaxObjectHeight:  params.MaxObjectHeight,
		LateralMargin:    params.LateralMargin,
		PlanePolicy:      params.PlanePolicy.String(),
	}); err == nil {
		run.ParamsJSON = data
	}

	for _, o := range res.Objects {
		run.Objects = append(run.Objects, ObjectRow{
			ObjectID:   o.ID,
			PlaneIndex: o.PlaneIndex,
			PointCount: o.Points.Len(),
			Volume:     o.Box.Volume(),
			Box:        o.Box,
		})
	}
	return run
}
