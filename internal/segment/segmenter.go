package segment

import (
	"fmt"

	"github.com/banshee-data/tableseg/internal/cloud"
	"github.com/banshee-data/tableseg/internal/geom"
	"github.com/banshee-data/tableseg/internal/monitoring"
)

var logf = monitoring.Tagged("segment")

// ResultKind distinguishes the outcomes of a segmentation call.
type ResultKind int

const (
	// KindNoTable means the plane list was empty.
	KindNoTable ResultKind = iota
	// KindNoObjects means at least one table was processed but no cluster
	// survived.
	KindNoObjects
	// KindObjects means one or more objects were found.
	KindObjects
)

// String returns a short lowercase name.
func (k ResultKind) String() string {
	switch k {
	case KindNoTable:
		return "no_table"
	case KindNoObjects:
		return "no_objects"
	case KindObjects:
		return "objects"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// ObjectRecord is one accepted object.
type ObjectRecord struct {
	ID         int              // label value in the label image
	PlaneIndex int              // index of the table plane it rests on
	Points     cloud.Subset     // indices into the input cloud
	Box        geom.OrientedBox // fitted box
}

// PlaneReport summarises the work done for one table plane.
type PlaneReport struct {
	Index         int
	Carved        geom.OrientedBox
	PointsInside  int
	Clusters      int
	Accepted      int
	Rejected      int
	NoisePoints   int
	ClaimedBefore int // points skipped because an earlier plane owns them
}

// Result is the output of one segmentation call. Labels is always non-nil
// and sized height×width.
type Result struct {
	Kind    ResultKind
	Objects []ObjectRecord
	Labels  *LabelImage
	Planes  []PlaneReport
}

// Found reports whether any object was accepted.
func (r *Result) Found() bool { return r.Kind == KindObjects }

// Segmenter runs the table-top pipeline. Its fields are fixed after
// construction apart from the plug points, so one Segmenter may serve
// concurrent calls as long as its clusterer and fitter are safe to share.
type Segmenter struct {
	params    Params
	clusterer DensityClusterer
	fitter    BoundingVolumeFitter
	filter    VolumeFilter
}

// NewSegmenter validates p and returns a Segmenter using DBSCAN and
// MinimalBoxFitter.
func NewSegmenter(p Params) (*Segmenter, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{
		params:    p,
		clusterer: NewDBSCANClusterer(p.ClusterRadius, p.ClusterMinPoints),
		fitter:    MinimalBoxFitter{},
		filter:    VolumeFilter{MinVolume: p.MinObjectVolume},
	}, nil
}

// Params returns the parameters the segmenter was built with.
func (s *Segmenter) Params() Params { return s.params }

// SetClusterer replaces the density clusterer.
func (s *Segmenter) SetClusterer(c DensityClusterer) { s.clusterer = c }

// SetFitter replaces the bounding volume fitter.
func (s *Segmenter) SetFitter(f BoundingVolumeFitter) { s.fitter = f }

// SegmentObjectsAboveTable is the single-call form: it validates params,
// builds a Segmenter and segments one frame.
func SegmentObjectsAboveTable(pts cloud.Points, planes []geom.OrientedBox, params Params, height, width int) (*Result, error) {
	s, err := NewSegmenter(params)
	if err != nil {
		return nil, err
	}
	return s.Segment(pts, planes, height, width)
}

// Segment finds objects above the given table planes. pts must hold exactly
// height*width points in image order, with invalid pixels as NaN points.
// Planes are not modified.
func (s *Segmenter) Segment(pts cloud.Points, planes []geom.OrientedBox, height, width int) (*Result, error) {
	if err := validateFrame(pts, planes, height, width); err != nil {
		return nil, err
	}

	res := &Result{Kind: KindNoTable, Labels: NewLabelImage(height, width)}
	if len(planes) == 0 {
		logf("no table planes supplied")
		return res, nil
	}

	var claimed []bool
	if s.params.PlanePolicy == AllPlanes {
		claimed = make([]bool, pts.Len())
	}

	nextID := 0
	for pi, plane := range planes {
		report, objects, usedIDs, err := s.segmentPlane(pts, pi, plane, claimed, nextID, res.Labels)
		if err != nil {
			return nil, fmt.Errorf("plane %d: %w", pi, err)
		}
		res.Planes = append(res.Planes, report)
		res.Objects = append(res.Objects, objects...)
		nextID += usedIDs

		if s.params.PlanePolicy == FirstPlaneOnly {
			if len(planes) > 1 {
				logf("plane policy %q: ignoring %d further plane(s)", s.params.PlanePolicy, len(planes)-1)
			}
			break
		}
	}

	res.Kind = KindNoObjects
	if len(res.Objects) > 0 {
		res.Kind = KindObjects
	}
	return res, nil
}

// segmentPlane processes one table plane. Object ids are the plane's
// cluster labels plus idOffset; usedIDs is how many ids the plane consumed.
func (s *Segmenter) segmentPlane(pts cloud.Points, pi int, plane geom.OrientedBox,
	claimed []bool, idOffset int, labels *LabelImage) (PlaneReport, []ObjectRecord, int, error) {

	report := PlaneReport{
		Index:  pi,
		Carved: plane.CarveAbove(s.params.LateralMargin, s.params.MaxObjectHeight),
	}

	indices := PointsInBox(report.Carved, pts)
	if claimed != nil {
		free := indices[:0:0]
		for _, idx := range indices {
			if claimed[idx] {
				report.ClaimedBefore++
				continue
			}
			free = append(free, idx)
		}
		indices = free
	}
	report.PointsInside = len(indices)
	if len(indices) == 0 {
		logf("plane %d: no points above table", pi)
		return report, nil, 0, nil
	}

	subset := cloud.Select(pts, indices)
	clusterLabels := s.clusterer.Cluster(subset)
	if len(clusterLabels) != subset.Len() {
		return report, nil, 0, fmt.Errorf("clusterer returned %d labels for %d points", len(clusterLabels), subset.Len())
	}

	distinct := distinctLabels(clusterLabels)
	report.Clusters = len(distinct)
	usedIDs := 0
	if len(distinct) > 0 {
		usedIDs = distinct[len(distinct)-1] + 1
	}

	var objects []ObjectRecord
	for _, label := range distinct {
		members := subset.Where(clusterLabels, label)
		box, err := s.fitter.Fit(members)
		if err != nil {
			return report, nil, 0, fmt.Errorf("fit cluster %d: %w", label, err)
		}
		if !s.filter.Accept(box) {
			RelabelAsNoise(clusterLabels, label)
			report.Rejected++
			continue
		}
		objects = append(objects, ObjectRecord{
			ID:         label + idOffset,
			PlaneIndex: pi,
			Points:     members,
			Box:        box,
		})
		report.Accepted++
	}

	ids := make([]int, len(clusterLabels))
	for i, l := range clusterLabels {
		if l == Noise {
			report.NoisePoints++
			ids[i] = Noise
			continue
		}
		ids[i] = l + idOffset
		if claimed != nil {
			claimed[indices[i]] = true
		}
	}
	if err := labels.WriteLabels(indices, ids); err != nil {
		return report, nil, 0, err
	}

	logf("plane %d: %d points above table, %d clusters, %d accepted, %d rejected, %d noise",
		pi, report.PointsInside, report.Clusters, report.Accepted, report.Rejected, report.NoisePoints)
	return report, objects, usedIDs, nil
}

// validateFrame checks the frame before any work is done.
func validateFrame(pts cloud.Points, planes []geom.OrientedBox, height, width int) error {
	if pts == nil {
		return fmt.Errorf("%w: nil point cloud", ErrInvalidInput)
	}
	if height <= 0 || width <= 0 {
		return fmt.Errorf("%w: image size %dx%d", ErrInvalidInput, height, width)
	}
	if pts.Len() != height*width {
		return fmt.Errorf("%w: cloud has %d points, image is %dx%d", ErrInvalidInput, pts.Len(), height, width)
	}
	for i, p := range planes {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: plane %d: %v", ErrInvalidInput, i, err)
		}
	}
	return nil
}
