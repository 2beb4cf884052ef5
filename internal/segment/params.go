package segment

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Noise is the label of points that belong to no object.
const Noise = -1

// DefaultLateralMargin is the growth, in metres, applied to each horizontal
// extent of a table box when carving the search volume above it.
const DefaultLateralMargin = 0.04

var (
	// ErrInvalidInput marks malformed frames or parameters. It is returned
	// before any computation starts.
	ErrInvalidInput = errors.New("invalid segmentation input")

	// ErrLabelOverflow is returned when an object id does not fit the int16
	// label image.
	ErrLabelOverflow = errors.New("object id exceeds label image range")
)

// PlanePolicy selects how many table planes a Segmenter processes.
type PlanePolicy int

const (
	// FirstPlaneOnly processes only the first plane in the input list and
	// ignores the rest. Object ids are local to that plane.
	FirstPlaneOnly PlanePolicy = iota

	// AllPlanes processes every plane in order. Points already claimed by an
	// object on an earlier plane are skipped, and ids are offset so they stay
	// unique across planes.
	AllPlanes
)

// String returns the config spelling of the policy.
func (p PlanePolicy) String() string {
	switch p {
	case FirstPlaneOnly:
		return "first"
	case AllPlanes:
		return "all"
	default:
		return fmt.Sprintf("PlanePolicy(%d)", int(p))
	}
}

// ParsePlanePolicy accepts "first" or "all" (case-insensitive). An empty
// string selects FirstPlaneOnly.
func ParsePlanePolicy(s string) (PlanePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return FirstPlaneOnly, nil
	case "all":
		return AllPlanes, nil
	default:
		return 0, fmt.Errorf("unknown plane policy %q (want \"first\" or \"all\")", s)
	}
}

// Params fully determines a segmentation run. There are no hidden defaults;
// internal/config builds a Params from the tuning file.
//
// Every field must be positive except two. LateralMargin may be zero, which
// carves exactly the table footprint. MinObjectVolume may be zero, which keeps
// every cluster including flat ones, or +Inf, which keeps none; only negative
// or NaN volumes are rejected.
type Params struct {
	ClusterRadius    float64     // DBSCAN eps, metres
	ClusterMinPoints int         // DBSCAN min points, counting the point itself
	MinObjectVolume  float64     // cubic metres
	MaxObjectHeight  float64     // metres above the table top
	LateralMargin    float64     // metres added to each horizontal table extent
	PlanePolicy      PlanePolicy // which planes to process
}

// Validate checks ranges. MinObjectVolume may be zero (keep every cluster)
// or +Inf (keep none).
func (p Params) Validate() error {
	switch {
	case !(p.ClusterRadius > 0) || math.IsInf(p.ClusterRadius, 0):
		return fmt.Errorf("%w: cluster radius must be positive and finite, got %g", ErrInvalidInput, p.ClusterRadius)
	case p.ClusterMinPoints <= 0:
		return fmt.Errorf("%w: cluster min points must be positive, got %d", ErrInvalidInput, p.ClusterMinPoints)
	case math.IsNaN(p.MinObjectVolume) || p.MinObjectVolume < 0:
		return fmt.Errorf("%w: min object volume must be non-negative, got %g", ErrInvalidInput, p.MinObjectVolume)
	case !(p.MaxObjectHeight > 0) || math.IsInf(p.MaxObjectHeight, 0):
		return fmt.Errorf("%w: max object height must be positive and finite, got %g", ErrInvalidInput, p.MaxObjectHeight)
	case math.IsNaN(p.LateralMargin) || math.IsInf(p.LateralMargin, 0) || p.LateralMargin < 0:
		return fmt.Errorf("%w: lateral margin must be non-negative, got %g", ErrInvalidInput, p.LateralMargin)
	case p.PlanePolicy != FirstPlaneOnly && p.PlanePolicy != AllPlanes:
		return fmt.Errorf("%w: unknown plane policy %d", ErrInvalidInput, int(p.PlanePolicy))
	}
	return nil
}
