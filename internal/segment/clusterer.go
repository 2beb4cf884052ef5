package segment

import "github.com/banshee-data/tableseg/internal/cloud"

// DensityClusterer abstracts the clustering implementation so the segmenter
// can be driven by another algorithm or a test double.
type DensityClusterer interface {
	// Cluster labels every point: Noise (-1) or a non-negative cluster id.
	// The returned slice is parallel to pts. Ids carry no meaning beyond
	// identity, but the partition must be deterministic for a given input.
	Cluster(pts cloud.Points) []int

	// GetParams returns the current clustering parameters.
	GetParams() ClusteringParams

	// SetParams updates the clustering parameters.
	SetParams(params ClusteringParams)
}

// ClusteringParams holds density clustering parameters.
type ClusteringParams struct {
	Eps    float64 // Neighbourhood radius in metres
	MinPts int     // Minimum neighbourhood size, counting the point itself, for a core point
}

// DBSCANClusterer implements DensityClusterer with DBSCAN over 3-D
// Euclidean distance.
type DBSCANClusterer struct {
	params ClusteringParams
}

// NewDBSCANClusterer creates a DBSCAN clusterer with the given parameters.
func NewDBSCANClusterer(eps float64, minPts int) *DBSCANClusterer {
	return &DBSCANClusterer{
		params: ClusteringParams{
			Eps:    eps,
			MinPts: minPts,
		},
	}
}

// Cluster runs DBSCAN over pts.
func (c *DBSCANClusterer) Cluster(pts cloud.Points) []int {
	return DBSCAN(pts, c.params)
}

// GetParams returns the current clustering parameters.
func (c *DBSCANClusterer) GetParams() ClusteringParams {
	return c.params
}

// SetParams updates the clustering parameters.
func (c *DBSCANClusterer) SetParams(params ClusteringParams) {
	c.params = params
}

// Verify at compile time that *DBSCANClusterer implements DensityClusterer.
var _ DensityClusterer = (*DBSCANClusterer)(nil)
