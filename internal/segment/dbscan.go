package segment

import "github.com/banshee-data/tableseg/internal/cloud"

// Internal label states while DBSCAN runs. Final labels are shifted so that
// cluster ids start at 0 and noise is Noise.
const (
	unvisited = 0
	noiseMark = -1
)

// DBSCAN labels pts by density reachability. A point is a core point when at
// least params.MinPts points (itself included) lie within params.Eps.
// Clusters grow from core points; non-core points reached from a core point
// join the first cluster that reaches them; everything else is Noise.
//
// Points are visited in index order and cluster ids are assigned in order of
// discovery, so the output is deterministic. Invalid points are Noise.
func DBSCAN(pts cloud.Points, params ClusteringParams) []int {
	n := pts.Len()
	labels := make([]int, n) // 0=unvisited, -1=noise, >0=clusterID
	if n == 0 {
		return labels
	}

	// Build spatial index (required for performance)
	spatialIndex := NewSpatialIndex(params.Eps)
	spatialIndex.Build(pts)

	clusterID := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		if !cloud.IsValid(pts.At(i)) {
			labels[i] = noiseMark
			continue
		}

		neighbors := spatialIndex.RegionQuery(pts, i, params.Eps)
		if len(neighbors) < params.MinPts {
			labels[i] = noiseMark
			continue
		}

		clusterID++
		expandCluster(pts, spatialIndex, labels, i, neighbors, clusterID, params)
	}

	for i, l := range labels {
		if l > 0 {
			labels[i] = l - 1
		} else {
			labels[i] = Noise
		}
	}
	return labels
}

// expandCluster grows a cluster from a core point with a FIFO queue.
func expandCluster(pts cloud.Points, si *SpatialIndex, labels []int,
	seedIdx int, neighbors []int, clusterID int, params ClusteringParams) {

	labels[seedIdx] = clusterID

	for j := 0; j < len(neighbors); j++ {
		idx := neighbors[j]

		if labels[idx] == noiseMark {
			labels[idx] = clusterID // noise becomes a border point
		}
		if labels[idx] != unvisited {
			continue
		}

		labels[idx] = clusterID
		newNeighbors := si.RegionQuery(pts, idx, params.Eps)
		if len(newNeighbors) >= params.MinPts {
			neighbors = append(neighbors, newNeighbors...)
		}
	}
}

// distinctLabels returns the sorted non-noise labels present in labels.
func distinctLabels(labels []int) []int {
	max := Noise
	for _, l := range labels {
		if l > max {
			max = l
		}
	}
	if max < 0 {
		return nil
	}
	seen := make([]bool, max+1)
	for _, l := range labels {
		if l >= 0 {
			seen[l] = true
		}
	}
	out := make([]int, 0, max+1)
	for l, ok := range seen {
		if ok {
			out = append(out, l)
		}
	}
	return out
}
