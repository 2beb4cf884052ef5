package segment

import "github.com/banshee-data/tableseg/internal/geom"

// VolumeFilter rejects boxes smaller than MinVolume cubic metres.
type VolumeFilter struct {
	MinVolume float64
}

// Accept reports whether box is at least MinVolume. Zero-volume boxes from
// flat or collinear clusters fail any positive threshold.
func (f VolumeFilter) Accept(box geom.OrientedBox) bool {
	return box.Volume() >= f.MinVolume
}

// RelabelAsNoise rewrites every occurrence of label in labels to Noise and
// returns how many entries changed.
func RelabelAsNoise(labels []int, label int) int {
	if label == Noise {
		return 0
	}
	n := 0
	for i, l := range labels {
		if l == label {
			labels[i] = Noise
			n++
		}
	}
	return n
}
