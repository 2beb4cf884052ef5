package segment

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/tableseg/internal/geom"
)

func TestVolumeFilter_Accept(t *testing.T) {
	box := geom.OrientedBox{Extent: r3.Vector{X: 0.05, Y: 0.02, Z: 0.01}, Rotation: geom.IdentityRotation}

	tests := []struct {
		name      string
		minVolume float64
		want      bool
	}{
		{"zero keeps everything", 0, true},
		{"below", 1e-6, true},
		{"equal is kept", box.Volume(), true},
		{"above", 1e-4, false},
		{"infinite rejects all", math.Inf(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (VolumeFilter{MinVolume: tt.minVolume}).Accept(box); got != tt.want {
				t.Errorf("Accept() = %v, want %v (volume %g)", got, tt.want, box.Volume())
			}
		})
	}
}

func TestVolumeFilter_FlatClusterRejected(t *testing.T) {
	flat := geom.OrientedBox{Extent: r3.Vector{X: 0.3, Y: 0.3}, Rotation: geom.IdentityRotation}
	if (VolumeFilter{MinVolume: 1e-9}).Accept(flat) {
		t.Error("expected zero-volume box to fail a positive threshold")
	}
}

func TestRelabelAsNoise(t *testing.T) {
	labels := []int{0, 1, 1, -1, 2, 1}
	if n := RelabelAsNoise(labels, 1); n != 3 {
		t.Errorf("expected 3 relabelled, got %d", n)
	}
	want := []int{0, -1, -1, -1, 2, -1}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("labels = %v, want %v", labels, want)
		}
	}
	if n := RelabelAsNoise(labels, Noise); n != 0 {
		t.Errorf("relabelling noise should be a no-op, changed %d", n)
	}
}
