package geom

import (
	"encoding/json"

	"github.com/golang/geo/r3"
)

// boxJSON is the wire form of an OrientedBox. Rotation is row-major and may
// be omitted for an axis-aligned box.
type boxJSON struct {
	Center   [3]float64 `json:"center"`
	Extent   [3]float64 `json:"extent"`
	Rotation *Rotation  `json:"rotation,omitempty"`
}

// MarshalJSON encodes the box as {"center":[..],"extent":[..],"rotation":[9]}.
func (b OrientedBox) MarshalJSON() ([]byte, error) {
	rot := b.Rotation
	return json.Marshal(boxJSON{
		Center:   [3]float64{b.Center.X, b.Center.Y, b.Center.Z},
		Extent:   [3]float64{b.Extent.X, b.Extent.Y, b.Extent.Z},
		Rotation: &rot,
	})
}

// UnmarshalJSON decodes and validates a box.
func (b *OrientedBox) UnmarshalJSON(data []byte) error {
	var raw boxJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rot := IdentityRotation
	if raw.Rotation != nil {
		rot = *raw.Rotation
	}
	box, err := NewOrientedBox(
		r3.Vector{X: raw.Center[0], Y: raw.Center[1], Z: raw.Center[2]},
		r3.Vector{X: raw.Extent[0], Y: raw.Extent[1], Z: raw.Extent[2]},
		rot,
	)
	if err != nil {
		return err
	}
	*b = box
	return nil
}
